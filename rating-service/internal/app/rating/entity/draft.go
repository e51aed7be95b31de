package entity

import (
	"strings"
	"unicode/utf8"
)

const MaxFeedbackLength = 1000

// RatingDraft - черновик оценки, живет только в рамках одной сессии
type RatingDraft struct {
	RateeID         int64
	RoleContext     RoleContext
	IsAnonymous     bool
	FeedbackMessage string
	CategoryScores  []CategoryScore
}

// CreateRatingRequest - тело POST /api/core/ratings/
type CreateRatingRequest struct {
	Ratee           int64           `json:"ratee"`
	RoleContext     RoleContext     `json:"role_context"`
	IsAnonymous     bool            `json:"is_anonymous"`
	FeedbackMessage string          `json:"feedback_message"`
	CategoryScores  []CategoryScore `json:"category_scores"`
}

// Validate проверяет черновик целиком и возвращает *ValidationError со всеми нарушениями.
// Невалидные категории никогда не отбрасываются молча
func (d *RatingDraft) Validate() error {
	verr := &ValidationError{}

	if d.RateeID <= 0 {
		verr.add("ratee_id", "", "Ratee is required")
	}
	if !d.RoleContext.Valid() {
		verr.add("role_context", "", "Role context is required")
	}
	if len(d.CategoryScores) == 0 {
		verr.add("category_scores", "", "Category scores are required")
	}

	seen := make(map[string]struct{}, len(d.CategoryScores))
	for _, cs := range d.CategoryScores {
		if strings.TrimSpace(cs.Category) == "" {
			verr.add("category_scores", "", "Category is required")
			continue
		}
		if _, dup := seen[cs.Category]; dup {
			verr.add("category_scores", cs.Category, "Category is listed more than once")
			continue
		}
		seen[cs.Category] = struct{}{}

		if !validScore(cs.Score) {
			verr.add("category_scores", cs.Category, "Please provide a rating between 1 and 5")
		}
	}

	if utf8.RuneCountInString(d.FeedbackMessage) > MaxFeedbackLength {
		verr.add("feedback_message", "", "Feedback message must be less than 1000 characters")
	}

	return verr.orNil()
}

// Payload собирает тело запроса к Core API.
// Категории дополнительно фильтруются по диапазону 1..5
func (d *RatingDraft) Payload() *CreateRatingRequest {
	scores := make([]CategoryScore, 0, len(d.CategoryScores))
	for _, cs := range d.CategoryScores {
		if validScore(cs.Score) {
			scores = append(scores, cs)
		}
	}

	return &CreateRatingRequest{
		Ratee:           d.RateeID,
		RoleContext:     d.RoleContext,
		IsAnonymous:     d.IsAnonymous,
		FeedbackMessage: d.FeedbackMessage,
		CategoryScores:  scores,
	}
}

// ValidateFeedback проверяет только длину отзыва, используется при частичном обновлении сессии
func ValidateFeedback(message string) error {
	if utf8.RuneCountInString(message) > MaxFeedbackLength {
		verr := &ValidationError{}
		verr.add("feedback_message", "", "Feedback message must be less than 1000 characters")
		return verr
	}
	return nil
}

// MissingScoresError строит ошибку валидации по незаполненным категориям
func MissingScoresError(missing []string) error {
	verr := &ValidationError{}
	for _, category := range missing {
		verr.add("category_scores", category, "Please provide a rating between 1 and 5")
	}
	return verr.orNil()
}
