package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionStateInit                SessionState = "INIT"
	SessionStateEligibilityChecking SessionState = "ELIGIBILITY_CHECKING"
	SessionStateEligible            SessionState = "ELIGIBLE"
	SessionStateIneligible          SessionState = "INELIGIBLE"
	SessionStateCategoriesLoading   SessionState = "CATEGORIES_LOADING"
	SessionStateCategoriesReady     SessionState = "CATEGORIES_READY"
	SessionStateScoring             SessionState = "SCORING"
	SessionStateSubmittable         SessionState = "SUBMITTABLE"
	SessionStateSubmitting          SessionState = "SUBMITTING"
	SessionStateSubmitted           SessionState = "SUBMITTED"
	SessionStateSubmitFailed        SessionState = "SUBMIT_FAILED"
)

var sessionTransitions = map[SessionState][]SessionState{
	SessionStateInit:                {SessionStateEligibilityChecking},
	SessionStateEligibilityChecking: {SessionStateEligible, SessionStateIneligible},
	SessionStateEligible:            {SessionStateCategoriesLoading},
	SessionStateCategoriesLoading:   {SessionStateCategoriesReady},
	SessionStateCategoriesReady:     {SessionStateScoring, SessionStateSubmittable},
	SessionStateScoring:             {SessionStateScoring, SessionStateSubmittable},
	SessionStateSubmittable:         {SessionStateSubmittable, SessionStateSubmitting},
	SessionStateSubmitting:          {SessionStateSubmitted, SessionStateSubmitFailed},
	SessionStateSubmitFailed:        {SessionStateSubmittable, SessionStateScoring},
}

// RatingSession - состояние одной сессии оценки пользователя
type RatingSession struct {
	ID              uuid.UUID          `json:"id"`
	RaterID         int64              `json:"rater_id"`
	RateeID         int64              `json:"ratee_id"`
	RoleContext     RoleContext        `json:"role_context"`
	State           SessionState       `json:"state"`
	Eligibility     *EligibilityResult `json:"eligibility,omitempty"`
	Matrix          *ScoreMatrix       `json:"matrix,omitempty"`
	IsAnonymous     bool               `json:"is_anonymous"`
	FeedbackMessage string             `json:"feedback_message"`
	LastError       string             `json:"last_error,omitempty"`
	SubmittingSince *time.Time         `json:"submitting_since,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func NewRatingSession(raterID, rateeID int64, rc RoleContext) *RatingSession {
	now := time.Now()
	return &RatingSession{
		ID:          uuid.New(),
		RaterID:     raterID,
		RateeID:     rateeID,
		RoleContext: rc,
		State:       SessionStateInit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition переводит сессию в новое состояние, если переход разрешен
func (s *RatingSession) Transition(to SessionState) error {
	for _, allowed := range sessionTransitions[s.State] {
		if allowed == to {
			now := time.Now()
			s.State = to
			s.UpdatedAt = now
			if to == SessionStateSubmitting {
				s.SubmittingSince = &now
			} else {
				s.SubmittingSince = nil
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
}

// Editable - можно ли менять оценки и детали сессии
func (s *RatingSession) Editable() bool {
	switch s.State {
	case SessionStateCategoriesReady, SessionStateScoring, SessionStateSubmittable:
		return s.Matrix != nil
	}
	return false
}

// SubmitStale - ответ на отправку уже не придет: запрос завис дольше after или процесс упал.
// Сессия без отметки времени считается активной
func (s *RatingSession) SubmitStale(now time.Time, after time.Duration) bool {
	if s.State != SessionStateSubmitting || s.SubmittingSince == nil {
		return false
	}
	return now.Sub(*s.SubmittingSince) > after
}

// ScoredState возвращает состояние, соответствующее заполненности матрицы
func (s *RatingSession) ScoredState() SessionState {
	if s.Matrix != nil && s.Matrix.IsSubmittable() {
		return SessionStateSubmittable
	}
	return SessionStateScoring
}

func (s *RatingSession) Draft() *RatingDraft {
	draft := &RatingDraft{
		RateeID:         s.RateeID,
		RoleContext:     s.RoleContext,
		IsAnonymous:     s.IsAnonymous,
		FeedbackMessage: s.FeedbackMessage,
	}
	if s.Matrix != nil {
		draft.CategoryScores = s.Matrix.CategoryScores()
	}
	return draft
}

func (s *RatingSession) View() *SessionResponse {
	resp := &SessionResponse{
		ID:              s.ID,
		RateeID:         s.RateeID,
		RoleContext:     s.RoleContext,
		State:           s.State,
		Eligibility:     s.Eligibility,
		Categories:      []CategoryScore{},
		IsAnonymous:     s.IsAnonymous,
		FeedbackMessage: s.FeedbackMessage,
		LastError:       s.LastError,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Matrix != nil {
		resp.Categories = s.Matrix.CategoryScores()
		resp.Aggregate = s.Matrix.Aggregate()
		resp.Submittable = s.Matrix.IsSubmittable()
		resp.Missing = s.Matrix.Missing()
	}
	return resp
}
