package entity

import (
	"time"

	"github.com/google/uuid"
)

// StartSessionRequest - запрос на начало сессии оценки.
// Если role_context не передан, он вычисляется по ролям пользователей
type StartSessionRequest struct {
	RateeID     int64  `json:"ratee_id" validate:"required,gt=0"`
	RateeRole   string `json:"ratee_role" validate:"omitempty,oneof=employee employer"`
	RoleContext string `json:"role_context" validate:"omitempty,oneof=EMPLOYEE_TO_COMPANY EMPLOYER_TO_EMPLOYEE"`
}

type SetScoreRequest struct {
	Category string `json:"category" validate:"required"`
	Score    int    `json:"score" validate:"required,min=1,max=5"`
}

// UpdateDetailsRequest - частичное обновление флага анонимности и текста отзыва
type UpdateDetailsRequest struct {
	IsAnonymous     *bool   `json:"is_anonymous"`
	FeedbackMessage *string `json:"feedback_message" validate:"omitempty,max=1000"`
}

type EligibilityRequest struct {
	RateeID     int64  `json:"ratee_id" validate:"required,gt=0"`
	RoleContext string `json:"role_context" validate:"required,oneof=EMPLOYEE_TO_COMPANY EMPLOYER_TO_EMPLOYEE"`
}

// PageQuery - параметры пагинации для списков оценок
type PageQuery struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"page_size" validate:"omitempty,min=1,max=100"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (q *PageQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
}

type SessionResponse struct {
	ID              uuid.UUID          `json:"id"`
	RateeID         int64              `json:"ratee_id"`
	RoleContext     RoleContext        `json:"role_context"`
	State           SessionState       `json:"state"`
	Eligibility     *EligibilityResult `json:"eligibility,omitempty"`
	Categories      []CategoryScore    `json:"categories"`
	Aggregate       float64            `json:"aggregate"`
	Submittable     bool               `json:"submittable"`
	Missing         []string           `json:"missing,omitempty"`
	IsAnonymous     bool               `json:"is_anonymous"`
	FeedbackMessage string             `json:"feedback_message"`
	LastError       string             `json:"last_error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type CategoriesResponse struct {
	RoleContext RoleContext `json:"role_context"`
	Categories  []string    `json:"categories"`
}

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error     string       `json:"error"`
	Message   string       `json:"message,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
	Retryable bool         `json:"retryable,omitempty"`
}

// SuccessResponse - стандартный ответ об успехе
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type SubmissionListResponse struct {
	Submissions []SubmissionAudit `json:"submissions"`
	Total       int               `json:"total"`
}

// SubmitResponse - результат успешной отправки: итоговое состояние сессии и созданная оценка
type SubmitResponse struct {
	Session *SessionResponse `json:"session"`
	Rating  *Rating          `json:"rating"`
}
