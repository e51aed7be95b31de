package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoleContext - направление оценки: сотрудник оценивает компанию или работодатель сотрудника
type RoleContext string

const (
	RoleContextEmployeeToCompany  RoleContext = "EMPLOYEE_TO_COMPANY"
	RoleContextEmployerToEmployee RoleContext = "EMPLOYER_TO_EMPLOYEE"
)

func (rc RoleContext) Valid() bool {
	return rc == RoleContextEmployeeToCompany || rc == RoleContextEmployerToEmployee
}

func ParseRoleContext(value string) (RoleContext, error) {
	rc := RoleContext(strings.ToUpper(strings.TrimSpace(value)))
	if !rc.Valid() {
		return "", ErrInvalidRoleContext
	}
	return rc, nil
}

type UserRole string

const (
	UserRoleEmployee UserRole = "employee"
	UserRoleEmployer UserRole = "employer"
)

func (r UserRole) Valid() bool {
	return r == UserRoleEmployee || r == UserRoleEmployer
}

// RaterContext возвращает единственный контекст, в котором пользователь с этой ролью может оценивать
func (r UserRole) RaterContext() (RoleContext, bool) {
	switch r {
	case UserRoleEmployee:
		return RoleContextEmployeeToCompany, true
	case UserRoleEmployer:
		return RoleContextEmployerToEmployee, true
	}
	return "", false
}

// ContextFor определяет RoleContext по ролям оценивающего и оцениваемого
// employee -> employer = EMPLOYEE_TO_COMPANY, employer -> employee = EMPLOYER_TO_EMPLOYEE
func ContextFor(raterRole, rateeRole UserRole) (RoleContext, error) {
	if !raterRole.Valid() || !rateeRole.Valid() {
		return "", ErrInvalidUserRole
	}
	switch {
	case raterRole == UserRoleEmployee && rateeRole == UserRoleEmployer:
		return RoleContextEmployeeToCompany, nil
	case raterRole == UserRoleEmployer && rateeRole == UserRoleEmployee:
		return RoleContextEmployerToEmployee, nil
	}
	return "", ErrInvalidRoleContext
}

// Actor - текущий пользователь из JWT, передается явно во все операции
type Actor struct {
	UserID int64
	Role   UserRole
	Token  string // исходный bearer токен, пробрасывается в Core API
}

type CategoryScore struct {
	Category string `json:"category"`
	Score    int    `json:"score"` // 0 - не выставлена, 1..5 - оценка
}

type EligibilityResult struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// Rating - созданная в Core API оценка
type Rating struct {
	ID              int64           `json:"id"`
	Ratee           int64           `json:"ratee"`
	RoleContext     RoleContext     `json:"role_context"`
	IsAnonymous     bool            `json:"is_anonymous"`
	FeedbackMessage string          `json:"feedback_message"`
	CategoryScores  []CategoryScore `json:"category_scores"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type RatingEvent struct {
	EventType   string      `json:"event_type"` // RATING_SUBMITTED
	RatingID    int64       `json:"rating_id"`
	RaterID     *int64      `json:"rater_id,omitempty"` // не передается для анонимных оценок
	RateeID     int64       `json:"ratee_id"`
	RoleContext RoleContext `json:"role_context"`
	Aggregate   float64     `json:"aggregate"`
	IsAnonymous bool        `json:"is_anonymous"`
	Timestamp   time.Time   `json:"timestamp"`
}

const EventTypeRatingSubmitted = "RATING_SUBMITTED"

type SubmissionOutcome string

const (
	SubmissionOutcomeSuccess SubmissionOutcome = "success"
	SubmissionOutcomeFailed  SubmissionOutcome = "failed"
)

// SubmissionAudit - журнал попыток отправки оценок в PostgreSQL
type SubmissionAudit struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID    uuid.UUID         `json:"session_id" gorm:"type:uuid;not null"`
	RaterID      int64             `json:"rater_id" gorm:"not null;index"`
	RateeID      int64             `json:"ratee_id" gorm:"not null"`
	RoleContext  RoleContext       `json:"role_context" gorm:"type:varchar(32);not null"`
	Outcome      SubmissionOutcome `json:"outcome" gorm:"type:varchar(16);not null"`
	RatingID     *int64            `json:"rating_id,omitempty" gorm:"uniqueIndex"`
	Aggregate    float64           `json:"aggregate" gorm:"type:decimal(3,1);not null"`
	ErrorMessage string            `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

func (SubmissionAudit) TableName() string {
	return "rating_submissions"
}
