package service

import (
	"errors"
	"fmt"
)

var (
	// Ошибки бизнес-логики для обработки в handlers
	ErrInvalidRatee           = errors.New("invalid ratee id")
	ErrInvalidUser            = errors.New("invalid user id")
	ErrEligibilityUnavailable = errors.New("eligibility check unavailable")
	ErrSubmitFailed           = errors.New("rating submission failed")
	ErrSubmitInProgress       = errors.New("rating submission already in progress")
	ErrSessionNotFound        = errors.New("rating session not found")
	ErrInvalidState           = errors.New("operation not allowed in current session state")
	ErrSessionBusy            = errors.New("rating session is being modified, retry")
	ErrCoreUnauthorized       = errors.New("core api rejected the access token")
)

// SubmitError - отказ Core API при создании оценки.
// Message передается пользователю без изменений
type SubmitError struct {
	StatusCode int // 0 если ответа от Core API не было
	Message    string
}

func (e *SubmitError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrSubmitFailed, e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", ErrSubmitFailed, e.StatusCode, e.Message)
}

func (e *SubmitError) Unwrap() error {
	return ErrSubmitFailed
}
