package entity

import (
	"errors"
	"strings"
)

var (
	// Ошибки доменной модели, используются service и handler слоями
	ErrInvalidRoleContext = errors.New("invalid role context")
	ErrInvalidUserRole    = errors.New("invalid user role")
	ErrNoCategories       = errors.New("no rating categories for role context")
	ErrInvalidCategory    = errors.New("category name must be non-empty and unique")
	ErrUnknownCategory    = errors.New("unknown rating category")
	ErrScoreOutOfRange    = errors.New("score must be between 1 and 5")
	ErrInvalidTransition  = errors.New("invalid session state transition")
	ErrValidation         = errors.New("validation error")
)

// FieldError - одна ошибка валидации, привязанная к полю или категории
type FieldError struct {
	Field    string `json:"field"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// ValidationError собирает все нарушения черновика оценки сразу,
// чтобы клиент мог подсветить каждую категорию отдельно
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		name := f.Field
		if f.Category != "" {
			name = f.Field + "[" + f.Category + "]"
		}
		parts = append(parts, name+": "+f.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func (e *ValidationError) add(field, category, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Category: category, Message: message})
}

// Categories возвращает категории, по которым есть ошибки
func (e *ValidationError) Categories() []string {
	var categories []string
	for _, f := range e.Fields {
		if f.Category != "" {
			categories = append(categories, f.Category)
		}
	}
	return categories
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewFieldError строит ValidationError из одного нарушения
func NewFieldError(field, category, message string) error {
	verr := &ValidationError{}
	verr.add(field, category, message)
	return verr
}
