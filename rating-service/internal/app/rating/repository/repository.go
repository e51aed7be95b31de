package repository

import (
	"context"
	"errors"

	"peerrate/rating-service/internal/app/rating/entity"

	"github.com/google/uuid"
)

var (
	// Стандартные ошибки репозитория для обработки в service layer
	ErrSessionNotFound     = errors.New("rating session not found")
	ErrConcurrentUpdate    = errors.New("rating session was modified concurrently")
	ErrDuplicateSubmission = errors.New("submission audit already recorded")
)

// SessionFunc изменяет сессию внутри транзакции; ошибка отменяет запись
type SessionFunc func(session *entity.RatingSession) error

// SessionRepository хранит сессии оценки в Redis с TTL
type SessionRepository interface {
	Create(ctx context.Context, session *entity.RatingSession) error
	Get(ctx context.Context, id uuid.UUID) (*entity.RatingSession, error)
	// Update читает сессию, применяет fn и сохраняет результат атомарно (WATCH/MULTI)
	Update(ctx context.Context, id uuid.UUID, fn SessionFunc) (*entity.RatingSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ViewKind - тип кешируемого списка оценок
type ViewKind string

const (
	ViewRatingsGiven    ViewKind = "ratings_given"
	ViewRatingsReceived ViewKind = "ratings_received"
)

// ViewCache кеширует ответы Core API для страниц "мои оценки" и статистики пользователя
type ViewCache interface {
	GetPage(ctx context.Context, kind ViewKind, userID int64, page, pageSize int) ([]byte, bool, error)
	SetPage(ctx context.Context, kind ViewKind, userID int64, page, pageSize int, data []byte) error
	GetStats(ctx context.Context, userID int64) ([]byte, bool, error)
	SetStats(ctx context.Context, userID int64, data []byte) error
	// InvalidateAfterSubmit удаляет given у оценившего, received и stats у оцениваемого
	InvalidateAfterSubmit(ctx context.Context, raterID, rateeID int64) error
}

// SubmissionRepository - журнал отправок оценок в PostgreSQL
type SubmissionRepository interface {
	Create(ctx context.Context, audit *entity.SubmissionAudit) error
	ListByRater(ctx context.Context, raterID int64, limit int) ([]entity.SubmissionAudit, error)
}
