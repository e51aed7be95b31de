package repository

import (
	"context"
	"errors"
	"fmt"

	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	submissionsTable = "rating_submissions"
	// SQLSTATE unique_violation
	pgUniqueViolation = "23505"
)

// submissionRepository реализует SubmissionRepository для работы с PostgreSQL через GORM
type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository создает репозиторий журнала отправок
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Create сохраняет запись об отправке оценки
func (r *submissionRepository) Create(ctx context.Context, audit *entity.SubmissionAudit) error {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpInsert, submissionsTable)
	defer timer.ObserveDuration()

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}

	if err := r.db.WithContext(ctx).Create(audit).Error; err != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpInsert)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to create submission audit: %w", err)
	}

	return nil
}

// ListByRater возвращает последние попытки отправки пользователя, новые первыми
func (r *submissionRepository) ListByRater(ctx context.Context, raterID int64, limit int) ([]entity.SubmissionAudit, error) {
	timer := metrics.NewDbTimer(serviceName, metrics.DbOpSelect, submissionsTable)
	defer timer.ObserveDuration()

	var audits []entity.SubmissionAudit
	result := r.db.WithContext(ctx).
		Where("rater_id = ?", raterID).
		Order("created_at DESC").
		Limit(limit).
		Find(&audits)

	if result.Error != nil {
		metrics.RecordDbError(serviceName, metrics.DbOpSelect)
		return nil, fmt.Errorf("failed to list submission audits: %w", result.Error)
	}

	return audits, nil
}
