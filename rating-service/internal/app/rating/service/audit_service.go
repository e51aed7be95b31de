package service

import (
	"context"
	"errors"
	"fmt"

	"peerrate/pkg/logger"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/repository"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 100
)

// AuditService ведет журнал попыток отправки оценок
type AuditService struct {
	repo repository.SubmissionRepository
}

func NewAuditService(repo repository.SubmissionRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record сохраняет результат отправки. Ошибка БД только логируется
func (s *AuditService) Record(ctx context.Context, session *entity.RatingSession, rating *entity.Rating, submitErr error) {
	audit := &entity.SubmissionAudit{
		SessionID:   session.ID,
		RaterID:     session.RaterID,
		RateeID:     session.RateeID,
		RoleContext: session.RoleContext,
		Outcome:     entity.SubmissionOutcomeSuccess,
	}
	if session.Matrix != nil {
		audit.Aggregate = session.Matrix.Aggregate()
	}
	if rating != nil {
		id := rating.ID
		audit.RatingID = &id
	}
	if submitErr != nil {
		audit.Outcome = entity.SubmissionOutcomeFailed
		audit.ErrorMessage = submitErr.Error()

		var submitError *SubmitError
		if errors.As(submitErr, &submitError) {
			audit.ErrorMessage = submitError.Message
		}
	}

	if err := s.repo.Create(ctx, audit); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			logger.Warn().
				Str("session_id", session.ID.String()).
				Msg("Rating submission already recorded")
			return
		}
		logger.Error().
			Err(err).
			Str("session_id", session.ID.String()).
			Msg("Failed to record rating submission")
	}
}

// List возвращает последние попытки отправки пользователя
func (s *AuditService) List(ctx context.Context, actor entity.Actor, limit int) ([]entity.SubmissionAudit, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	audits, err := s.repo.ListByRater(ctx, actor.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	if audits == nil {
		audits = []entity.SubmissionAudit{}
	}

	return audits, nil
}
