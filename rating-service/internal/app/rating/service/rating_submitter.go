package service

import (
	"context"
	"errors"
	"sync"

	"peerrate/pkg/logger"
	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
)

const unreachableMessage = "Unable to reach the rating service. Please try again."

type submitKey struct {
	raterID     int64
	rateeID     int64
	roleContext entity.RoleContext
}

// RatingSubmitter отправляет черновик оценки в Core API.
// Для одной тройки (rater, ratee, role_context) одновременно выполняется не больше одной отправки.
// Повторов нет, кеши сбрасывает вызывающий
type RatingSubmitter struct {
	core infrastructure.CoreAPIClient

	mu       sync.Mutex
	inFlight map[submitKey]struct{}
}

func NewRatingSubmitter(core infrastructure.CoreAPIClient) *RatingSubmitter {
	return &RatingSubmitter{
		core:     core,
		inFlight: make(map[submitKey]struct{}),
	}
}

func (s *RatingSubmitter) Submit(ctx context.Context, actor entity.Actor, draft *entity.RatingDraft) (*entity.Rating, error) {
	if err := draft.Validate(); err != nil {
		metrics.RecordRatingSubmission("rejected")
		return nil, err
	}

	key := submitKey{raterID: actor.UserID, rateeID: draft.RateeID, roleContext: draft.RoleContext}
	if !s.acquire(key) {
		metrics.RecordRatingSubmission("in_progress")
		return nil, ErrSubmitInProgress
	}
	defer s.release(key)

	rating, err := s.core.CreateRating(ctx, actor.Token, draft.Payload())
	if err != nil {
		metrics.RecordRatingSubmission("failed")

		var apiErr *infrastructure.APIError
		if errors.As(err, &apiErr) {
			return nil, &SubmitError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}

		logger.Error().
			Err(err).
			Int64("ratee_id", draft.RateeID).
			Str("role_context", string(draft.RoleContext)).
			Msg("Failed to send rating to Core API")
		return nil, &SubmitError{Message: unreachableMessage}
	}

	metrics.RecordRatingSubmission("success")
	return rating, nil
}

func (s *RatingSubmitter) acquire(key submitKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *RatingSubmitter) release(key submitKey) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}
