package service

import (
	"context"
	"encoding/json"
	"fmt"

	"peerrate/pkg/logger"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
	"peerrate/rating-service/internal/app/rating/repository"
)

// ViewService отдает списки оценок и статистику пользователя через Redis кеш.
// Ошибки кеша не прерывают запрос, данные берутся из Core API
type ViewService struct {
	core  infrastructure.CoreAPIClient
	cache repository.ViewCache
}

func NewViewService(core infrastructure.CoreAPIClient, cache repository.ViewCache) *ViewService {
	return &ViewService{
		core:  core,
		cache: cache,
	}
}

func (s *ViewService) MyRatingsGiven(ctx context.Context, actor entity.Actor, query entity.PageQuery) (json.RawMessage, error) {
	query.Normalize()
	return s.page(ctx, repository.ViewRatingsGiven, actor, query, s.core.GetMyRatingsGiven)
}

func (s *ViewService) MyRatingsReceived(ctx context.Context, actor entity.Actor, query entity.PageQuery) (json.RawMessage, error) {
	query.Normalize()
	return s.page(ctx, repository.ViewRatingsReceived, actor, query, s.core.GetMyRatingsReceived)
}

type pageFetcher func(ctx context.Context, token string, page, pageSize int) ([]byte, error)

func (s *ViewService) page(
	ctx context.Context,
	kind repository.ViewKind,
	actor entity.Actor,
	query entity.PageQuery,
	fetch pageFetcher,
) (json.RawMessage, error) {
	cached, ok, err := s.cache.GetPage(ctx, kind, actor.UserID, query.Page, query.PageSize)
	if err != nil {
		logger.Warn().Err(err).Str("view", string(kind)).Msg("Rating view cache read failed")
	}
	if ok {
		return cached, nil
	}

	data, err := fetch(ctx, actor.Token, query.Page, query.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to get %s: core api returned invalid json", kind)
	}

	if err := s.cache.SetPage(ctx, kind, actor.UserID, query.Page, query.PageSize, data); err != nil {
		logger.Warn().Err(err).Str("view", string(kind)).Msg("Rating view cache write failed")
	}

	return data, nil
}

func (s *ViewService) UserStats(ctx context.Context, actor entity.Actor, userID int64) (json.RawMessage, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}

	cached, ok, err := s.cache.GetStats(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("User stats cache read failed")
	}
	if ok {
		return cached, nil
	}

	data, err := s.core.GetUserStats(ctx, actor.Token, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to get user stats: core api returned invalid json")
	}

	if err := s.cache.SetStats(ctx, userID, data); err != nil {
		logger.Warn().Err(err).Int64("user_id", userID).Msg("User stats cache write failed")
	}

	return data, nil
}

// InvalidateAfterSubmit сбрасывает given у оценившего и received/stats у оцениваемого
func (s *ViewService) InvalidateAfterSubmit(ctx context.Context, raterID, rateeID int64) {
	if err := s.cache.InvalidateAfterSubmit(ctx, raterID, rateeID); err != nil {
		logger.Error().
			Err(err).
			Int64("rater_id", raterID).
			Int64("ratee_id", rateeID).
			Msg("Failed to invalidate rating views")
	}
}
