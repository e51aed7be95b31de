package service

import (
	"context"
	"errors"
	"fmt"

	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
)

const (
	DefaultIneligibleReason = "You are not eligible to rate this user."
	SelfRatingReason        = "You cannot rate yourself"
	RoleMismatchReason      = "Your role cannot rate in this context"
)

// EligibilityChecker проверяет право пользователя оценить другого пользователя.
// Самооценка и несовпадение роли отсекаются локально без запроса в Core API
type EligibilityChecker struct {
	core infrastructure.CoreAPIClient
}

func NewEligibilityChecker(core infrastructure.CoreAPIClient) *EligibilityChecker {
	return &EligibilityChecker{core: core}
}

func (c *EligibilityChecker) Check(ctx context.Context, actor entity.Actor, rateeID int64, rc entity.RoleContext) (*entity.EligibilityResult, error) {
	if rateeID <= 0 {
		return nil, ErrInvalidRatee
	}
	if !rc.Valid() {
		return nil, entity.ErrInvalidRoleContext
	}

	if rateeID == actor.UserID {
		return c.ineligible(SelfRatingReason), nil
	}
	if raterContext, ok := actor.Role.RaterContext(); ok && raterContext != rc {
		return c.ineligible(RoleMismatchReason), nil
	}

	result, err := c.core.CheckEligibility(ctx, actor.Token, rateeID, rc)
	if err != nil {
		var apiErr *infrastructure.APIError
		if errors.As(err, &apiErr) {
			if apiErr.BusinessRejection() {
				// Сообщение Core API показываем пользователю
				return c.ineligible(apiErr.Message), nil
			}
			if apiErr.StatusCode == 401 {
				metrics.RecordEligibilityCheck("error")
				return nil, fmt.Errorf("%w: %s", ErrCoreUnauthorized, apiErr.Message)
			}
		}
		metrics.RecordEligibilityCheck("error")
		return nil, fmt.Errorf("%w: %v", ErrEligibilityUnavailable, err)
	}

	if !result.Eligible {
		return c.ineligible(result.Reason), nil
	}

	metrics.RecordEligibilityCheck("eligible")
	return &entity.EligibilityResult{Eligible: true}, nil
}

func (c *EligibilityChecker) ineligible(reason string) *entity.EligibilityResult {
	if reason == "" {
		reason = DefaultIneligibleReason
	}
	metrics.RecordEligibilityCheck("ineligible")
	return &entity.EligibilityResult{Eligible: false, Reason: reason}
}
