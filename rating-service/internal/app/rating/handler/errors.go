package handler

import (
	"errors"
	"net/http"

	"peerrate/pkg/logger"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/infrastructure"
	"peerrate/rating-service/internal/app/rating/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondError переводит ошибки сервисов в HTTP ответ
func respondError(c *gin.Context, err error) {
	var validationErr *entity.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusUnprocessableEntity, entity.ErrorResponse{
			Error:  "validation failed",
			Fields: validationErr.Fields,
		})
		return
	}

	var submitErr *service.SubmitError
	if errors.As(err, &submitErr) {
		status := http.StatusBadGateway
		if isClientError(submitErr.StatusCode) {
			status = submitErr.StatusCode
		}
		c.JSON(status, entity.ErrorResponse{
			Error:     "rating submission failed",
			Message:   submitErr.Message,
			Retryable: status == http.StatusBadGateway || submitErr.StatusCode == http.StatusTooManyRequests,
		})
		return
	}

	switch {
	case errors.Is(err, entity.ErrInvalidRoleContext),
		errors.Is(err, entity.ErrInvalidUserRole),
		errors.Is(err, service.ErrInvalidRatee),
		errors.Is(err, service.ErrInvalidUser):
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Rating session not found"})
		return
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrSubmitInProgress),
		errors.Is(err, entity.ErrInvalidTransition):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, service.ErrSessionBusy):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: err.Error(), Retryable: true})
		return
	case errors.Is(err, service.ErrCoreUnauthorized):
		c.JSON(http.StatusUnauthorized, entity.ErrorResponse{Error: "Invalid or expired token"})
		return
	case errors.Is(err, service.ErrEligibilityUnavailable):
		c.JSON(http.StatusBadGateway, entity.ErrorResponse{
			Error:     "Eligibility check is temporarily unavailable",
			Retryable: true,
		})
		return
	}

	// Ошибки Core API из списков и статистики
	var apiErr *infrastructure.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if isClientError(apiErr.StatusCode) {
			status = apiErr.StatusCode
		}
		c.JSON(status, entity.ErrorResponse{
			Error:     "Core API request failed",
			Message:   apiErr.Message,
			Retryable: apiErr.Temporary(),
		})
		return
	}

	logger.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled handler error")
	c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Internal server error"})
}

func isClientError(status int) bool {
	return status >= 400 && status < 500
}

func formatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
