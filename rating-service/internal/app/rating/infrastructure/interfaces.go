package infrastructure

import (
	"context"
	"fmt"

	"peerrate/rating-service/internal/app/rating/entity"
)

// MessagePublisher интерфейс для отправки сообщений в очередь (Kafka)
// Используется для dependency injection и упрощения тестирования
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// CoreAPIClient - клиент внешнего Core API (аутентификация, хранение оценок, статистика).
// Токен пользователя передается явно в каждый вызов
type CoreAPIClient interface {
	FetchCategories(ctx context.Context, token string, rc entity.RoleContext) ([]byte, error)
	CheckEligibility(ctx context.Context, token string, rateeID int64, rc entity.RoleContext) (*entity.EligibilityResult, error)
	CreateRating(ctx context.Context, token string, req *entity.CreateRatingRequest) (*entity.Rating, error)
	GetMyRatingsGiven(ctx context.Context, token string, page, pageSize int) ([]byte, error)
	GetMyRatingsReceived(ctx context.Context, token string, page, pageSize int) ([]byte, error)
	GetUserStats(ctx context.Context, token string, userID int64) ([]byte, error)
	Health(ctx context.Context) error
}

// APIError - ответ Core API с кодом не 2xx.
// Message содержит сообщение бэкенда без изменений
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("core api returned status %d: %s", e.StatusCode, e.Message)
}

// Temporary - ошибки 5xx и 429 не являются бизнес-отказом
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// BusinessRejection - Core API отказал по бизнес-правилу (уже оценивал, нет общей работы).
// 401/403/404 сюда не входят: это ошибка авторизации или адреса, а не ответ "нельзя"
func (e *APIError) BusinessRejection() bool {
	switch e.StatusCode {
	case 400, 409, 422:
		return true
	}
	return false
}
