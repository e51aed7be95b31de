package service

import (
	"context"

	"peerrate/rating-service/internal/app/rating/entity"
)

// ViewInvalidator сбрасывает закешированные представления после отправки оценки
type ViewInvalidator interface {
	InvalidateAfterSubmit(ctx context.Context, raterID, rateeID int64)
}

// AuditRecorder пишет журнал попыток отправки. Ошибки записи не возвращаются
type AuditRecorder interface {
	Record(ctx context.Context, session *entity.RatingSession, rating *entity.Rating, submitErr error)
}
