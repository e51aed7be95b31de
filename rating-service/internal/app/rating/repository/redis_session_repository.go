package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	serviceName       = "rating-service"
	sessionKeyPrefix  = "rating_session"
	maxUpdateAttempts = 5
)

type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration // TTL неактивной сессии, продлевается при каждом изменении
}

// NewRedisSessionRepository создает Redis репозиторий сессий оценки
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(id uuid.UUID) string {
	// Ключ формата: rating_session:<uuid>
	return fmt.Sprintf("%s:%s", sessionKeyPrefix, id.String())
}

// Create сохраняет новую сессию с TTL
func (r *redisSessionRepository) Create(ctx context.Context, session *entity.RatingSession) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal rating session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to save rating session to Redis: %w", err)
	}

	return nil
}

// Get получает сессию по ID
func (r *redisSessionRepository) Get(ctx context.Context, id uuid.UUID) (*entity.RatingSession, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, fmt.Errorf("failed to get rating session from Redis: %w", err)
	}

	return decodeSession(data)
}

// Update выполняет read-modify-write под WATCH.
// Если ключ изменился между чтением и EXEC, попытка повторяется
func (r *redisSessionRepository) Update(ctx context.Context, id uuid.UUID, fn SessionFunc) (*entity.RatingSession, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpTx)
	defer timer.ObserveDuration()

	key := sessionKey(id)
	var updated *entity.RatingSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get rating session from Redis: %w", err)
		}

		session, err := decodeSession(data)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}

		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal rating session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		updated = session
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Сессию изменил параллельный запрос, читаем заново
			continue
		}
		if !errors.Is(err, ErrSessionNotFound) {
			metrics.RecordRedisError(serviceName, metrics.RedisOpTx)
		}
		return nil, err
	}

	return nil, ErrConcurrentUpdate
}

// Delete удаляет сессию. Отсутствующая сессия возвращает ErrSessionNotFound
func (r *redisSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	deleted, err := r.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to delete rating session from Redis: %w", err)
	}
	if deleted == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func decodeSession(data []byte) (*entity.RatingSession, error) {
	var session entity.RatingSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rating session: %w", err)
	}
	return &session, nil
}
