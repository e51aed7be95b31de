package repository

import (
	"context"
	"fmt"
	"time"

	"peerrate/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const statsKeyPrefix = "user_stats"

type redisViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisViewCache создает кеш страниц оценок и статистики пользователей.
// Страницы одного пользователя лежат в одном hash, поэтому сбрасываются одним DEL
func NewRedisViewCache(client *redis.Client, ttl time.Duration) ViewCache {
	return &redisViewCache{
		client: client,
		ttl:    ttl,
	}
}

func pageKey(kind ViewKind, userID int64) string {
	return fmt.Sprintf("%s:%d", kind, userID)
}

func pageField(page, pageSize int) string {
	return fmt.Sprintf("%d:%d", page, pageSize)
}

func statsKey(userID int64) string {
	return fmt.Sprintf("%s:%d", statsKeyPrefix, userID)
}

// GetPage возвращает закешированную страницу; false - промах
func (c *redisViewCache) GetPage(ctx context.Context, kind ViewKind, userID int64, page, pageSize int) ([]byte, bool, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpHGet)
	defer timer.ObserveDuration()

	data, err := c.client.HGet(ctx, pageKey(kind, userID), pageField(page, pageSize)).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheMiss(serviceName, string(kind))
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpHGet)
		return nil, false, fmt.Errorf("failed to get %s page from cache: %w", kind, err)
	}

	metrics.RecordCacheHit(serviceName, string(kind))
	return data, true, nil
}

func (c *redisViewCache) SetPage(ctx context.Context, kind ViewKind, userID int64, page, pageSize int, data []byte) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpHSet)
	defer timer.ObserveDuration()

	key := pageKey(kind, userID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, pageField(page, pageSize), data)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpHSet)
		return fmt.Errorf("failed to set %s page in cache: %w", kind, err)
	}

	return nil
}

func (c *redisViewCache) GetStats(ctx context.Context, userID int64) ([]byte, bool, error) {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpGet)
	defer timer.ObserveDuration()

	data, err := c.client.Get(ctx, statsKey(userID)).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheMiss(serviceName, statsKeyPrefix)
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpGet)
		return nil, false, fmt.Errorf("failed to get user stats from cache: %w", err)
	}

	metrics.RecordCacheHit(serviceName, statsKeyPrefix)
	return data, true, nil
}

func (c *redisViewCache) SetStats(ctx context.Context, userID int64, data []byte) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpSet)
	defer timer.ObserveDuration()

	if err := c.client.Set(ctx, statsKey(userID), data, c.ttl).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpSet)
		return fmt.Errorf("failed to set user stats in cache: %w", err)
	}

	return nil
}

func (c *redisViewCache) InvalidateAfterSubmit(ctx context.Context, raterID, rateeID int64) error {
	timer := metrics.NewRedisTimer(serviceName, metrics.RedisOpDel)
	defer timer.ObserveDuration()

	keys := []string{
		pageKey(ViewRatingsGiven, raterID),
		pageKey(ViewRatingsReceived, rateeID),
		statsKey(rateeID),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		metrics.RecordRedisError(serviceName, metrics.RedisOpDel)
		return fmt.Errorf("failed to invalidate rating views: %w", err)
	}

	return nil
}
