package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8084", cfg.Server.Address())
	assert.Equal(t, "http://localhost:8000", cfg.CoreAPI.URL)
	assert.Equal(t, 10*time.Second, cfg.CoreAPI.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Session.ViewCacheTTL)
	assert.Equal(t, time.Minute, cfg.Session.StaleSubmitAfter)
	assert.Equal(t, "rating_events", cfg.Kafka.Topic)
	assert.Equal(t, "@every 30s", cfg.Cron.CoreHealth)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CORE_API_TIMEOUT_SEC", "3")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("VIEW_CACHE_TTL", "bogus")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_DB", "7")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address())
	assert.Equal(t, 3*time.Second, cfg.CoreAPI.Timeout)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Session.ViewCacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 7, cfg.Redis.DB)
}

func TestLoad_InvalidSessionTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "-5m")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_StaleSubmitNotAboveCoreTimeout(t *testing.T) {
	t.Setenv("CORE_API_TIMEOUT_SEC", "30")
	t.Setenv("SESSION_STALE_SUBMIT_AFTER", "20s")

	_, err := Load()

	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "pg", Port: "5432", User: "u", Password: "p", DBName: "rating_service", SSLMode: "disable"}

	assert.Equal(t, "host=pg port=5432 user=u password=p dbname=rating_service sslmode=disable", db.DSN())
}
