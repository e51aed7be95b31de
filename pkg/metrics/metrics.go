package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP Метрики (общие для всех сервисов)
// =============================================================================

// HttpRequestsTotal - счётчик всех HTTP запросов
// Labels: service, method, path, status
// Пример запроса PromQL: rate(http_requests_total{service="rating-service"}[5m])
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration - гистограмма времени ответа (latency_seconds из ТЗ)
// Labels: service, method, path
// Пример: histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests in seconds",
		// Бакеты для микросервисов: от 1ms до 10s
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight - текущее количество обрабатываемых запросов
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Database Метрики
// =============================================================================

// DbQueryDuration - время выполнения SQL запросов
var DbQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"service", "operation", "table"},
)

// DbConnectionsOpen - количество открытых соединений с БД
var DbConnectionsOpen = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_connections_open",
		Help: "Number of open database connections",
	},
	[]string{"service", "state"}, // state: idle, in_use
)

// DbErrors - счётчик ошибок базы данных
var DbErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_errors_total",
		Help: "Total number of database errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Redis Метрики (redis_ops из ТЗ)
// =============================================================================

// RedisCacheHits - попадания в кеш
var RedisCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"service", "key_prefix"},
)

// RedisCacheMisses - промахи кеша
var RedisCacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"service", "key_prefix"},
)

// RedisOperationDuration - время операций Redis
var RedisOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
	[]string{"service", "operation"}, // operation: get, set, del, etc.
)

// RedisErrors - ошибки Redis
var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka Метрики (kafka_lag из ТЗ)
// =============================================================================

// KafkaMessagesProduced - отправленные сообщения
var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

// KafkaProduceDuration - время отправки сообщения
var KafkaProduceDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kafka_produce_duration_seconds",
		Help:    "Duration of Kafka produce operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	},
	[]string{"service", "topic"},
)

// KafkaErrors - ошибки Kafka
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"}, // operation: produce
)

// =============================================================================
// Business Метрики (оценки пользователей)
// =============================================================================

// RatingSubmissions - отправки оценок в Core API
var RatingSubmissions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rating_submissions_total",
		Help: "Total number of rating submissions",
	},
	[]string{"status"}, // success, failed, rejected
)

// RatingAggregate - распределение итоговых средних оценок
var RatingAggregate = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rating_aggregate_score",
		Help:    "Distribution of submitted aggregate scores",
		Buckets: []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
	},
	[]string{"role_context"},
)

// RatingEligibilityChecks - результаты проверок права на оценку
var RatingEligibilityChecks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rating_eligibility_checks_total",
		Help: "Total number of rating eligibility checks",
	},
	[]string{"result"}, // eligible, ineligible, error
)

// RatingCategoryFallbacks - использование встроенного списка категорий
var RatingCategoryFallbacks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rating_category_fallbacks_total",
		Help: "Total number of times fallback rating categories were used",
	},
	[]string{"role_context", "reason"}, // reason: fetch_error, empty, malformed
)

// RatingSessionsStarted - начатые сессии оценки
var RatingSessionsStarted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rating_sessions_started_total",
		Help: "Total number of rating sessions started",
	},
	[]string{"role_context"},
)

// CoreAPIUp - доступность Core API по результатам последней проверки (1/0)
var CoreAPIUp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "core_api_up",
		Help: "Whether the Core API answered the last health probe",
	},
)

// CoreAPIRequestDuration - время запросов к Core API
var CoreAPIRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "core_api_request_duration_seconds",
		Help:    "Duration of Core API requests in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"method", "path", "status"},
)
