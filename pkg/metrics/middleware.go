package metrics

import (
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// Gin Middleware (для всех сервисов)
// =============================================================================

// GinPrometheusMiddleware возвращает Gin middleware,
// который собирает метрики http_requests_total и http_request_duration_seconds
func GinPrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Пропускаем метрики для /metrics и /health endpoints
		if skipPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()

		// Увеличиваем счётчик активных запросов
		HttpRequestsInFlight.WithLabelValues(serviceName).Inc()
		defer HttpRequestsInFlight.WithLabelValues(serviceName).Dec()

		// Выполняем запрос
		c.Next()

		// Записываем метрики
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		// Шаблон маршрута gin, если он есть, иначе нормализованный путь
		path := c.FullPath()
		if path == "" {
			path = normalizePath(c.Request.URL.Path)
		}

		HttpRequestsTotal.WithLabelValues(serviceName, c.Request.Method, path, status).Inc()
		HttpRequestDuration.WithLabelValues(serviceName, c.Request.Method, path).Observe(duration)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func skipPath(path string) bool {
	switch path {
	case "/metrics", "/health", "/health/readiness":
		return true
	}
	return false
}

var (
	uuidSegment    = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	numericSegment = regexp.MustCompile(`/\d+(/|$)`)
)

// normalizePath нормализует путь для уменьшения кардинальности метрик
// Заменяет UUID и числовые ID на плейсхолдеры
func normalizePath(path string) string {
	path = uuidSegment.ReplaceAllString(path, "/:id")
	path = numericSegment.ReplaceAllString(path, "/:id$1")

	// Ограничиваем длину пути
	if len(path) > 100 {
		path = path[:100]
	}

	return path
}
