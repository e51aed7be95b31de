package handler

import (
	"context"
	"net/http"
	"time"

	"peerrate/pkg/metrics"
	"peerrate/rating-service/internal/app/rating/processor"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "rating-service"

type CoreStatusProvider interface {
	Status() processor.ProbeStatus
}

type HealthCheckHandler struct {
	db          *gorm.DB
	redisClient *redis.Client
	coreStatus  CoreStatusProvider
}

func NewHealthCheckHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	coreStatus CoreStatusProvider,
) *HealthCheckHandler {
	return &HealthCheckHandler{
		db:          db,
		redisClient: redisClient,
		coreStatus:  coreStatus,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// HealthCheck GET /health
// Недоступность Core API не делает сервис unhealthy: ошибка вернется пользователю при запросе
func (h *HealthCheckHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	if err := h.checkRedis(ctx); err != nil {
		checks["redis"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		checks["redis"] = "healthy"
	}

	checks["core_api"] = h.coreAPIStatus()

	response := HealthResponse{
		Status:    overallStatus,
		Service:   serviceName,
		Checks:    checks,
		Timestamp: time.Now(),
	}

	if overallStatus != "healthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Readiness GET /health/readiness
func (h *HealthCheckHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.checkDatabase(ctx); err != nil {
		c.String(http.StatusServiceUnavailable, "database not ready")
		return
	}

	if err := h.checkRedis(ctx); err != nil {
		c.String(http.StatusServiceUnavailable, "redis not ready")
		return
	}

	c.String(http.StatusOK, "ready")
}

func (h *HealthCheckHandler) Liveness(c *gin.Context) {
	c.String(http.StatusOK, "alive")
}

func (h *HealthCheckHandler) checkDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	metrics.SetDbConnections(serviceName, sqlDB.Stats())
	return sqlDB.PingContext(ctx)
}

func (h *HealthCheckHandler) checkRedis(ctx context.Context) error {
	return h.redisClient.Ping(ctx).Err()
}

func (h *HealthCheckHandler) coreAPIStatus() string {
	if h.coreStatus == nil {
		return "unknown"
	}
	status := h.coreStatus.Status()
	switch {
	case status.CheckedAt.IsZero():
		return "unknown"
	case status.Up:
		return "healthy"
	default:
		return "warning: " + status.Error
	}
}

func (h *HealthCheckHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.HealthCheck)
	router.GET("/health/readiness", h.Readiness)
	router.GET("/health/liveness", h.Liveness)
}
