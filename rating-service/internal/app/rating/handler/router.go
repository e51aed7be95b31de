package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"peerrate/pkg/logger"
	"peerrate/pkg/metrics"
)

// SetupRoutes настраивает все маршруты приложения с использованием Gin
func SetupRoutes(
	ratingHandler *RatingHandler,
	viewHandler *ViewHandler,
	healthHandler *HealthCheckHandler,
	authMiddleware *AuthMiddleware,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())

	// JSON logging middleware для HTTP-запросов (ELK Stack)
	router.Use(logger.GinLoggerMiddleware())

	router.Use(metrics.GinPrometheusMiddleware(serviceName))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowWildcard:    true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposeHeaders:    []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler.RegisterRoutes(router)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ratings := router.Group("/ratings")
	ratings.Use(authMiddleware.Authenticate())
	{
		ratings.GET("/categories", ratingHandler.GetCategories)
		ratings.POST("/eligibility", ratingHandler.CheckEligibility)

		sessions := ratings.Group("/sessions")
		{
			sessions.POST("", ratingHandler.StartSession)
			sessions.GET("/:id", ratingHandler.GetSession)
			sessions.PUT("/:id/scores", ratingHandler.SetScore)
			sessions.PATCH("/:id", ratingHandler.UpdateDetails)
			sessions.POST("/:id/submit", ratingHandler.SubmitSession)
			sessions.DELETE("/:id", ratingHandler.CancelSession)
		}

		ratings.GET("/my/given", viewHandler.MyRatingsGiven)
		ratings.GET("/my/received", viewHandler.MyRatingsReceived)
		ratings.GET("/submissions", viewHandler.ListSubmissions)
	}

	users := router.Group("/users")
	users.Use(authMiddleware.Authenticate())
	{
		users.GET("/:id/stats", viewHandler.UserStats)
	}

	return router
}
