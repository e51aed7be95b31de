package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"peerrate/pkg/logger"
	"peerrate/rating-service/internal/app/rating/config"
	"peerrate/rating-service/internal/app/rating/entity"
	"peerrate/rating-service/internal/app/rating/handler"
	corehttp "peerrate/rating-service/internal/app/rating/infrastructure/http"
	"peerrate/rating-service/internal/app/rating/infrastructure/messaging"
	"peerrate/rating-service/internal/app/rating/processor"
	"peerrate/rating-service/internal/app/rating/repository"
	"peerrate/rating-service/internal/app/rating/service"
)

const serviceName = "rating-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.Log.Level)

	if cfg.Log.LogstashAddr != "" {
		if err := logger.InitLogstash(cfg.Log.LogstashAddr, serviceName, cfg.Log.Level); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", cfg.Log.LogstashAddr).Msg("Connected to Logstash")
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// === POSTGRESQL (журнал отправок) ===
	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	if err := db.AutoMigrate(&entity.SubmissionAudit{}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Str("database", cfg.Database.DBName).Msg("Connected to PostgreSQL")

	// === REDIS (сессии и кеш списков) ===
	redisClient, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Str("address", cfg.Redis.Address()).Int("db", cfg.Redis.DB).Msg("Connected to Redis")

	kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer kafkaProducer.Close()
	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Msg("Initialized Kafka producer")

	coreClient := corehttp.NewCoreClient(cfg.CoreAPI.URL, cfg.CoreAPI.Timeout)

	// === РЕПОЗИТОРИИ ===
	sessionRepo := repository.NewRedisSessionRepository(redisClient, cfg.Session.TTL)
	viewCache := repository.NewRedisViewCache(redisClient, cfg.Session.ViewCacheTTL)
	submissionRepo := repository.NewSubmissionRepository(db)

	// === СЕРВИСЫ ===
	categoryResolver := service.NewCategoryResolver(coreClient)
	eligibilityChecker := service.NewEligibilityChecker(coreClient)
	ratingSubmitter := service.NewRatingSubmitter(coreClient)
	viewService := service.NewViewService(coreClient, viewCache)
	auditService := service.NewAuditService(submissionRepo)
	sessionService := service.NewSessionService(
		sessionRepo,
		categoryResolver,
		eligibilityChecker,
		ratingSubmitter,
		viewService,
		auditService,
		kafkaProducer,
	).WithStaleSubmitAfter(cfg.Session.StaleSubmitAfter)

	// === CRON: проверка доступности Core API ===
	prober := processor.NewCoreHealthProber(coreClient)
	if err := prober.Start(ctx, cfg.Cron.CoreHealth); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start Core API health prober")
	}
	defer prober.Stop()
	logger.Info().Str("schedule", cfg.Cron.CoreHealth).Msg("Core API health prober started")

	authMiddleware := handler.NewAuthMiddleware(cfg.JWT.Secret)
	ratingHandler := handler.NewRatingHandler(categoryResolver, eligibilityChecker, sessionService)
	viewHandler := handler.NewViewHandler(viewService, auditService)
	healthHandler := handler.NewHealthCheckHandler(db, redisClient, prober)
	router := handler.SetupRoutes(ratingHandler, viewHandler, healthHandler, authMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Str("core_api", cfg.CoreAPI.URL).
			Msg("Starting Rating Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Rating Service...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info().Msg("Rating Service stopped gracefully")
}

// connectDB устанавливает соединение с PostgreSQL используя GORM
func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	// Retry logic для устойчивости при запуске в Docker
	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else if pingErr := sqlDB.Ping(); pingErr != nil {
				err = pingErr
			} else {
				sqlDB.SetMaxOpenConns(10)
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetConnMaxLifetime(5 * time.Minute)
				sqlDB.SetConnMaxIdleTime(1 * time.Minute)
				return db, nil
			}
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to PostgreSQL, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}

// connectRedis устанавливает соединение с Redis
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	var err error
	for i := 0; i < 10; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to Redis, retrying...")
		time.Sleep(3 * time.Second)
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis after 10 attempts: %w", err)
}
