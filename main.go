package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"kachalka/booking"
	"kachalka/config"
	"kachalka/consumer"
	"kachalka/handlers"
	"kachalka/middleware"
	"kachalka/models"
	"kachalka/monitoring"
	"kachalka/rating"
	"kachalka/utils"
)

func main() {
	logger := log.New(os.Stdout, "KACHALKA: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if err := utils.InitSentry(cfg.SentryDSN); err != nil {
		logger.Printf("Sentry initialization failed: %v", err)
	}

	monitoring.Init()

	// Пытаемся подключиться к Redis с ретраями
	var redisClient utils.RedisClient
	maxRetries := 5
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		redisClient, err = utils.NewRedisClient(cfg.RedisHost, cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Printf("Attempt %d: Failed to connect to Redis: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		logger.Fatalf("Failed to initialize Redis after %d attempts: %v", maxRetries, err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("Error closing Redis connection: %v", err)
		}
	}()

	repo, err := models.NewPostgresRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Printf("Error closing database connection: %v", err)
		}
	}()

	kafkaProducer, err := utils.NewKafkaProducer(cfg.KafkaBroker)
	if err != nil {
		logger.Printf("Kafka producer unavailable, events disabled: %v", err)
		kafkaProducer = nil
	} else {
		defer kafkaProducer.Close()
	}

	esClient, err := utils.NewElasticsearchClient(cfg.ElasticURL)
	if err != nil {
		logger.Printf("Elasticsearch unavailable, indexing disabled: %v", err)
		esClient = nil
	}

	clock := booking.SystemClock()
	engine := booking.NewEngine(repo, clock, cfg)
	lifecycle := booking.NewLifecycle(repo, clock, cfg)
	aggregator := rating.NewAggregator(repo)
	sweeper := booking.NewSweeper(lifecycle, repo, clock, cfg.SweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	if kafkaProducer != nil {
		eventConsumer := consumer.NewEventConsumer(repo, redisClient, esClient, cfg.KafkaBroker)
		eventConsumer.Start(ctx)
		defer eventConsumer.Stop()
	}

	authHandler := handlers.NewAuthHandler(repo, redisClient, cfg.AuthTokenTTL)
	gymHandler := handlers.NewGymHandler(repo, redisClient)
	trainerHandler := handlers.NewTrainerHandler(repo, clock, cfg)
	reviewHandler := handlers.NewReviewHandler(repo, aggregator, kafkaProducer)
	recordHandler := handlers.NewRecordHandler(repo, engine, lifecycle, kafkaProducer, cfg.Location)
	userHandler := handlers.NewUserHandler(repo, cfg.Location)

	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		middleware.PrometheusMetrics(),
		middleware.SentryMiddleware(),
		middleware.ErrorHandler(),
		middleware.Authenticate(repo, redisClient),
	)

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			hctx, hcancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer hcancel()

			if err := redisClient.SetToCache(hctx, "healthcheck", "ping", 10*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"details": gin.H{"redis": "unavailable"},
					"error":   err.Error(),
				})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"details": gin.H{"redis": "available"},
			})
		})

		api.POST("/register/", authHandler.Register)
		api.POST("/auth/login/", authHandler.Login)
		api.POST("/auth/logout/", authHandler.Logout)
		api.GET("/auth/current-user/", authHandler.CurrentUser)

		api.GET("/gyms/", gymHandler.ListGyms)
		api.GET("/gyms/:id/", gymHandler.GetGym)
		api.GET("/cities/", gymHandler.ListCities)

		api.GET("/trainers/", trainerHandler.ListTrainers)
		api.GET("/trainers/:id/", trainerHandler.GetTrainer)
		api.GET("/specializations/", trainerHandler.ListSpecializations)

		api.GET("/reviews/", reviewHandler.ListReviews)
		api.POST("/reviews/", reviewHandler.CreateReview)
		api.POST("/gym-reviews/", middleware.RequireAuth(), reviewHandler.CreateGymReview)

		api.GET("/users/:id/", userHandler.GetUser)

		api.GET("/records/", recordHandler.ListRecords)
		api.POST("/records/create/", recordHandler.CreateRecords)
		api.POST("/records/:id/cancel/", recordHandler.CancelRecord)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Printf("Server is running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Server shutdown error: %v", err)
	}
}
