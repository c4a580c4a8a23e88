package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/skill-assessment-service/internal/cache"
	"github.com/SAP-F-2025/skill-assessment-service/internal/certificate"
	"github.com/SAP-F-2025/skill-assessment-service/internal/config"
	"github.com/SAP-F-2025/skill-assessment-service/internal/events"
	"github.com/SAP-F-2025/skill-assessment-service/internal/handlers"
	"github.com/SAP-F-2025/skill-assessment-service/internal/livesession"
	"github.com/SAP-F-2025/skill-assessment-service/internal/payment"
	"github.com/SAP-F-2025/skill-assessment-service/internal/proctor"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/skill-assessment-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/skill-assessment-service/internal/sampler"
	"github.com/SAP-F-2025/skill-assessment-service/internal/services"
	"github.com/SAP-F-2025/skill-assessment-service/internal/utils"
	"github.com/SAP-F-2025/skill-assessment-service/internal/validator"
	"github.com/SAP-F-2025/skill-assessment-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Redis is optional: without it caching is skipped and the admission limiter is open
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", "error", err)
			redisClient = nil
		}
	}
	cacheManager := cache.NewCacheManager(redisClient)

	// Initialize repositories
	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}
	repo := repoManager.GetRepository()

	// Payment verification: the order table is authoritative, Midtrans settles pending orders
	var gateway payment.StatusChecker
	if cfg.Midtrans.ServerKey != "" {
		gateway = payment.NewMidtransChecker(cfg.Midtrans.ServerKey, cfg.Midtrans.Production)
	}
	verifier := payment.NewVerifier(repo.PaymentOrder(), gateway, slogLogger)

	// Certificates
	issuer, err := newCertificateIssuer(cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize certificate issuer: %v", err)
	}

	// Event bus
	bus, err := events.NewBus(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}
	publisher := events.NewWatermillPublisher(bus.Publisher, slogLogger)
	logger.Info("Event bus ready", "kind", bus.Kind)

	// Initialize services
	serviceManager := services.NewServiceManager(services.ServiceDependencies{
		Repo:      repo,
		Payments:  verifier,
		Sampler:   sampler.New(),
		Limiter:   cache.NewRateLimiter(cacheManager.RateLimit, cfg.AdmissionRatePerMinute, time.Minute),
		Publisher: publisher,
		Issuer:    issuer,
		Logger:    slogLogger,
		Validator: validator.New(),
	}, services.ServiceManagerConfig{
		MaxViolations:    cfg.Proctoring.MaxViolations,
		MinViewportWidth: cfg.Proctoring.MinViewportWidth,
		LateGrace:        cfg.Proctoring.LateGrace,
		RepairSchedule:   cfg.Certificate.RepairSchedule,
		RepairBatch:      cfg.Certificate.RepairBatch,
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	consumeCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	if err := events.Consume(consumeCtx, bus.Subscriber, events.TopicPaymentCompleted,
		services.PaymentCompletedHandler(serviceManager.Grant(), slogLogger), slogLogger); err != nil {
		log.Fatalf("Failed to subscribe to payment events: %v", err)
	}

	// Proctored websocket sessions
	live := livesession.NewBridge(
		serviceManager.Admission(),
		serviceManager.Submission(),
		serviceManager.Violation(),
		livesession.Config{
			Monitor: proctor.Config{
				MaxViolations:    cfg.Proctoring.MaxViolations,
				LivenessInterval: cfg.Proctoring.LivenessInterval,
				MinViewportWidth: cfg.Proctoring.MinViewportWidth,
			},
			FullscreenWait: cfg.Proctoring.FullscreenWait,
			AllowedOrigins: cfg.Proctoring.AllowedOrigins,
		},
		slogLogger,
	)

	// Initialize handlers
	authMiddleware := handlers.NewCasdoorAuthMiddleware(cfg.Casdoor, repo.User(), logger)
	healthChecks := []handlers.HealthCheck{
		{Name: "database", Check: serviceManager.HealthCheck},
	}
	if redisClient != nil {
		healthChecks = append(healthChecks, handlers.HealthCheck{Name: "redis", Check: cacheManager.HealthCheck})
	}
	handlerManager := handlers.NewHandlerManager(serviceManager, live, authMiddleware, repo.User(), logger, healthChecks...)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, cfg.Proctoring.AllowedOrigins)
	handlerManager.SetupRoutes(router)
	if cfg.Certificate.Storage == "local" {
		router.Static("/files", cfg.Certificate.LocalDir)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Open websocket sessions are hijacked and are not tracked by Shutdown
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	stopConsumers()
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if err := bus.Close(); err != nil {
		logger.Error("Failed to close event bus", "error", err)
	}

	// Closes the database pool and redis
	if err := repoManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}

func newCertificateIssuer(cfg *config.Config, logger *slog.Logger) (*certificate.Issuer, error) {
	var store certificate.Store
	switch cfg.Certificate.Storage {
	case "oss":
		s, err := certificate.NewOSSStore(cfg.OSS.Endpoint, cfg.OSS.AccessKeyID, cfg.OSS.AccessKeySecret, cfg.OSS.Bucket, cfg.OSS.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		s, err := certificate.NewLocalStore(cfg.Certificate.LocalDir, cfg.Certificate.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		store = s
	}

	renderer, err := certificate.NewImageRenderer(cfg.Certificate.TemplatePath)
	if err != nil {
		return nil, err
	}
	return certificate.NewIssuer(store, renderer, logger), nil
}
