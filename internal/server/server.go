package server

import (
	"fmt"
	"net/http"
	"time"

	"printsync/internal/config"
	"printsync/internal/database"
	"printsync/internal/metrics"
	custommiddleware "printsync/internal/middleware"
	"printsync/internal/queue"
	"printsync/internal/repository"
	"printsync/internal/service"
	"printsync/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires the webhook receiver, the admin API and the operational endpoints
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	router := NewRouter(cfg, logger, db, redisClient)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

// NewRouter builds the HTTP routes
func NewRouter(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) http.Handler {
	router := chi.NewRouter()

	// Add basic middleware
	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		dbHealth := db.Health()
		health := map[string]interface{}{"status": "ok", "database": dbHealth, "redis": "up"}
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "down"
			status = http.StatusServiceUnavailable
		}
		if status != http.StatusOK {
			health["status"] = "degraded"
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Handle("/metrics", metrics.Handler())

	// Initialize repositories
	productRepo := repository.NewProductRepository(db.DB())
	variationRepo := repository.NewVariationRepository(db.DB())
	syncLogRepo := repository.NewSyncLogRepository(db.DB())

	// Initialize services
	taskQueue := queue.NewRedisQueue(redisClient, queue.DefaultPrefix, logger)
	dispatcher := service.NewDispatcher(productRepo, taskQueue, cfg.Sync.TaskDelay, logger)
	tokens := service.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessExpiry)*time.Minute)

	// Initialize handlers
	webhookHandler := transport.NewWebhookHandler(dispatcher, cfg.Printify.WebhookSecret, logger)
	adminHandler := transport.NewAdminHandler(productRepo, variationRepo, syncLogRepo, dispatcher, logger)

	webhookLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Sync.WebhookRateLimit,
		Window:            time.Minute,
		KeyPrefix:         "printsync:ratelimit:webhook",
	}, logger)

	webhookHandler.RegisterRoutes(router, webhookLimiter)

	// CORS runs first inside /api so browser preflights never reach auth
	adminHandler.RegisterRoutes(router,
		custommiddleware.AdminCORS(cfg.Server),
		custommiddleware.AuthMiddleware(tokens, logger),
		custommiddleware.RequireAdmin(logger),
	)

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
