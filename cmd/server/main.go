package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/api"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/database"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"github.com/tlogandesigns/site-visitor-dash/pkg/config"
	"github.com/tlogandesigns/site-visitor-dash/pkg/queue"
	"github.com/tlogandesigns/site-visitor-dash/pkg/util"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting lead tracker server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	if err := database.EnsureSuperAdmin(context.Background(), db, &cfg.SuperAdmin, logger); err != nil {
		logger.Error("failed to bootstrap super admin", "error", err)
		os.Exit(1)
	}

	if cfg.JWT.Secret == "change-me-in-production" && !cfg.Server.IsDevelopment() {
		logger.Warn("JWT_SECRET is the default value, set it before exposing the server")
	}

	// Redis is optional: without it there is no manual resync
	var redisClient *redis.Client
	var asynqClient *asynq.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("failed to connect to Redis, manual resync disabled", "error", err)
			redisClient.Close()
			redisClient = nil
		} else {
			asynqClient = queue.NewClient(&cfg.Redis)
		}
	}

	if cfg.CRM.WebhookURL == "" {
		logger.Warn("CRM_WEBHOOK_URL not set, leads will be stored but not synced")
	}

	// Initialize services
	pipeline := crmsync.NewPipeline(db,
		crmsync.NewWebhookClient(cfg.CRM.WebhookURL, cfg.CRM.APIKey, cfg.CRM.Timeout()),
		crmsync.ConfigFrom(&cfg.CRM),
		logger,
	)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		LeadService:    leads.NewService(db, pipeline, logger),
		AccountService: accounts.NewService(db, logger),
		AsynqClient:    asynqClient,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		CookieTTL:      cfg.JWT.Expiry(),
		SecureCookies:  !cfg.Server.IsDevelopment(),
		CRMConfigured:  cfg.CRM.WebhookURL != "",
	})

	// Create HTTP server. The write timeout covers one CRM delivery.
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + cfg.CRM.Timeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}

	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
