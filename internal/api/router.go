package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/handlers"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/middleware"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"gorm.io/gorm"
)

// loginAttemptsPerMinute caps password guessing per client IP.
const loginAttemptsPerMinute = 10

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	LeadService    *leads.Service
	AccountService *accounts.Service
	AsynqClient    *asynq.Client // nil disables manual resync
	AllowedOrigins []string      // CORS allowed origins
	RateLimitReqs  int           // Per-user requests per window, 0 disables
	RateLimitSecs  int           // Rate limit window in seconds
	CookieTTL      time.Duration
	SecureCookies  bool
	CRMConfigured  bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to the local dashboard dev servers
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis, cfg.CRMConfigured)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.CookieTTL, cfg.SecureCookies)
	leadHandler := handlers.NewLeadHandler(cfg.LeadService, cfg.AsynqClient, cfg.Logger)
	agentHandler := handlers.NewAgentHandler(cfg.AccountService)
	userHandler := handlers.NewUserHandler(cfg.AccountService, cfg.Logger)

	adminOnly := middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)

		// Public auth endpoints
		r.With(middleware.RateLimit(loginAttemptsPerMinute, 60)).Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.Actor(cfg.AuthService))
			if cfg.RateLimitReqs > 0 {
				r.Use(middleware.RateLimitByUser(cfg.RateLimitReqs, cfg.RateLimitSecs))
			}

			r.Get("/me", authHandler.Me)
			r.Get("/stats", leadHandler.Stats)
			r.Get("/sites", leadHandler.Sites)

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", leadHandler.List)
				r.Post("/", leadHandler.Create)
				r.Get("/{id}", leadHandler.Get)
				r.Patch("/{id}", leadHandler.Update)
				r.With(adminOnly).Delete("/{id}", leadHandler.Delete)
				r.Get("/{id}/notes", leadHandler.Notes)
				r.Post("/{id}/notes", leadHandler.AddNote)
				r.With(adminOnly).Post("/{id}/resync", leadHandler.Resync)
			})

			r.Route("/agents", func(r chi.Router) {
				r.Get("/", agentHandler.List)
				r.With(adminOnly).Post("/", agentHandler.Create)
				r.With(adminOnly).Put("/{id}/sites", agentHandler.SetSites)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
				r.Put("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})
		})
	})

	return &Router{r}
}
