package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/handlers"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/middleware"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"github.com/tlogandesigns/site-visitor-dash/internal/testutil"
	"github.com/tlogandesigns/site-visitor-dash/pkg/util"
)

// fakeCRM answers every delivery with status and records the payloads.
type fakeCRM struct {
	mu       sync.Mutex
	status   int
	payloads []crmsync.Payload
}

func (f *fakeCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p crmsync.Payload
	_ = json.NewDecoder(r.Body).Decode(&p)

	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	status := f.status
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if status < 300 {
		_, _ = w.Write([]byte(`{"id":"crm-lead-1"}`))
	}
}

func (f *fakeCRM) setStatus(status int) {
	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
}

func (f *fakeCRM) received() []crmsync.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]crmsync.Payload(nil), f.payloads...)
}

type testEnv struct {
	*testutil.TestSetup
	Router *chi.Mux
	CRM    *fakeCRM
}

// setupRouter wires the handlers behind Auth and Actor the same way the
// server does, with a fake CRM behind a real pipeline and no job queue.
func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	tc := testutil.NewTestContext(t)
	logger := util.NopLogger()

	crm := &fakeCRM{}
	srv := httptest.NewServer(crm)
	t.Cleanup(srv.Close)

	pipeline := crmsync.NewPipeline(tc.DB,
		crmsync.NewWebhookClient(srv.URL, "test-key", 5*time.Second),
		crmsync.Config{Timeout: 5 * time.Second},
		logger,
	)
	authService := auth.NewService(tc.DB, tc.JWTService)
	accountService := accounts.NewService(tc.DB, logger)

	authHandler := handlers.NewAuthHandler(authService, time.Hour, false)
	leadHandler := handlers.NewLeadHandler(leads.NewService(tc.DB, pipeline, logger), nil, logger)
	agentHandler := handlers.NewAgentHandler(accountService)
	userHandler := handlers.NewUserHandler(accountService, logger)
	adminOnly := middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)

	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", authHandler.Login)
	r.Post("/api/v1/auth/logout", authHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Use(middleware.Actor(authService))

		r.Get("/api/v1/me", authHandler.Me)
		r.Get("/api/v1/stats", leadHandler.Stats)
		r.Get("/api/v1/sites", leadHandler.Sites)

		r.Route("/api/v1/leads", func(r chi.Router) {
			r.Get("/", leadHandler.List)
			r.Post("/", leadHandler.Create)
			r.Get("/{id}", leadHandler.Get)
			r.Patch("/{id}", leadHandler.Update)
			r.With(adminOnly).Delete("/{id}", leadHandler.Delete)
			r.Get("/{id}/notes", leadHandler.Notes)
			r.Post("/{id}/notes", leadHandler.AddNote)
			r.With(adminOnly).Post("/{id}/resync", leadHandler.Resync)
		})

		r.Route("/api/v1/agents", func(r chi.Router) {
			r.Get("/", agentHandler.List)
			r.With(adminOnly).Post("/", agentHandler.Create)
			r.With(adminOnly).Put("/{id}/sites", agentHandler.SetSites)
		})

		r.Route("/api/v1/users", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Put("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
		})
	})

	return &testEnv{TestSetup: tc, Router: r, CRM: crm}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.AuthenticatedRequest(t, method, path, body, token)
	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, req)
	return rr
}
