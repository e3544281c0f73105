package api

import (
	"net/http"

	"github.com/bcnelson/seo-insights/internal/api/handler"
	"github.com/bcnelson/seo-insights/internal/api/middleware"
	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Auth          *service.AuthService
	Groups        *service.GroupService
	Queries       *service.QueryService
	Index         *service.IndexService
	Clusters      *service.ClusterService
	Authenticator *middleware.Authenticator
	Sessions      *auth.SessionManager
	LoginLimiter  *middleware.RateLimiter
	HealthChecks  map[string]handler.HealthCheck
	// TrustProxy lets forwarding headers set the client address used for
	// logging and login rate limits.
	TrustProxy bool
	// Web serves the HTML UI at the root; nil leaves it unmounted.
	Web    http.Handler
	Logger *zap.Logger
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	// Health check and metrics (no auth required)
	r.Get("/health", handler.NewHealthHandler(d.HealthChecks).Health)
	r.Handle("/metrics", promhttp.Handler())

	// Mount web UI (no Content-Type middleware - serves HTML)
	if d.Web != nil {
		r.Mount("/", d.Web)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentType)

		authHandler := handler.NewAuthHandler(d.Auth, d.Sessions, d.Logger)

		// Public account routes
		r.Group(func(r chi.Router) {
			if d.LoginLimiter != nil {
				r.Use(d.LoginLimiter.Middleware)
			}
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/forgot-password", authHandler.ForgotPassword)
			r.Post("/auth/reset-password", authHandler.ResetPassword)
		})
		r.Post("/auth/logout", authHandler.Logout)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(d.Authenticator.Middleware)

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/change-password", authHandler.ChangePassword)

			// API Keys
			keyHandler := handler.NewAPIKeyHandler(d.Auth)
			r.Post("/keys", keyHandler.Create)
			r.Get("/keys", keyHandler.List)
			r.Delete("/keys/{id}", keyHandler.Delete)

			// Queries
			queryHandler := handler.NewQueryHandler(d.Queries, d.Index)
			r.Get("/queries", queryHandler.List)
			r.Post("/queries", queryHandler.Upsert)
			r.Post("/queries/reindex", queryHandler.Reindex)

			// Groups
			groupHandler := handler.NewGroupHandler(d.Groups)
			r.Get("/groups", groupHandler.List)
			r.Post("/groups", groupHandler.Create)
			r.Route("/groups/{id}", func(r chi.Router) {
				r.Get("/", groupHandler.Get)
				r.Patch("/", groupHandler.Rename)
				r.Delete("/", groupHandler.Delete)

				r.Get("/items", groupHandler.Items)
				r.Post("/items", groupHandler.AddItems)
				r.Delete("/items/{queryId}", groupHandler.RemoveItem)
			})

			// Clusters
			clusterHandler := handler.NewClusterHandler(d.Clusters)
			r.Post("/clusters/suggest", clusterHandler.Suggest)
			r.Post("/clusters/accept", clusterHandler.Accept)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			middleware.WriteError(w, http.StatusNotFound, domain.ErrCodeNotFound, "no such endpoint")
		})
	})

	return r
}
