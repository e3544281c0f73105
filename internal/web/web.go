package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bcnelson/seo-insights/internal/api/middleware"
	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

//go:embed templates static
var content embed.FS

// Options holds the dependencies of the web UI.
type Options struct {
	Auth          *service.AuthService
	Groups        *service.GroupService
	Queries       *service.QueryService
	Clusters      *service.ClusterService
	Authenticator *middleware.Authenticator
	Sessions      *auth.SessionManager
	// States and OIDC are nil when single sign-on is disabled.
	States        *auth.StateStore
	OIDC          *auth.OIDCProvider
	OIDCLogoutURL string
	LoginLimiter  *middleware.RateLimiter
	Logger        *zap.Logger
}

// Server holds dependencies for web handlers.
type Server struct {
	auth          *service.AuthService
	groups        *service.GroupService
	queries       *service.QueryService
	clusters      *service.ClusterService
	authn         *middleware.Authenticator
	sessions      *auth.SessionManager
	states        *auth.StateStore
	oidc          *auth.OIDCProvider
	oidcLogoutURL string
	logger        *zap.Logger
	templates     map[string]*template.Template
	funcMap       template.FuncMap
}

// NewRouter creates a new web router with all routes configured.
func NewRouter(opts Options) http.Handler {
	s := &Server{
		auth:          opts.Auth,
		groups:        opts.Groups,
		queries:       opts.Queries,
		clusters:      opts.Clusters,
		authn:         opts.Authenticator,
		sessions:      opts.Sessions,
		states:        opts.States,
		oidc:          opts.OIDC,
		oidcLogoutURL: opts.OIDCLogoutURL,
		logger:        opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	// Parse all templates
	s.templates = s.parseTemplates()

	r := chi.NewRouter()

	// Static files
	staticFS, _ := fs.Sub(content, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Public routes
	r.Get("/login", s.handleLoginPage)
	r.Get("/forgot-password", s.handleForgotPasswordPage)
	r.Get("/reset-password", s.handleResetPasswordPage)
	r.Group(func(r chi.Router) {
		if opts.LoginLimiter != nil {
			r.Use(opts.LoginLimiter.Middleware)
		}
		r.Post("/login", s.handleLogin)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)
	})
	r.Get("/logout", s.handleLogout)
	r.Post("/logout", s.handleLogout)

	// Single sign-on
	r.Get("/auth/oidc/login", s.handleOIDCLogin)
	r.Get("/auth/oidc/callback", s.handleOIDCCallback)

	// Protected routes (require session)
	r.Group(func(r chi.Router) {
		r.Use(s.sessionAuth)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/queries", http.StatusSeeOther)
		})

		// Queries
		r.Get("/queries", s.handleQueries)
		r.Post("/queries/select", s.handleQuerySelect)

		// Groups
		r.Get("/groups", s.handleGroupsList)
		r.Post("/groups", s.handleGroupCreate)
		r.Get("/groups/{id}", s.handleGroupDetail)
		r.Post("/groups/{id}/rename", s.handleGroupRename)
		r.Delete("/groups/{id}", s.handleGroupDelete)
		r.Delete("/groups/{id}/items/{queryId}", s.handleGroupItemRemove)
		r.Get("/groups/{id}/add", s.handleAddDialog)
		r.Post("/groups/{id}/add/select", s.handleAddDialogSelect)
		r.Post("/groups/{id}/items", s.handleGroupItemsAdd)

		// Clusters
		r.Get("/clusters", s.handleClustersPage)
		r.Post("/clusters/suggest", s.handleClustersSuggest)
		r.Post("/clusters/select", s.handleClustersSelect)
		r.Post("/clusters/accept", s.handleClustersAccept)
	})

	return r
}

// parseTemplates parses all templates with custom functions.
func (s *Server) parseTemplates() map[string]*template.Template {
	s.funcMap = template.FuncMap{
		"join":     strings.Join,
		"lower":    strings.ToLower,
		"dict":     dict,
		"percent":  formatPercent,
		"position": formatPosition,
		"number":   formatNumber,
		"date":     formatDate,
	}

	templates := make(map[string]*template.Template)

	// Read base template and components
	baseContent, _ := content.ReadFile("templates/base.html")
	navContent, _ := content.ReadFile("templates/components/nav.html")
	flashContent, _ := content.ReadFile("templates/components/flash.html")
	modalContent, _ := content.ReadFile("templates/components/modal.html")

	// Combine base with components
	baseWithComponents := string(baseContent) + string(navContent) + string(flashContent) + string(modalContent)

	// Parse each page template separately with the base
	pageFiles, _ := fs.Glob(content, "templates/pages/*.html")
	for _, pagePath := range pageFiles {
		pageName := strings.TrimSuffix(filepath.Base(pagePath), ".html")

		pageContent, _ := content.ReadFile(pagePath)

		tmpl, err := template.New(pageName).Funcs(s.funcMap).Parse(baseWithComponents + string(pageContent))
		if err != nil {
			panic("failed to parse template " + pageName + ": " + err.Error())
		}

		templates[pageName] = tmpl
	}

	return templates
}

// dict creates a map from key-value pairs for use in templates.
func dict(values ...any) map[string]any {
	if len(values)%2 != 0 {
		return nil
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		m[key] = values[i+1]
	}
	return m
}

// PageData holds common data passed to all page templates.
type PageData struct {
	Title   string
	Active  string // Current nav item
	User    string
	Flash   *FlashMessage
	Content any
}

// FlashMessage represents a flash message.
type FlashMessage struct {
	Type    string // "success", "error", "info"
	Message string
}
