package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bcnelson/seo-insights/internal/api"
	"github.com/bcnelson/seo-insights/internal/api/handler"
	"github.com/bcnelson/seo-insights/internal/api/middleware"
	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/clusters"
	"github.com/bcnelson/seo-insights/internal/search"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/bcnelson/seo-insights/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	store, err := a.openStore(ctx, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer store.Close()

	checks := map[string]handler.HealthCheck{"database": store.Ping}

	// Reset tokens and login throttling
	var tokens auth.ResetTokenStore = auth.NewSQLTokenStore(store)
	loginLimiter := middleware.NewRateLimiter(cfg.Auth.LoginRatePerMin)
	if cfg.Redis.Enabled() {
		redisTokens, err := auth.NewRedisTokenStore(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer redisTokens.Close()
		tokens = redisTokens
		loginLimiter.WithRedis(redisTokens.Client())
		checks["redis"] = redisTokens.Ping
		logger.Info("storing reset tokens and login limits in redis")
	}

	// Search
	storeSearcher := search.NewStoreSearcher(store)
	var searcher search.Searcher = storeSearcher
	var indexer search.Indexer = storeSearcher
	if cfg.Search.Backend == "meilisearch" {
		meili := search.NewMeili(cfg.Search.MeiliURL, cfg.Search.MeiliAPIKey, cfg.Search.MeiliIndex, cfg.Search.HealthInterval, logger)
		defer meili.Close()
		searcher = search.NewFallback(meili, storeSearcher, logger)
		indexer = meili
		logger.Info("using meilisearch", zap.String("url", cfg.Search.MeiliURL), zap.String("index", cfg.Search.MeiliIndex))
	}
	index := service.NewIndexService(store, indexer, cfg.Search.Debounce, cfg.Search.ReindexOnWrite, logger)
	defer index.Stop()

	// Cluster suggestions
	var suggester clusters.Suggester = clusters.NewLexical(0)
	if cfg.Clusters.Provider == "openai" {
		suggester = clusters.NewOpenAI(clusters.OpenAIConfig{
			APIKey:  cfg.Clusters.OpenAIAPIKey,
			Model:   cfg.Clusters.OpenAIModel,
			BaseURL: cfg.Clusters.OpenAIURL,
			Timeout: cfg.Clusters.Timeout,
		}, suggester, logger)
	}

	// Services
	authService := service.NewAuthService(store, tokens, newMailer(cfg.Mail, logger), service.AuthOptions{
		BaseURL:     cfg.Server.BaseURL,
		ResetTTL:    cfg.Auth.ResetTokenTTL,
		AllowSignup: cfg.Auth.AllowSignup,
	}, logger)
	groups := service.NewGroupService(store, logger)
	queries := service.NewQueryService(store, searcher, index, logger)
	clusterService := service.NewClusterService(store, groups, suggester, cfg.Clusters.MaxQueries, logger)

	// Sessions and authentication
	secret, err := cfg.Auth.GetSessionSecretBytes()
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionManager(secret, cfg.Auth.SessionDuration, cfg.Auth.SecureCookies)
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	authenticator := middleware.NewAuthenticator(store, sessions, cfg.Auth.BootstrapAPIKey, cfg.Auth.BootstrapEmail, logger)

	webOpts := web.Options{
		Auth:          authService,
		Groups:        groups,
		Queries:       queries,
		Clusters:      clusterService,
		Authenticator: authenticator,
		Sessions:      sessions,
		LoginLimiter:  loginLimiter,
		Logger:        logger,
	}
	if cfg.OIDC.Enabled {
		provider, err := auth.NewOIDCProvider(ctx, auth.OIDCOptions{
			IssuerURL:      cfg.OIDC.IssuerURL,
			ClientID:       cfg.OIDC.ClientID,
			ClientSecret:   cfg.OIDC.ClientSecret,
			RedirectURL:    cfg.OIDC.RedirectURL,
			Scopes:         cfg.OIDC.GetScopes(),
			AllowedDomains: cfg.OIDC.GetAllowedDomains(),
		})
		if err != nil {
			return fmt.Errorf("initializing OIDC provider: %w", err)
		}
		states, err := auth.NewStateStore(secret, cfg.Auth.SecureCookies)
		if err != nil {
			return fmt.Errorf("creating OIDC state store: %w", err)
		}
		webOpts.OIDC = provider
		webOpts.States = states
		webOpts.OIDCLogoutURL = cfg.OIDC.LogoutURL
		logger.Info("OIDC login enabled", zap.String("issuer", cfg.OIDC.IssuerURL))
	}

	router := api.NewRouter(api.Deps{
		Auth:          authService,
		Groups:        groups,
		Queries:       queries,
		Index:         index,
		Clusters:      clusterService,
		Authenticator: authenticator,
		Sessions:      sessions,
		LoginLimiter:  loginLimiter,
		HealthChecks:  checks,
		TrustProxy:    cfg.Server.TrustProxy,
		Web:           web.NewRouter(webOpts),
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", server.Addr), zap.String("base_url", cfg.Server.BaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	if cfg.Search.Backend == "meilisearch" {
		// The external index starts from whatever the store holds.
		g.Go(func() error {
			if _, err := index.ForceReindex(gctx); err != nil {
				logger.Warn("initial reindex failed", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}
