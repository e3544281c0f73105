package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/config"
	"github.com/bcnelson/seo-insights/internal/logging"
	"github.com/bcnelson/seo-insights/internal/mail"
	"github.com/bcnelson/seo-insights/internal/search"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/bcnelson/seo-insights/internal/storage/sql"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "seo-insights",
		Short:        "Search query groups dashboard and API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newUserCmd(a),
	)
	return root
}

// openStore connects to the configured database, creating the directory of
// a SQLite file first. Migrations run when migrate is set.
func (a *app) openStore(ctx context.Context, migrate bool) (*sql.Store, error) {
	db := a.cfg.Database
	if err := db.Validate(); err != nil {
		return nil, err
	}

	if db.Driver == "sqlite3" && !strings.HasPrefix(db.DSN, "file:") && db.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(db.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	store, err := sql.Open(db.Driver, db.DSN)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}

	version, err := store.MigrationVersion(ctx)
	if err != nil {
		a.logger.Warn("could not read schema version", zap.Error(err))
	} else {
		a.logger.Info("database ready", zap.String("driver", db.Driver), zap.Int64("schema_version", version))
	}
	return store, nil
}

// newMailer picks the delivery driver for password reset mail.
func newMailer(cfg config.MailConfig, logger *zap.Logger) mail.Mailer {
	switch cfg.Driver {
	case "file":
		return mail.NewFileOutbox(cfg.OutboxPath)
	case "smtp":
		return mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
		})
	default:
		return mail.NewLog(logger)
	}
}

// offlineServices builds the account and query services for commands that
// run without the HTTP server. Search goes straight to the store and no
// reindex is scheduled.
func (a *app) offlineServices(store *sql.Store) (*service.AuthService, *service.QueryService) {
	authService := service.NewAuthService(
		store,
		auth.NewSQLTokenStore(store),
		newMailer(a.cfg.Mail, a.logger),
		service.AuthOptions{
			BaseURL:     a.cfg.Server.BaseURL,
			ResetTTL:    a.cfg.Auth.ResetTokenTTL,
			AllowSignup: true,
		},
		a.logger,
	)

	storeSearcher := search.NewStoreSearcher(store)
	index := service.NewIndexService(store, storeSearcher, 0, false, a.logger)
	queries := service.NewQueryService(store, storeSearcher, index, a.logger)
	return authService, queries
}
