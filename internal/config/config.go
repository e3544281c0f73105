package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	OIDC     OIDCConfig
	Redis    RedisConfig
	Search   SearchConfig
	Clusters ClustersConfig
	Mail     MailConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host    string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port    int    `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `env:"SERVER_TRUST_PROXY" envDefault:"false"`
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
// Driver is one of sqlite3, postgres (lib/pq) or pgx.
type DatabaseConfig struct {
	Driver      string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN         string `env:"DB_DSN" envDefault:"data/seo-insights.db"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// AuthConfig holds session and password settings.
type AuthConfig struct {
	SessionSecret   string        `env:"SESSION_SECRET"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"24h"`
	SecureCookies   bool          `env:"SECURE_COOKIES" envDefault:"false"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	AllowSignup     bool          `env:"ALLOW_SIGNUP" envDefault:"true"`
	LoginRatePerMin int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	BootstrapAPIKey string        `env:"BOOTSTRAP_API_KEY"`
	BootstrapEmail  string        `env:"BOOTSTRAP_USER_EMAIL"`
}

// GetSessionSecretBytes returns the session secret as bytes.
func (c *AuthConfig) GetSessionSecretBytes() ([]byte, error) {
	if c.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	// Try to decode as hex first (64 hex chars = 32 bytes)
	if len(c.SessionSecret) == 64 {
		decoded, err := hex.DecodeString(c.SessionSecret)
		if err == nil {
			return decoded, nil
		}
	}
	// Otherwise use as raw bytes (must be exactly 32 bytes)
	if len(c.SessionSecret) != 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be 32 bytes (or 64 hex characters)")
	}
	return []byte(c.SessionSecret), nil
}

// OIDCConfig holds OIDC authentication configuration.
type OIDCConfig struct {
	Enabled        bool   `env:"OIDC_ENABLED" envDefault:"false"`
	IssuerURL      string `env:"OIDC_ISSUER_URL"`
	ClientID       string `env:"OIDC_CLIENT_ID"`
	ClientSecret   string `env:"OIDC_CLIENT_SECRET"`
	RedirectURL    string `env:"OIDC_REDIRECT_URL"`
	Scopes         string `env:"OIDC_SCOPES" envDefault:"openid,email,profile"`
	AllowedDomains string `env:"OIDC_ALLOWED_DOMAINS"`
	LogoutURL      string `env:"OIDC_LOGOUT_URL"`
}

// GetScopes returns the OIDC scopes as a slice.
func (c *OIDCConfig) GetScopes() []string {
	if c.Scopes == "" {
		return []string{"openid", "email", "profile"}
	}
	return strings.Split(c.Scopes, ",")
}

// GetAllowedDomains returns the allowed domains as a slice.
func (c *OIDCConfig) GetAllowedDomains() []string {
	return splitList(c.AllowedDomains)
}

// RedisConfig enables the Redis-backed reset token store when URL is set.
type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.URL != ""
}

// SearchConfig selects the query search backend.
// Backend is "store" (SQL LIKE) or "meilisearch".
type SearchConfig struct {
	Backend        string        `env:"SEARCH_BACKEND" envDefault:"store"`
	MeiliURL       string        `env:"MEILI_URL" envDefault:"http://localhost:7700"`
	MeiliAPIKey    string        `env:"MEILI_API_KEY"`
	MeiliIndex     string        `env:"MEILI_INDEX" envDefault:"queries"`
	HealthInterval time.Duration `env:"SEARCH_HEALTH_INTERVAL" envDefault:"30s"`
	ReindexOnWrite bool          `env:"SEARCH_REINDEX_ON_WRITE" envDefault:"true"`
	Debounce       time.Duration `env:"SEARCH_REINDEX_DEBOUNCE" envDefault:"2s"`
}

// ClustersConfig selects the cluster suggestion provider.
// Provider is "lexical" or "openai".
type ClustersConfig struct {
	Provider     string        `env:"CLUSTERS_PROVIDER" envDefault:"lexical"`
	OpenAIAPIKey string        `env:"OPENAI_API_KEY"`
	OpenAIModel  string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIURL    string        `env:"OPENAI_BASE_URL"`
	Timeout      time.Duration `env:"CLUSTERS_TIMEOUT" envDefault:"30s"`
	MaxQueries   int           `env:"CLUSTERS_MAX_QUERIES" envDefault:"500"`
}

// MailConfig selects how password reset mails are delivered.
// Driver is "log", "file" or "smtp".
type MailConfig struct {
	Driver       string `env:"MAIL_DRIVER" envDefault:"log"`
	From         string `env:"MAIL_FROM" envDefault:"no-reply@localhost"`
	OutboxPath   string `env:"MAIL_OUTBOX_PATH" envDefault:"data/outbox.jsonl"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	if err := env.Parse(&cfg.OIDC); err != nil {
		return nil, fmt.Errorf("parsing oidc config: %w", err)
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, fmt.Errorf("parsing redis config: %w", err)
	}
	if err := env.Parse(&cfg.Search); err != nil {
		return nil, fmt.Errorf("parsing search config: %w", err)
	}
	if err := env.Parse(&cfg.Clusters); err != nil {
		return nil, fmt.Errorf("parsing clusters config: %w", err)
	}
	if err := env.Parse(&cfg.Mail); err != nil {
		return nil, fmt.Errorf("parsing mail config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if _, err := c.Auth.GetSessionSecretBytes(); err != nil {
		return err
	}

	if c.OIDC.Enabled {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when OIDC is enabled")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC_CLIENT_ID is required when OIDC is enabled")
		}
		if c.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC_CLIENT_SECRET is required when OIDC is enabled")
		}
		if c.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC_REDIRECT_URL is required when OIDC is enabled")
		}
	}

	switch c.Search.Backend {
	case "store", "meilisearch":
	default:
		return fmt.Errorf("SEARCH_BACKEND must be store or meilisearch, got %q", c.Search.Backend)
	}

	switch c.Clusters.Provider {
	case "lexical":
	case "openai":
		if c.Clusters.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when CLUSTERS_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("CLUSTERS_PROVIDER must be lexical or openai, got %q", c.Clusters.Provider)
	}

	switch c.Mail.Driver {
	case "log":
	case "file":
		if c.Mail.OutboxPath == "" {
			return fmt.Errorf("MAIL_OUTBOX_PATH is required when MAIL_DRIVER=file")
		}
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_DRIVER=smtp")
		}
	default:
		return fmt.Errorf("MAIL_DRIVER must be log, file or smtp, got %q", c.Mail.Driver)
	}

	if c.Auth.BootstrapAPIKey != "" && c.Auth.BootstrapEmail == "" {
		return fmt.Errorf("BOOTSTRAP_USER_EMAIL is required when BOOTSTRAP_API_KEY is set")
	}

	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the database settings. Commands that only touch the
// database validate this section alone.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "sqlite3", "postgres", "pgx":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3, postgres or pgx, got %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	return nil
}
