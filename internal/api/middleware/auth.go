package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserContextKey   contextKey = "user"
	APIKeyContextKey contextKey = "api_key"
)

// Authenticator resolves the caller of a request from an API key or a
// session cookie.
type Authenticator struct {
	store          storage.Storage
	sessions       *auth.SessionManager
	bootstrapKey   string
	bootstrapEmail string
	logger         *zap.Logger
}

// NewAuthenticator creates an Authenticator. The bootstrap key is accepted
// only while no API keys exist, and acts as the user with bootstrapEmail.
func NewAuthenticator(store storage.Storage, sessions *auth.SessionManager, bootstrapKey, bootstrapEmail string, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		store:          store,
		sessions:       sessions,
		bootstrapKey:   bootstrapKey,
		bootstrapEmail: bootstrapEmail,
		logger:         logger,
	}
}

// Resolve returns the user behind r. A Bearer header takes precedence over
// the session cookie. It returns domain.ErrUnauthorized when neither
// identifies a user.
func (a *Authenticator) Resolve(r *http.Request) (*domain.User, *domain.APIKey, error) {
	ctx := r.Context()

	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return nil, nil, domain.ErrUnauthorized
		}
		return a.resolveKey(ctx, strings.TrimSpace(token))
	}

	if a.sessions == nil {
		return nil, nil, domain.ErrUnauthorized
	}
	session, err := a.sessions.Get(r)
	if err != nil {
		return nil, nil, domain.ErrUnauthorized
	}
	user, err := a.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, err
	}
	return user, nil, nil
}

func (a *Authenticator) resolveKey(ctx context.Context, key string) (*domain.User, *domain.APIKey, error) {
	if a.bootstrapKey != "" && auth.ConstantTimeCompare(key, a.bootstrapKey) {
		keyCount, err := a.store.CountAPIKeys(ctx)
		if err != nil {
			return nil, nil, err
		}
		if keyCount == 0 {
			user, err := a.store.GetUserByEmail(ctx, a.bootstrapEmail)
			if err != nil {
				a.logger.Warn("bootstrap key used but bootstrap user is missing",
					zap.String("email", a.bootstrapEmail))
				return nil, nil, domain.ErrUnauthorized
			}
			return user, &domain.APIKey{ID: "bootstrap", UserID: user.ID, Name: "Bootstrap Key"}, nil
		}
	}

	storedKey, err := a.store.GetAPIKeyByHash(ctx, auth.HashToken(key))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, err
	}
	user, err := a.store.GetUser(ctx, storedKey.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, err
	}

	// Update last used timestamp (fire and forget)
	go func() {
		if err := a.store.UpdateAPIKeyLastUsed(context.Background(), storedKey.ID); err != nil {
			a.logger.Debug("touch api key failed", zap.Error(err))
		}
	}()
	return user, storedKey, nil
}

// Middleware rejects requests without a valid caller with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, key, err := a.Resolve(r)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				WriteError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "authentication required")
				return
			}
			a.logger.Error("authentication failed", zap.Error(err))
			WriteError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "internal server error")
			return
		}

		ctx := WithUser(r.Context(), user)
		if key != nil {
			ctx = context.WithValue(ctx, APIKeyContextKey, key)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// UserFromContext retrieves the authenticated user from the request context.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(UserContextKey).(*domain.User)
	return user
}

// GetAPIKeyFromContext retrieves the API key from the request context.
// It is nil for session-authenticated requests.
func GetAPIKeyFromContext(ctx context.Context) *domain.APIKey {
	key, _ := ctx.Value(APIKeyContextKey).(*domain.APIKey)
	return key
}
