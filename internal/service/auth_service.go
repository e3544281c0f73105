package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/mail"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/bcnelson/seo-insights/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthOptions configures an AuthService.
type AuthOptions struct {
	BaseURL     string
	ResetTTL    time.Duration
	AllowSignup bool
}

// AuthService handles accounts, passwords and API keys.
type AuthService struct {
	store  storage.Storage
	tokens auth.ResetTokenStore
	mailer mail.Mailer
	opts   AuthOptions
	logger *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(store storage.Storage, tokens auth.ResetTokenStore, mailer mail.Mailer, opts AuthOptions, logger *zap.Logger) *AuthService {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &AuthService{store: store, tokens: tokens, mailer: mailer, opts: opts, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func passwordError(field, err string) error {
	var errs validation.ValidationErrors
	errs.Add(field, "", err)
	return errs
}

// Register creates a password account when self sign-up is allowed.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	if !s.opts.AllowSignup {
		return nil, fmt.Errorf("%w: sign-up is disabled", domain.ErrForbidden)
	}
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.CreateUser(ctx, req.Email, req.Password)
}

// CreateUser creates a password account regardless of the sign-up setting.
func (s *AuthService) CreateUser(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, passwordError("email", "email is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, passwordError("password", err.Error())
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user %s: %w", email, err)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID))
	return user, nil
}

// EnsureSSOUser returns the account for an SSO-verified email, creating a
// password-less one on first sign-in.
func (s *AuthService) EnsureSSOUser(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	user = &domain.User{ID: uuid.New().String(), Email: email, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating sso user: %w", err)
	}
	s.logger.Info("sso user created", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks an email and password pair.
// Unknown emails and wrong passwords both yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// IssueResetToken creates a reset token for the account with email and
// returns the token and the link that redeems it.
func (s *AuthService) IssueResetToken(ctx context.Context, email string) (token, link string, err error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", "", err
	}
	token, err = s.tokens.Issue(ctx, user.ID, s.opts.ResetTTL)
	if err != nil {
		return "", "", err
	}
	return token, s.opts.BaseURL + "/reset-password?token=" + url.QueryEscape(token), nil
}

// RequestPasswordReset mails a reset link when the account exists. It reports
// success for unknown emails too, so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	_, link, err := s.IssueResetToken(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("issuing reset token: %w", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, email, link); err != nil {
		return fmt.Errorf("sending reset mail: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return passwordError("password", err.Error())
	}
	userID, err := s.tokens.Consume(ctx, token)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	s.logger.Info("password reset", zap.String("user_id", userID))
	return nil
}

// ChangePassword replaces a password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return domain.ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return passwordError("newPassword", err.Error())
	}
	return s.store.UpdateUserPassword(ctx, userID, hash)
}

// CreateAPIKey issues a new key for userID. The plain key is only returned
// here.
func (s *AuthService) CreateAPIKey(ctx context.Context, userID, name string) (*domain.CreateAPIKeyResponse, error) {
	key, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generating api key: %w", err)
	}

	apiKey := &domain.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   hash,
		KeyPrefix: prefix,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.store.CreateAPIKey(ctx, apiKey); err != nil {
		return nil, err
	}

	return &domain.CreateAPIKeyResponse{
		ID:        apiKey.ID,
		Name:      apiKey.Name,
		Key:       key,
		KeyPrefix: apiKey.KeyPrefix,
		CreatedAt: apiKey.CreatedAt,
	}, nil
}

// ListAPIKeys lists userID's keys without their secrets.
func (s *AuthService) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	return s.store.ListAPIKeys(ctx, userID)
}

// DeleteAPIKey revokes one of userID's keys.
func (s *AuthService) DeleteAPIKey(ctx context.Context, userID, id string) error {
	return s.store.DeleteAPIKey(ctx, userID, id)
}
