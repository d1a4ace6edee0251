package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	"github.com/hundredminds/backend/pkg/crypto"
	appErrors "github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/metrics"
)

const (
	defaultResetTTL        = 15 * time.Minute
	defaultResetMaxRetries = 6
	resetSecretBytes       = 32
)

// PasswordResetStore is the subset of the user repository the reset flow needs.
type PasswordResetStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetSuspended(ctx context.Context, id string, suspended bool) error
	StartPasswordReset(ctx context.Context, id, secret string, expires time.Time) error
	FindByPasswordResetToken(ctx context.Context, secret string, now time.Time) (*models.User, error)
	CompletePasswordReset(ctx context.Context, id, secret, passwordHash string, now time.Time) (bool, error)
}

// ResetSender delivers password reset links.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, user *models.User, resetURL string, ttl time.Duration) error
}

// PasswordResetConfig defines tunable behaviour of the reset flow.
type PasswordResetConfig struct {
	TokenTTL    time.Duration
	MaxRetries  int
	FrontendURL string
	Clock       func() time.Time
}

// PasswordResetService issues and redeems emailed password reset links.
type PasswordResetService struct {
	users       PasswordResetStore
	tokens      *TokenCodec
	sender      ResetSender
	ttl         time.Duration
	maxRetries  int
	frontendURL string
	clock       func() time.Time
	log         *zap.Logger
}

// NewPasswordResetService builds the reset flow with defaults for unset limits.
func NewPasswordResetService(users PasswordResetStore, tokens *TokenCodec, sender ResetSender, cfg PasswordResetConfig) (*PasswordResetService, error) {
	if users == nil {
		return nil, errors.New("password reset service: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("password reset service: token codec is required")
	}
	if sender == nil {
		return nil, errors.New("password reset service: sender is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultResetMaxRetries
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &PasswordResetService{
		users:       users,
		tokens:      tokens,
		sender:      sender,
		ttl:         ttl,
		maxRetries:  maxRetries,
		frontendURL: strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/"),
		clock:       clock,
		log:         logger.WithModule("auth"),
	}, nil
}

// ForgotPassword mails a reset link to the account owning email. An account that
// already used up its reset requests is suspended instead.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return appErrors.NewBadRequest("Please provide your email address")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.NewNotFound("There is no user with that email address")
		}
		return fmt.Errorf("password reset service: find user: %w", err)
	}

	if user.PasswordResetRetries >= s.maxRetries {
		if err := s.users.SetSuspended(ctx, user.ID, true); err != nil {
			return fmt.Errorf("password reset service: suspend user: %w", err)
		}
		metrics.PasswordResets.WithLabelValues("suspended").Inc()
		s.log.Warn("account suspended after repeated reset requests", zap.String("user_id", user.ID))
		return appErrors.NewUnauthorized("Too many password reset attempts, your account has been suspended")
	}

	secret, err := crypto.GenerateToken(resetSecretBytes)
	if err != nil {
		return fmt.Errorf("password reset service: generate secret: %w", err)
	}
	signed, err := s.tokens.SignSecret(secret, s.ttl)
	if err != nil {
		return fmt.Errorf("password reset service: sign secret: %w", err)
	}

	expires := s.clock().UTC().Add(s.ttl)
	if err := s.users.StartPasswordReset(ctx, user.ID, secret, expires); err != nil {
		return fmt.Errorf("password reset service: store secret: %w", err)
	}

	if err := s.sender.SendPasswordReset(ctx, user, s.resetURL(signed), s.ttl); err != nil {
		s.log.Warn("password reset delivery failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	metrics.PasswordResets.WithLabelValues("requested").Inc()
	return nil
}

// ResetPassword redeems a reset link. The stored secret is cleared in the same
// statement that swaps the password, so a link works at most once.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, password, confirmPassword string) (*models.User, error) {
	if password != confirmPassword {
		return nil, appErrors.NewBadRequest("Passwords do not match")
	}

	secret, err := s.tokens.VerifySecret(strings.TrimSpace(token))
	if err != nil {
		return nil, appErrors.NewUnauthorized("Invalid or expired reset link").WithInternal(err)
	}

	invalid := appErrors.NewBadRequest("token invalid or expired")
	now := s.clock().UTC()

	user, err := s.users.FindByPasswordResetToken(ctx, secret, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("password reset service: find user: %w", err)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("password reset service: hash password: %w", err)
	}

	ok, err := s.users.CompletePasswordReset(ctx, user.ID, secret, hash, now)
	if err != nil {
		return nil, fmt.Errorf("password reset service: store password: %w", err)
	}
	if !ok {
		return nil, invalid
	}

	user.Password = hash
	user.PasswordResetRetries = 0
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	user.PasswordChangedAt = &now

	metrics.PasswordResets.WithLabelValues("completed").Inc()
	return user, nil
}

func (s *PasswordResetService) resetURL(signed string) string {
	return s.frontendURL + "/reset-password/" + signed
}
