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
	defaultLockoutThreshold = 5
	defaultLockoutWindow    = 12 * time.Hour
	defaultOTPTTL           = 5 * time.Minute
	otpDigits               = 6
)

// SignInStage names the state a sign-in attempt ended in.
type SignInStage string

const (
	// StageOTPSent means credentials were accepted and a one-time code was mailed.
	StageOTPSent SignInStage = "otp_sent"
	// StageAuthenticated means the code was accepted and tokens were issued.
	StageAuthenticated SignInStage = "authenticated"
)

// SignInStore is the subset of the user repository the sign-in flow needs.
type SignInStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	IncrementLoginRetries(ctx context.Context, id string) error
	StoreOTP(ctx context.Context, id, code string, expires time.Time) error
	ConsumeOTP(ctx context.Context, id, code string, now time.Time) (bool, error)
}

// OTPSender delivers sign-in codes.
type OTPSender interface {
	SendOTP(ctx context.Context, user *models.User, code string, ttl time.Duration) error
}

// SignInConfig defines tunable behaviour of the sign-in flow.
type SignInConfig struct {
	LockoutThreshold int
	LockoutWindow    time.Duration
	OTPTTL           time.Duration
	Clock            func() time.Time
}

// SignInInput carries one sign-in request. An empty OTP asks for a code to be sent.
type SignInInput struct {
	Email    string
	Password string
	OTP      string
}

// SignInResult reports the stage reached. Tokens are only set once authenticated.
type SignInResult struct {
	Stage      SignInStage
	User       *models.User
	Tokens     *TokenPair
	OTPExpires time.Time
}

// SignInService runs the two-step password plus emailed code sign-in.
type SignInService struct {
	users     SignInStore
	tokens    *TokenCodec
	sender    OTPSender
	threshold int
	window    time.Duration
	otpTTL    time.Duration
	clock     func() time.Time
	log       *zap.Logger
}

// NewSignInService builds the sign-in flow with defaults for unset limits.
func NewSignInService(users SignInStore, tokens *TokenCodec, sender OTPSender, cfg SignInConfig) (*SignInService, error) {
	if users == nil {
		return nil, errors.New("sign-in service: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("sign-in service: token codec is required")
	}
	if sender == nil {
		return nil, errors.New("sign-in service: otp sender is required")
	}

	threshold := cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}
	window := cfg.LockoutWindow
	if window <= 0 {
		window = defaultLockoutWindow
	}
	otpTTL := cfg.OTPTTL
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SignInService{
		users:     users,
		tokens:    tokens,
		sender:    sender,
		threshold: threshold,
		window:    window,
		otpTTL:    otpTTL,
		clock:     clock,
		log:       logger.WithModule("auth"),
	}, nil
}

// SignIn checks credentials and then either mails a fresh code or, when input
// carries one, exchanges it for a token pair.
func (s *SignInService) SignIn(ctx context.Context, input SignInInput) (*SignInResult, error) {
	user, err := s.checkCredentials(ctx, input)
	if err != nil {
		return nil, err
	}

	code := strings.TrimSpace(input.OTP)
	if code == "" {
		return s.sendCode(ctx, user)
	}
	return s.verifyCode(ctx, user, code)
}

func (s *SignInService) checkCredentials(ctx context.Context, input SignInInput) (*models.User, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, appErrors.NewBadRequest("Please provide email and password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reject("not_found", appErrors.NewNotFound("No user found with that email"))
		}
		return nil, fmt.Errorf("sign-in service: find user: %w", err)
	}

	now := s.clock().UTC()
	if user.LoginRetries >= s.threshold && now.Sub(user.LastLoginOrCreated()) < s.window {
		return nil, reject("locked", appErrors.NewUnauthorized("login retries exceeded!"))
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		if err := s.users.IncrementLoginRetries(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("sign-in service: record failed attempt: %w", err)
		}
		return nil, reject("invalid_credentials", appErrors.ErrInvalidCredentials)
	}

	if user.IsSuspended {
		return nil, reject("suspended", appErrors.NewUnauthorized("Your account is currently suspended"))
	}
	return user, nil
}

func (s *SignInService) sendCode(ctx context.Context, user *models.User) (*SignInResult, error) {
	code, err := crypto.GenerateNumericCode(otpDigits)
	if err != nil {
		return nil, fmt.Errorf("sign-in service: generate otp: %w", err)
	}

	expires := s.clock().UTC().Add(s.otpTTL)
	if err := s.users.StoreOTP(ctx, user.ID, code, expires); err != nil {
		return nil, fmt.Errorf("sign-in service: store otp: %w", err)
	}

	if err := s.sender.SendOTP(ctx, user, code, s.otpTTL); err != nil {
		s.log.Warn("otp delivery failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	metrics.AuthAttempts.WithLabelValues(string(StageOTPSent)).Inc()
	return &SignInResult{Stage: StageOTPSent, User: user, OTPExpires: expires}, nil
}

func (s *SignInService) verifyCode(ctx context.Context, user *models.User, code string) (*SignInResult, error) {
	now := s.clock().UTC()
	invalid := appErrors.NewUnauthorized("Invalid or expired OTP")

	if user.OTP == "" || !crypto.ConstantTimeEqual(user.OTP, code) || user.OTPExpires == nil || user.OTPExpires.Before(now) {
		return nil, reject("invalid_otp", invalid)
	}

	consumed, err := s.users.ConsumeOTP(ctx, user.ID, code, now)
	if err != nil {
		return nil, fmt.Errorf("sign-in service: consume otp: %w", err)
	}
	if !consumed {
		return nil, reject("invalid_otp", invalid)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign-in service: issue tokens: %w", err)
	}

	user.OTP = ""
	user.OTPExpires = nil
	user.LoginRetries = 0
	user.LastLogin = &now

	metrics.AuthAttempts.WithLabelValues(string(StageAuthenticated)).Inc()
	return &SignInResult{Stage: StageAuthenticated, User: user, Tokens: &pair}, nil
}

func reject(result string, err error) error {
	metrics.AuthAttempts.WithLabelValues(result).Inc()
	return err
}
