package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	appErrors "github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/metrics"
)

// UserFinder loads users by primary key.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Credentials are the bearer tokens presented by a client, from cookies or headers.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Session is the outcome of a successful authentication. AccessToken is only
// set when a new access token was minted through the refresh path.
type Session struct {
	User        *models.User
	AccessToken string
}

// Refreshed reports whether the caller must hand a new access token back to the client.
func (s *Session) Refreshed() bool {
	return s != nil && s.AccessToken != ""
}

// Authenticator resolves the current user from an access/refresh token pair,
// minting a new access token when the presented one is missing or unusable.
type Authenticator struct {
	users  UserFinder
	tokens *TokenCodec
	log    *zap.Logger
}

// NewAuthenticator wires the authenticator to its user store and token codec.
func NewAuthenticator(users UserFinder, tokens *TokenCodec) (*Authenticator, error) {
	if users == nil {
		return nil, errors.New("authenticator: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("authenticator: token codec is required")
	}
	return &Authenticator{
		users:  users,
		tokens: tokens,
		log:    logger.WithModule("auth"),
	}, nil
}

// Authenticate resolves the session for creds.
//
// A refresh token is always required. Without an access token the refresh path
// runs directly and its typed errors reach the caller. When the access token
// fails signature or expiry checks the refresh path is tried exactly once; any
// domain failure on the access path or inside that retry becomes ErrSessionExpired.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	access := strings.TrimSpace(creds.AccessToken)
	refresh := strings.TrimSpace(creds.RefreshToken)

	if refresh == "" {
		return nil, appErrors.NewUnauthorized("You are not logged in, please log in to get access")
	}
	if access == "" {
		return a.refresh(ctx, refresh, "missing")
	}

	claims, err := a.tokens.Verify(TokenAccess, access)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenExpired) {
			return nil, a.sessionExpired(err)
		}

		trigger := "invalid"
		if errors.Is(err, ErrTokenExpired) {
			trigger = "expired"
		}
		session, refreshErr := a.refresh(ctx, refresh, trigger)
		if refreshErr != nil {
			a.log.Debug("refresh fallback failed", zap.String("trigger", trigger), zap.Error(refreshErr))
			return nil, a.sessionExpired(refreshErr)
		}
		return session, nil
	}

	user, err := a.verifyUser(ctx, claims)
	if err != nil {
		return nil, a.sessionExpired(err)
	}
	return &Session{User: user}, nil
}

func (a *Authenticator) refresh(ctx context.Context, refreshToken, trigger string) (*Session, error) {
	claims, err := a.tokens.Verify(TokenRefresh, refreshToken)
	if err != nil {
		return nil, appErrors.NewUnauthorized("Invalid or expired refresh token, please log in again").WithInternal(err)
	}

	user, err := a.verifyUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	access, err := a.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("authenticator: issue access token: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues(trigger).Inc()
	return &Session{User: user, AccessToken: access}, nil
}

// verifyUser loads the token subject and rejects tokens that predate a password change.
func (a *Authenticator) verifyUser(ctx context.Context, claims *Claims) (*models.User, error) {
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.NewUnauthorized("Invalid token payload")
	}

	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.NewNotFound("The user belonging to this token no longer exists")
		}
		return nil, fmt.Errorf("authenticator: load user: %w", err)
	}

	if user.IsSuspended {
		return nil, appErrors.NewForbidden("Your account is currently suspended")
	}
	if user.IsDeleted {
		return nil, appErrors.NewNotFound("The user belonging to this token no longer exists")
	}
	if user.PasswordChangedAfter(claims.IssuedAtTime()) {
		return nil, appErrors.NewUnauthorized("Password was changed recently, please log in again")
	}
	return user, nil
}

// sessionExpired collapses domain failures into ErrSessionExpired. Infrastructure
// failures keep their identity so they surface as server errors.
func (a *Authenticator) sessionExpired(err error) error {
	var appErr *appErrors.AppError
	if errors.As(err, &appErr) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
		return appErrors.ErrSessionExpired.WithInternal(err)
	}
	return err
}
