package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	"github.com/hundredminds/backend/internal/storage"
	"github.com/hundredminds/backend/pkg/crypto"
	apperrors "github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/logger"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.NewNotFound("User not found")
	// ErrUserExists is returned when sign-up collides with an existing email or username.
	ErrUserExists = apperrors.NewConflict("A user with that email or username already exists")
	// ErrPasswordMismatch is returned when a password and its confirmation differ.
	ErrPasswordMismatch = apperrors.NewBadRequest("Passwords do not match")
)

// SignupInput describes the fields accepted when registering.
type SignupInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
}

// ChangePasswordInput carries a password change request.
type ChangePasswordInput struct {
	CurrentPassword string
	Password        string
	ConfirmPassword string
}

// AvatarStorage persists profile pictures.
type AvatarStorage interface {
	Upload(ctx context.Context, userID string, r io.Reader) (string, error)
	Remove(ctx context.Context, avatarURL string) error
}

// UserOption customises UserService behaviour.
type UserOption func(*UserService)

// WithUserClock injects a custom clock primarily for testing.
func WithUserClock(clock func() time.Time) UserOption {
	return func(s *UserService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithAvatarStorage enables avatar uploads.
func WithAvatarStorage(store AvatarStorage) UserOption {
	return func(s *UserService) {
		s.avatars = store
	}
}

// UserService manages registration, profile and account administration.
type UserService struct {
	users    *repository.UserRepository
	tokens   *auth.TokenCodec
	notifier WelcomeNotifier
	avatars  AvatarStorage
	now      func() time.Time
	log      *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(users *repository.UserRepository, tokens *auth.TokenCodec, notifier WelcomeNotifier, opts ...UserOption) (*UserService, error) {
	if users == nil {
		return nil, errors.New("user service: repository is required")
	}
	if tokens == nil {
		return nil, errors.New("user service: token codec is required")
	}
	if notifier == nil {
		return nil, errors.New("user service: notifier is required")
	}

	service := &UserService{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		now:      time.Now,
		log:      logger.WithModule("users"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Signup registers a regular user and sends a welcome email.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := models.NormalizeEmail(input.Email)
	if username == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("username, email and password are required")
	}
	if input.Password != input.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	_, err := s.users.FindByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil:
		return nil, ErrUserExists
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("user service: check existing user: %w", err)
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	if err := s.notifier.SendWelcome(ctx, user); err != nil {
		s.log.Warn("welcome email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// GetByID returns an account that has not been deleted.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ensureContext(ctx), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	if user.IsDeleted {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one. Tokens
// issued before the change stop working, so a fresh pair is returned.
func (s *UserService) ChangePassword(ctx context.Context, id string, input ChangePasswordInput) (*auth.TokenPair, error) {
	ctx = ensureContext(ctx)

	if input.Password != input.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyPassword(user.Password, input.CurrentPassword) {
		return nil, apperrors.NewUnauthorized("Your current password is wrong")
	}
	if input.CurrentPassword == input.Password {
		return nil, apperrors.NewBadRequest("New password must differ from the current one")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}
	if err := s.users.ChangePassword(ctx, user.ID, hashed, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("user service: store password: %w", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("user service: issue tokens: %w", err)
	}
	return &pair, nil
}

// UpdateAvatar stores a new profile picture and drops the previous one.
func (s *UserService) UpdateAvatar(ctx context.Context, id string, image io.Reader) (*models.User, error) {
	ctx = ensureContext(ctx)

	if s.avatars == nil {
		return nil, apperrors.New("AVATAR_STORAGE_DISABLED", "Avatar uploads are not enabled", http.StatusServiceUnavailable)
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.avatars.Upload(ctx, user.ID, image)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedImage):
			return nil, apperrors.NewBadRequest("Avatar must be a JPEG, PNG, GIF or WebP image")
		case errors.Is(err, storage.ErrImageTooLarge):
			return nil, apperrors.NewBadRequest("Avatar image is too large")
		}
		return nil, fmt.Errorf("user service: upload avatar: %w", err)
	}

	if err := s.users.SetAvatar(ctx, user.ID, url); err != nil {
		return nil, fmt.Errorf("user service: store avatar: %w", err)
	}
	if user.Avatar != "" {
		if err := s.avatars.Remove(ctx, user.Avatar); err != nil {
			s.log.Warn("previous avatar not removed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	user.Avatar = url
	return user, nil
}

// List returns a page of live accounts.
func (s *UserService) List(ctx context.Context, page, perPage int) ([]models.User, int64, error) {
	return s.users.List(ensureContext(ctx), page, perPage)
}

// SetSuspended suspends or reinstates an account. Reinstating clears the
// counters that may have triggered the suspension.
func (s *UserService) SetSuspended(ctx context.Context, actor *models.User, id string, suspended bool) (*models.User, error) {
	ctx = ensureContext(ctx)

	target, err := s.administrable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetSuspended(ctx, target.ID, suspended); err != nil {
		return nil, fmt.Errorf("user service: update suspension: %w", err)
	}
	return s.GetByID(ctx, target.ID)
}

// Delete soft-deletes an account.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id string) error {
	ctx = ensureContext(ctx)

	target, err := s.administrable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.users.SoftDelete(ctx, target.ID); err != nil {
		return fmt.Errorf("user service: delete user: %w", err)
	}
	return nil
}

// administrable loads the target of an admin action. Nobody may act on their
// own account, and only a superuser may act on another privileged account.
func (s *UserService) administrable(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	if actor == nil || !actor.IsPrivileged() {
		return nil, apperrors.ErrForbidden
	}
	if actor.ID == id {
		return nil, apperrors.NewBadRequest("You cannot perform this action on your own account")
	}

	target, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.IsPrivileged() && actor.Role != models.RoleSuperuser {
		return nil, apperrors.NewForbidden("Only a superuser can manage administrators")
	}
	return target, nil
}
