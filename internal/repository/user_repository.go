package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/hundredminds/backend/internal/models"
)

// UserRepository is the relational user store.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository backed by db.
func NewUserRepository(db *gorm.DB) (*UserRepository, error) {
	if db == nil {
		return nil, errors.New("user repository: db is required")
	}
	return &UserRepository{db: db}, nil
}

// FindByID loads a user by primary key, deleted accounts included.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Take(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByEmail loads an active (not deleted) user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND is_deleted = ?", models.NormalizeEmail(email), false).
		Take(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByEmailOrUsername returns any user, deleted included, holding either identifier.
func (r *UserRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("email = ? OR LOWER(username) = LOWER(?)", models.NormalizeEmail(email), strings.TrimSpace(username)).
		Take(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByPasswordResetToken loads the user holding the raw reset secret, provided it has not expired at now.
func (r *UserRepository) FindByPasswordResetToken(ctx context.Context, secret string, now time.Time) (*models.User, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNotFound
	}
	var user models.User
	err := r.db.WithContext(ctx).
		Where("password_reset_token = ? AND password_reset_expires > ? AND is_deleted = ?", secret, now, false).
		Take(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Create inserts a user. Unique violations on email or username surface as ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("user repository: user is required")
	}
	user.Email = models.NormalizeEmail(user.Email)
	user.Username = strings.TrimSpace(user.Username)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

// Update applies a partial update and returns the refreshed user.
func (r *UserRepository) Update(ctx context.Context, id string, fields map[string]any) (*models.User, error) {
	if len(fields) > 0 {
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.FindByID(ctx, id)
}

// IncrementLoginRetries bumps the failed sign-in counter in a single statement.
func (r *UserRepository) IncrementLoginRetries(ctx context.Context, id string) error {
	return r.updateColumns(ctx, id, map[string]any{
		"login_retries": gorm.Expr("login_retries + ?", 1),
	})
}

// StoreOTP records a one-time code and its expiry on the user row.
func (r *UserRepository) StoreOTP(ctx context.Context, id, code string, expires time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"otp":         code,
		"otp_expires": expires,
	})
}

// ConsumeOTP clears a matching, unexpired code and marks the sign-in complete in one
// conditional statement. It reports false when no row matched.
func (r *UserRepository) ConsumeOTP(ctx context.Context, id, code string, now time.Time) (bool, error) {
	if code == "" {
		return false, nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND otp = ? AND otp_expires > ?", id, code, now).
		Updates(map[string]any{
			"otp":           "",
			"otp_expires":   nil,
			"login_retries": 0,
			"last_login":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// StartPasswordReset stores the raw reset secret and counts the request.
func (r *UserRepository) StartPasswordReset(ctx context.Context, id, secret string, expires time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"password_reset_token":   secret,
		"password_reset_expires": expires,
		"password_reset_retries": gorm.Expr("password_reset_retries + ?", 1),
	})
}

// CompletePasswordReset swaps the password hash if the reset secret is still held and unexpired.
// It reports false when the secret was consumed or expired in the meantime.
func (r *UserRepository) CompletePasswordReset(ctx context.Context, id, secret, passwordHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_reset_token = ? AND password_reset_expires > ?", id, secret, now).
		Updates(map[string]any{
			"password":               passwordHash,
			"password_reset_retries": 0,
			"password_changed_at":    now,
			"password_reset_token":   "",
			"password_reset_expires": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ChangePassword stores a new hash and stamps the change time.
func (r *UserRepository) ChangePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{
		"password":            passwordHash,
		"password_changed_at": now,
	})
}

// SetSuspended toggles the suspension flag. Lifting a suspension also resets the
// password reset counter that may have triggered it.
func (r *UserRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	fields := map[string]any{"is_suspended": suspended}
	if !suspended {
		fields["password_reset_retries"] = 0
		fields["login_retries"] = 0
	}
	return r.updateColumns(ctx, id, fields)
}

// SetAvatar stores the avatar object reference.
func (r *UserRepository) SetAvatar(ctx context.Context, id, avatar string) error {
	return r.updateColumns(ctx, id, map[string]any{"avatar": avatar})
}

// SoftDelete marks the account deleted and drops any pending secrets.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	return r.updateColumns(ctx, id, map[string]any{
		"is_deleted":             true,
		"otp":                    "",
		"otp_expires":            nil,
		"password_reset_token":   "",
		"password_reset_expires": nil,
	})
}

// List returns a page of non-deleted users ordered by creation time.
func (r *UserRepository) List(ctx context.Context, page, perPage int) ([]models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	query := r.db.WithContext(ctx).Model(&models.User{}).Where("is_deleted = ?", false)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user repository: count users: %w", err)
	}

	var users []models.User
	if err := query.Order("created_at ASC").Offset((page - 1) * perPage).Limit(perPage).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user repository: list users: %w", err)
	}
	return users, total, nil
}

// ClearExpiredOTPs drops one-time codes whose expiry passed before now.
func (r *UserRepository) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("otp <> ? AND otp_expires <= ?", "", now).
		UpdateColumns(map[string]any{"otp": "", "otp_expires": nil})
	return res.RowsAffected, res.Error
}

// ClearExpiredResetTokens drops password reset secrets whose expiry passed before now.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("password_reset_token <> ? AND password_reset_expires <= ?", "", now).
		UpdateColumns(map[string]any{"password_reset_token": "", "password_reset_expires": nil})
	return res.RowsAffected, res.Error
}

func (r *UserRepository) updateColumns(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
