package models

import (
	"strings"
	"time"
)

// UserRole enumerates the platform roles.
type UserRole string

const (
	RoleUser      UserRole = "user"
	RoleAdmin     UserRole = "admin"
	RoleSuperuser UserRole = "superuser"
)

// Valid reports whether the role is one of the known platform roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperuser:
		return true
	}
	return false
}

// User is a learner or administrator account. The OTP and password reset
// columns carry the only state shared between consecutive sign-in and reset calls.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Avatar    string   `json:"avatar"`
	Role      UserRole `gorm:"type:varchar(16);not null;default:'user'" json:"role"`

	OTP        string     `gorm:"column:otp" json:"-"`
	OTPExpires *time.Time `gorm:"column:otp_expires" json:"-"`

	PasswordResetToken   string     `gorm:"column:password_reset_token;index" json:"-"`
	PasswordResetExpires *time.Time `gorm:"column:password_reset_expires" json:"-"`
	PasswordChangedAt    *time.Time `gorm:"column:password_changed_at" json:"-"`

	LoginRetries         int        `gorm:"not null;default:0" json:"-"`
	PasswordResetRetries int        `gorm:"not null;default:0" json:"-"`
	LastLogin            *time.Time `json:"last_login"`

	IsSuspended bool `gorm:"not null;default:false" json:"is_suspended"`
	IsDeleted   bool `gorm:"not null;default:false;index" json:"-"`
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsPrivileged reports whether the user may use administration endpoints.
func (u *User) IsPrivileged() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleSuperuser)
}

// LastLoginOrCreated returns the reference point of the sign-in lockout window.
// Accounts that never signed in count from their creation time.
func (u *User) LastLoginOrCreated() time.Time {
	if u.LastLogin != nil {
		return *u.LastLogin
	}
	return u.CreatedAt
}

// PasswordChangedAfter reports whether the password changed after a token was
// issued. JWT timestamps carry whole seconds, so the comparison does too.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}
