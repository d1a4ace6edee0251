package app

import (
	"strings"

	"github.com/hundredminds/backend/internal/auth"
)

// TokenConfig converts AuthConfig into the parameters expected by the token codec.
func (c AuthConfig) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		GeneralSecret: c.GeneralSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
		Issuer:        c.Issuer,
	}
}

// SignInConfig converts AuthConfig into sign-in flow limits.
func (c AuthConfig) SignInConfig() auth.SignInConfig {
	return auth.SignInConfig{
		LockoutThreshold: c.LockoutThreshold,
		LockoutWindow:    c.LockoutWindow,
		OTPTTL:           c.OTPTTL,
	}
}

// PasswordResetConfig converts AuthConfig into password reset parameters.
func (c AuthConfig) PasswordResetConfig(frontendURL string) auth.PasswordResetConfig {
	return auth.PasswordResetConfig{
		TokenTTL:    c.ResetTTL,
		MaxRetries:  c.ResetMaxRetries,
		FrontendURL: strings.TrimSpace(frontendURL),
	}
}
