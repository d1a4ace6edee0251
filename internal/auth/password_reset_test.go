package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hundredminds/backend/pkg/crypto"
)

func newPasswordResetService(t *testing.T, env *authEnv) *PasswordResetService {
	t.Helper()
	svc, err := NewPasswordResetService(env.users, env.tokens, env.sender, PasswordResetConfig{
		FrontendURL: "https://app.example.com/",
		Clock:       env.clock.Now,
	})
	require.NoError(t, err)
	return svc
}

func resetTokenFromURL(t *testing.T, url string) string {
	t.Helper()
	const prefix = "https://app.example.com/reset-password/"
	require.True(t, strings.HasPrefix(url, prefix), url)
	return strings.TrimPrefix(url, prefix)
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newAuthEnv(t)
	user := env.createUser(t, "ada@example.com", "s3cretpass")
	svc := newPasswordResetService(t, env)
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "Ada@Example.com"))

	stored := env.reload(t, user.ID)
	require.NotEmpty(t, stored.PasswordResetToken)
	require.Equal(t, 1, stored.PasswordResetRetries)
	require.True(t, stored.PasswordResetExpires.Equal(env.clock.Now().Add(15*time.Minute)))

	token := resetTokenFromURL(t, env.sender.lastReset(t).URL)

	env.clock.Advance(time.Minute)
	_, err := svc.ResetPassword(ctx, token, "n3wpassword", "different1")
	requireAppError(t, err, http.StatusBadRequest, "Passwords do not match")

	updated, err := svc.ResetPassword(ctx, token, "n3wpassword", "n3wpassword")
	require.NoError(t, err)
	require.Equal(t, user.ID, updated.ID)

	stored = env.reload(t, user.ID)
	require.True(t, crypto.VerifyPassword(stored.Password, "n3wpassword"))
	require.Empty(t, stored.PasswordResetToken)
	require.Nil(t, stored.PasswordResetExpires)
	require.Zero(t, stored.PasswordResetRetries)
	require.NotNil(t, stored.PasswordChangedAt)
	require.True(t, stored.PasswordChangedAt.Equal(env.clock.Now()))

	_, err = svc.ResetPassword(ctx, token, "an0therpass", "an0therpass")
	requireAppError(t, err, http.StatusBadRequest, "token invalid or expired")
}

func TestResetPasswordRejectsBadOrExpiredLinks(t *testing.T) {
	env := newAuthEnv(t)
	env.createUser(t, "ada@example.com", "s3cretpass")
	svc := newPasswordResetService(t, env)
	ctx := context.Background()

	_, err := svc.ResetPassword(ctx, "not-a-token", "n3wpassword", "n3wpassword")
	requireAppError(t, err, http.StatusUnauthorized, "")

	require.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	token := resetTokenFromURL(t, env.sender.lastReset(t).URL)

	env.clock.Advance(16 * time.Minute)
	_, err = svc.ResetPassword(ctx, token, "n3wpassword", "n3wpassword")
	requireAppError(t, err, http.StatusUnauthorized, "")
}

func TestResetPasswordWithUnknownSecret(t *testing.T) {
	env := newAuthEnv(t)
	env.createUser(t, "ada@example.com", "s3cretpass")
	svc := newPasswordResetService(t, env)

	signed, err := env.tokens.SignSecret("never-stored", 15*time.Minute)
	require.NoError(t, err)

	_, err = svc.ResetPassword(context.Background(), signed, "n3wpassword", "n3wpassword")
	requireAppError(t, err, http.StatusBadRequest, "token invalid or expired")
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newAuthEnv(t)
	svc := newPasswordResetService(t, env)

	err := svc.ForgotPassword(context.Background(), "nobody@example.com")
	requireAppError(t, err, http.StatusNotFound, "")
}

func TestForgotPasswordSuspendsAfterTooManyRequests(t *testing.T) {
	env := newAuthEnv(t)
	user := env.createUser(t, "ada@example.com", "s3cretpass")
	svc := newPasswordResetService(t, env)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	}
	require.Equal(t, 6, env.reload(t, user.ID).PasswordResetRetries)
	require.False(t, env.reload(t, user.ID).IsSuspended)

	err := svc.ForgotPassword(ctx, "ada@example.com")
	requireAppError(t, err, http.StatusUnauthorized, "")
	require.True(t, env.reload(t, user.ID).IsSuspended)
	require.Len(t, env.sender.resets, 6)
}

func TestPasswordResetInvalidatesIssuedTokens(t *testing.T) {
	env := newAuthEnv(t)
	user := env.createUser(t, "ada@example.com", "s3cretpass")
	svc := newPasswordResetService(t, env)
	authn := newAuthenticator(t, env)
	ctx := context.Background()

	pair, err := env.tokens.IssuePair(user.ID)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	require.NoError(t, svc.ForgotPassword(ctx, "ada@example.com"))
	token := resetTokenFromURL(t, env.sender.lastReset(t).URL)
	_, err = svc.ResetPassword(ctx, token, "n3wpassword", "n3wpassword")
	require.NoError(t, err)

	_, err = authn.Authenticate(ctx, Credentials{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	requireAppError(t, err, http.StatusUnauthorized, "")
	_, err = authn.Authenticate(ctx, Credentials{RefreshToken: pair.RefreshToken})
	requireAppError(t, err, http.StatusUnauthorized, "Password was changed recently, please log in again")
}
