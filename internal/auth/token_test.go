package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testTokenConfig(now func() time.Time) TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		GeneralSecret: "general-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
		Issuer:        "hundredminds",
		Clock:         now,
	}
}

func TestNewTokenCodecValidatesSecrets(t *testing.T) {
	_, err := NewTokenCodec(TokenConfig{})
	require.EqualError(t, err, "token: access secret must be provided")

	_, err = NewTokenCodec(TokenConfig{AccessSecret: "a", RefreshSecret: "b"})
	require.EqualError(t, err, "token: general secret must be provided")

	_, err = NewTokenCodec(TokenConfig{AccessSecret: "same", RefreshSecret: "same", GeneralSecret: "c"})
	require.EqualError(t, err, "token: access and refresh secrets must differ")

	codec, err := NewTokenCodec(TokenConfig{AccessSecret: "a", RefreshSecret: "b", GeneralSecret: "c"})
	require.NoError(t, err)
	require.Equal(t, DefaultAccessTokenTTL, codec.AccessTTL())
	require.Equal(t, DefaultRefreshTokenTTL, codec.RefreshTTL())
}

func TestSignAndVerify(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewTokenCodec(testTokenConfig(func() time.Time { return current }))
	require.NoError(t, err)

	token, err := codec.Sign(TokenAccess, TokenPayload{UserID: "user-123"}, time.Hour)
	require.NoError(t, err)

	claims, err := codec.Verify(TokenAccess, token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "hundredminds", claims.Issuer)
	require.True(t, claims.IssuedAtTime().Equal(current))
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestSignWithoutTTLNeverExpires(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewTokenCodec(testTokenConfig(func() time.Time { return current }))
	require.NoError(t, err)

	token, err := codec.Sign(TokenGeneral, TokenPayload{Token: "opaque"}, 0)
	require.NoError(t, err)

	current = current.AddDate(10, 0, 0)
	claims, err := codec.Verify(TokenGeneral, token)
	require.NoError(t, err)
	require.Nil(t, claims.ExpiresAt)
	require.Equal(t, "opaque", claims.Token)
}

func TestVerifyExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	codec, err := NewTokenCodec(testTokenConfig(func() time.Time { return current }))
	require.NoError(t, err)

	token, err := codec.IssueAccess("user-123")
	require.NoError(t, err)

	current = current.Add(16 * time.Minute)

	_, err = codec.Verify(TokenAccess, token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.NotErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherSecrets(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }
	codec, err := NewTokenCodec(testTokenConfig(now))
	require.NoError(t, err)

	pair, err := codec.IssuePair("user-123")
	require.NoError(t, err)

	_, err = codec.Verify(TokenRefresh, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = codec.Verify(TokenAccess, pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = codec.Verify(TokenGeneral, pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	claims, err := codec.Verify(TokenRefresh, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
}

func TestVerifyRejectsMalformedAndForeignIssuer(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }
	codec, err := NewTokenCodec(testTokenConfig(now))
	require.NoError(t, err)

	_, err = codec.Verify(TokenAccess, "")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = codec.Verify(TokenAccess, "not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	cfg := testTokenConfig(now)
	cfg.Issuer = "someone-else"
	foreign, err := NewTokenCodec(cfg)
	require.NoError(t, err)
	token, err := foreign.IssueAccess("user-123")
	require.NoError(t, err)

	_, err = codec.Verify(TokenAccess, token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = codec.Sign(TokenKind("other"), TokenPayload{}, 0)
	require.Error(t, err)
}

func TestSignAndVerifySecret(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	codec, err := NewTokenCodec(testTokenConfig(func() time.Time { return current }))
	require.NoError(t, err)

	signed, err := codec.SignSecret("raw-secret", 15*time.Minute)
	require.NoError(t, err)

	secret, err := codec.VerifySecret(signed)
	require.NoError(t, err)
	require.Equal(t, "raw-secret", secret)

	access, err := codec.Sign(TokenGeneral, TokenPayload{UserID: "user-1"}, time.Minute)
	require.NoError(t, err)
	_, err = codec.VerifySecret(access)
	require.ErrorIs(t, err, ErrInvalidToken)

	current = current.Add(15 * time.Minute)
	_, err = codec.VerifySecret(signed)
	require.ErrorIs(t, err, ErrTokenExpired)

	_, err = codec.SignSecret("", time.Minute)
	require.Error(t, err)
}
