package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the fallback refresh token lifetime.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenKind selects the secret a token is signed with.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
	// TokenGeneral covers password reset and team invite links.
	TokenGeneral TokenKind = "general"
)

var (
	// ErrInvalidToken is returned when a token is malformed or its signature does not verify.
	ErrInvalidToken = errors.New("token: invalid")
	// ErrTokenExpired is returned when a well-signed token is past its expiry.
	ErrTokenExpired = errors.New("token: expired")
)

// TokenConfig bundles the secrets and lifetimes of the token codec.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	GeneralSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Clock         func() time.Time
}

// Claims is the payload carried by every token: a user id for access and
// refresh tokens, an opaque secret for reset and invite links.
type Claims struct {
	UserID string `json:"id,omitempty"`
	Token  string `json:"token,omitempty"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the iat claim, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c == nil || c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// TokenPayload is the application data to embed in a token.
type TokenPayload struct {
	UserID string
	Token  string
}

// TokenPair holds an access token and refresh token issued together.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenCodec signs and verifies HS256 tokens with a distinct secret per TokenKind.
type TokenCodec struct {
	secrets    map[TokenKind][]byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenCodec validates the configuration and builds a codec. Every secret
// must be set and no two kinds may share a secret.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	secrets := map[TokenKind]string{
		TokenAccess:  strings.TrimSpace(cfg.AccessSecret),
		TokenRefresh: strings.TrimSpace(cfg.RefreshSecret),
		TokenGeneral: strings.TrimSpace(cfg.GeneralSecret),
	}

	seen := make(map[string]TokenKind, len(secrets))
	keys := make(map[TokenKind][]byte, len(secrets))
	for _, kind := range []TokenKind{TokenAccess, TokenRefresh, TokenGeneral} {
		secret := secrets[kind]
		if secret == "" {
			return nil, fmt.Errorf("token: %s secret must be provided", kind)
		}
		if other, dup := seen[secret]; dup {
			return nil, fmt.Errorf("token: %s and %s secrets must differ", other, kind)
		}
		seen[secret] = kind
		keys[kind] = []byte(secret)
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenCodec{
		secrets:    keys,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     cfg.Issuer,
		now:        now,
	}, nil
}

// AccessTTL reports the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// Sign embeds payload and the issue time in a token signed with the secret of
// kind. A non-positive ttl yields a token without expiry.
func (c *TokenCodec) Sign(kind TokenKind, payload TokenPayload, ttl time.Duration) (string, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return "", fmt.Errorf("token: unknown kind %q", kind)
	}

	now := c.now()
	claims := &Claims{
		UserID: payload.UserID,
		Token:  payload.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.issuer,
			Subject:  payload.UserID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token of the given kind.
func (c *TokenCodec) Verify(kind TokenKind, tokenString string) (*Claims, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return nil, fmt.Errorf("token: unknown kind %q", kind)
	}
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	return &claims, nil
}

// IssueAccess mints an access token for userID.
func (c *TokenCodec) IssueAccess(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("token: user id is required")
	}
	return c.Sign(TokenAccess, TokenPayload{UserID: userID}, c.accessTTL)
}

// IssuePair mints an access and refresh token for userID.
func (c *TokenCodec) IssuePair(userID string) (TokenPair, error) {
	access, err := c.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.Sign(TokenRefresh, TokenPayload{UserID: userID}, c.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SignSecret wraps an opaque secret in a general-purpose token.
func (c *TokenCodec) SignSecret(secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("token: secret is required")
	}
	return c.Sign(TokenGeneral, TokenPayload{Token: secret}, ttl)
}

// VerifySecret unwraps the opaque secret carried by a general-purpose token.
func (c *TokenCodec) VerifySecret(tokenString string) (string, error) {
	claims, err := c.Verify(TokenGeneral, tokenString)
	if err != nil {
		return "", err
	}
	if claims.Token == "" {
		return "", fmt.Errorf("%w: missing token claim", ErrInvalidToken)
	}
	return claims.Token, nil
}
