package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/auth"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	// AccessTokenHeader carries a freshly minted access token back to header-based clients.
	AccessTokenHeader  = "X-Access-Token"
	RefreshTokenHeader = "X-Refresh-Token"
)

// TokenCookies writes and reads the token pair as HTTP-only cookies.
type TokenCookies struct {
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SetPair stores both tokens on the response.
func (t TokenCookies) SetPair(c *gin.Context, pair auth.TokenPair) {
	t.SetAccess(c, pair.AccessToken)
	t.set(c, RefreshTokenCookie, pair.RefreshToken, t.RefreshTTL)
}

// SetAccess stores a new access token on the response.
func (t TokenCookies) SetAccess(c *gin.Context, token string) {
	t.set(c, AccessTokenCookie, token, t.AccessTTL)
}

// Clear expires both cookies.
func (t TokenCookies) Clear(c *gin.Context) {
	t.set(c, AccessTokenCookie, "", -time.Second)
	t.set(c, RefreshTokenCookie, "", -time.Second)
}

func (t TokenCookies) set(c *gin.Context, name, value string, ttl time.Duration) {
	sameSite := t.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(sameSite)
	c.SetCookie(name, value, maxAge, "/", t.Domain, t.Secure, true)
}

// credentialsFrom reads the token pair from cookies, falling back to the
// Authorization and X-Refresh-Token headers.
func credentialsFrom(c *gin.Context) auth.Credentials {
	var creds auth.Credentials
	if v, err := c.Cookie(AccessTokenCookie); err == nil {
		creds.AccessToken = v
	}
	if v, err := c.Cookie(RefreshTokenCookie); err == nil {
		creds.RefreshToken = v
	}

	if creds.AccessToken == "" {
		authz := c.GetHeader("Authorization")
		if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
			creds.AccessToken = strings.TrimSpace(authz[7:])
		}
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = strings.TrimSpace(c.GetHeader(RefreshTokenHeader))
	}
	return creds
}
