package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/response"
)

const (
	CtxUserKey   = "authUser"
	CtxUserIDKey = "userID"
)

// Auth resolves the current user from the request's token pair. When the
// authenticator mints a new access token it is written back both as a cookie
// and in the X-Access-Token header.
func Auth(authenticator *auth.Authenticator, cookies TokenCookies) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := authenticator.Authenticate(c.Request.Context(), credentialsFrom(c))
		if err != nil {
			if errors.StatusCode(err) == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", "Bearer")
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		if session.Refreshed() {
			cookies.SetAccess(c, session.AccessToken)
			c.Header(AccessTokenHeader, session.AccessToken)
		}

		c.Set(CtxUserKey, session.User)
		c.Set(CtxUserIDKey, session.User.ID)
		c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not listed.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by Auth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
