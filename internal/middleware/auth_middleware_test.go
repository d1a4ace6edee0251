package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/database/testutil"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/repository"
	"github.com/hundredminds/backend/pkg/response"
)

type authFixture struct {
	now    time.Time
	tokens *auth.TokenCodec
	users  *repository.UserRepository
	router *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := repository.NewUserRepository(db)
	require.NoError(t, err)

	f := &authFixture{now: time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC), users: users}
	f.tokens, err = auth.NewTokenCodec(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		GeneralSecret: "general-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Clock:         func() time.Time { return f.now },
	})
	require.NoError(t, err)

	authenticator, err := auth.NewAuthenticator(users, f.tokens)
	require.NoError(t, err)

	cookies := TokenCookies{AccessTTL: f.tokens.AccessTTL(), RefreshTTL: f.tokens.RefreshTTL()}
	f.router = gin.New()
	f.router.GET("/me", Auth(authenticator, cookies), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserIDKey)})
	})
	f.router.GET("/admin", Auth(authenticator, cookies), RequireRole(models.RoleAdmin, models.RoleSuperuser), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return f
}

func (f *authFixture) createUser(t *testing.T, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{Username: string(role) + "-user", Email: string(role) + "@example.com", Password: "hash", Role: role}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func TestAuthMiddlewareRequiresRefreshToken(t *testing.T) {
	f := newAuthFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, response.StatusError, payload.Status)
	require.Equal(t, "You are not logged in, please log in to get access", payload.Message)
}

func TestAuthMiddlewareHeaders(t *testing.T) {
	f := newAuthFixture(t)
	user := f.createUser(t, models.RoleUser)
	pair, err := f.tokens.IssuePair(user.ID)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set(RefreshTokenHeader, pair.RefreshToken)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get(AccessTokenHeader))
	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, user.ID, payload["user_id"])
}

func TestAuthMiddlewareRefreshesExpiredAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	user := f.createUser(t, models.RoleUser)
	pair, err := f.tokens.IssuePair(user.ID)
	require.NoError(t, err)

	f.now = f.now.Add(20 * time.Minute)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: pair.AccessToken})
	req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: pair.RefreshToken})
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	fresh := w.Header().Get(AccessTokenHeader)
	require.NotEmpty(t, fresh)
	require.NotEqual(t, pair.AccessToken, fresh)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == AccessTokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, fresh, cookie.Value)
	require.True(t, cookie.HttpOnly)

	claims, err := f.tokens.Verify(auth.TokenAccess, fresh)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
}

func TestAuthMiddlewareExpiredRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	user := f.createUser(t, models.RoleUser)
	pair, err := f.tokens.IssuePair(user.ID)
	require.NoError(t, err)

	f.now = f.now.Add(25 * time.Hour)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set(RefreshTokenHeader, pair.RefreshToken)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	f := newAuthFixture(t)
	learner := f.createUser(t, models.RoleUser)
	admin := f.createUser(t, models.RoleAdmin)

	call := func(user *models.User) int {
		pair, err := f.tokens.IssuePair(user.ID)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		req.Header.Set(RefreshTokenHeader, pair.RefreshToken)
		f.router.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusForbidden, call(learner))
	require.Equal(t, http.StatusNoContent, call(admin))
}
