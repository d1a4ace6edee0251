package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/cache"
	"github.com/hundredminds/backend/internal/handlers"
	"github.com/hundredminds/backend/internal/middleware"
	"github.com/hundredminds/backend/internal/services"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	Cookies        middleware.TokenCookies
	MetricsPath    string

	// Fixed-window limit applied per IP to the unauthenticated auth routes.
	AuthRequests int
	AuthWindow   time.Duration
	// Token bucket applied per IP in front of the fixed window.
	PerSecond float64
	Burst     int
}

// Dependencies are the services the router exposes.
type Dependencies struct {
	Tokens        *iauth.TokenCodec
	Authenticator *iauth.Authenticator
	SignIn        *iauth.SignInService
	Resets        *iauth.PasswordResetService
	Users         *services.UserService
	Teams         *services.TeamService
	Invites       *services.InviteService
	Limiter       cache.Store
	Health        map[string]handlers.Pinger
}

// NewRouter builds the Gin engine, wires middleware and registers the /api/v1 routes.
func NewRouter(deps Dependencies, opts Options) (*gin.Engine, error) {
	if deps.Authenticator == nil || deps.Tokens == nil {
		return nil, errors.New("router: authenticator and token codec must be provided")
	}
	if deps.Limiter == nil {
		return nil, errors.New("router: rate limit store must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.GET("/health", handlers.Health(deps.Health))

	v1 := r.Group("/api/v1")
	requireAuth := middleware.Auth(deps.Authenticator, opts.Cookies)

	if err := registerAuthRoutes(v1, deps, opts); err != nil {
		return nil, err
	}
	if err := registerUserRoutes(v1, deps, opts, requireAuth); err != nil {
		return nil, err
	}
	if err := registerTeamRoutes(v1, deps, requireAuth); err != nil {
		return nil, err
	}

	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
