package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/handlers"
	"github.com/hundredminds/backend/internal/middleware"
)

const (
	defaultAuthRequests = 100
	defaultAuthWindow   = time.Hour
)

func registerAuthRoutes(v1 *gin.RouterGroup, deps Dependencies, opts Options) error {
	authHandler, err := handlers.NewAuthHandler(deps.SignIn, deps.Resets, deps.Users, deps.Tokens, opts.Cookies)
	if err != nil {
		return err
	}

	requests, window := opts.AuthRequests, opts.AuthWindow
	if requests <= 0 {
		requests = defaultAuthRequests
	}
	if window <= 0 {
		window = defaultAuthWindow
	}

	auth := v1.Group("/auth")
	if opts.PerSecond > 0 && opts.Burst > 0 {
		auth.Use(middleware.Throttle(opts.PerSecond, opts.Burst))
	}
	auth.Use(middleware.RateLimit(deps.Limiter, requests, window))
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/signin", authHandler.Signin)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.PATCH("/reset-password/:token", authHandler.ResetPassword)
		auth.POST("/signout", authHandler.Signout)
	}
	return nil
}
