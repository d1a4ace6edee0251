package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/middleware"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/response"
)

func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

// currentUser returns the signed-in user. Routes reach here only behind the
// Auth middleware; a missing user still answers 401 rather than panicking.
func currentUser(c *gin.Context) (*models.User, bool) {
	if user, ok := middleware.CurrentUser(c); ok {
		return user, true
	}
	response.Error(c, errors.ErrUnauthorized)
	return nil, false
}
