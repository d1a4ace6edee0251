package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/logger"
	"github.com/hundredminds/backend/pkg/response"
)

// Recovery turns a panicking handler into the generic 500 envelope. The panic
// value is logged, never returned to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && err == http.ErrAbortHandler {
				panic(rec)
			}

			logger.FromContext(c.Request.Context()).Error("handler panicked",
				zap.String("module", "http"),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(errors.ErrInternalServer.StatusCode, response.Response{
				Status:  response.StatusError,
				Code:    errors.ErrInternalServer.Code,
				Message: errors.ErrInternalServer.Message,
			})
		}()
		c.Next()
	}
}

// NotFoundHandler answers requests that match no route.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.NewNotFound(fmt.Sprintf("Can't find %s on this server", c.Request.URL.Path)))
}
