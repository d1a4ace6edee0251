package api

import (
	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/handlers"
	"github.com/hundredminds/backend/internal/middleware"
	"github.com/hundredminds/backend/internal/models"
)

func registerUserRoutes(v1 *gin.RouterGroup, deps Dependencies, opts Options, requireAuth gin.HandlerFunc) error {
	userHandler, err := handlers.NewUserHandler(deps.Users, opts.Cookies)
	if err != nil {
		return err
	}

	users := v1.Group("/users", requireAuth)
	{
		users.GET("/me", userHandler.Me)
		users.PATCH("/me/password", userHandler.ChangePassword)
		users.POST("/me/avatar", userHandler.UploadAvatar)
	}

	admin := users.Group("", middleware.RequireRole(models.RoleAdmin, models.RoleSuperuser))
	{
		admin.GET("", userHandler.List)
		admin.PATCH("/:id/suspension", userHandler.SetSuspension)
		admin.DELETE("/:id", userHandler.Delete)
	}
	return nil
}
