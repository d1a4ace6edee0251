package api

import (
	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/handlers"
)

func registerTeamRoutes(v1 *gin.RouterGroup, deps Dependencies, requireAuth gin.HandlerFunc) error {
	teamHandler, err := handlers.NewTeamHandler(deps.Teams)
	if err != nil {
		return err
	}
	inviteHandler, err := handlers.NewInviteHandler(deps.Invites)
	if err != nil {
		return err
	}

	teams := v1.Group("/teams", requireAuth)
	{
		teams.GET("", teamHandler.List)
		teams.POST("", teamHandler.Create)
		teams.POST("/join/:token", inviteHandler.Join)
		teams.POST("/decline/:token", inviteHandler.Decline)
		teams.GET("/:id", teamHandler.Get)
		teams.DELETE("/:id", teamHandler.Delete)
		teams.GET("/:id/members", teamHandler.ListMembers)
		teams.DELETE("/:id/members/:userId", teamHandler.RemoveMember)
		teams.POST("/:id/invites", inviteHandler.Create)
	}
	return nil
}
