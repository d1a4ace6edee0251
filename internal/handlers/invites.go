package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/services"
	"github.com/hundredminds/backend/pkg/response"
)

// InviteHandler issues and redeems team invitations.
type InviteHandler struct {
	svc *services.InviteService
}

type createInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// NewInviteHandler wires the invitation endpoints.
func NewInviteHandler(svc *services.InviteService) (*InviteHandler, error) {
	if svc == nil {
		return nil, errors.New("invite handler: service is required")
	}
	return &InviteHandler{svc: svc}, nil
}

// POST /api/v1/teams/:id/invites
func (h *InviteHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invite, err := h.svc.CreateInvite(requestContext(c), user.ID, c.Param("id"), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessMessage(c, http.StatusCreated, "Invitation sent", gin.H{
		"id":        invite.ID,
		"teamId":    invite.TeamID,
		"inviteeId": invite.InviteeID,
		"expiresAt": invite.InviteLinkExpires,
	})
}

// POST /api/v1/teams/join/:token
func (h *InviteHandler) Join(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	team, err := h.svc.JoinTeam(requestContext(c), user.ID, c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessMessage(c, http.StatusOK, "You joined "+team.Name, team)
}

// POST /api/v1/teams/decline/:token
func (h *InviteHandler) Decline(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.svc.DeclineInvite(requestContext(c), user.ID, c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessMessage(c, http.StatusOK, "Invitation declined", nil)
}
