package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/services"
	"github.com/hundredminds/backend/pkg/response"
)

// TeamHandler serves team lifecycle and membership endpoints.
type TeamHandler struct {
	svc *services.TeamService
}

type createTeamRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128"`
	Description string `json:"description" validate:"omitempty,max=512"`
}

// NewTeamHandler wires the team endpoints.
func NewTeamHandler(svc *services.TeamService) (*TeamHandler, error) {
	if svc == nil {
		return nil, errors.New("team handler: service is required")
	}
	return &TeamHandler{svc: svc}, nil
}

// GET /api/v1/teams
func (h *TeamHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teams, err := h.svc.List(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// GET /api/v1/teams/:id
func (h *TeamHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	details, err := h.svc.Get(requestContext(c), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"team": details.Team, "members": details.Members})
}

// POST /api/v1/teams
func (h *TeamHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var body createTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	team, err := h.svc.Create(requestContext(c), user.ID, services.CreateTeamInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, team)
}

// DELETE /api/v1/teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(requestContext(c), user.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/teams/:id/members
func (h *TeamHandler) ListMembers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	members, err := h.svc.ListMembers(requestContext(c), user.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// DELETE /api/v1/teams/:id/members/:userId
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveMember(requestContext(c), user.ID, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
