package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hundredminds/backend/internal/middleware"
	"github.com/hundredminds/backend/internal/services"
	appErrors "github.com/hundredminds/backend/pkg/errors"
	"github.com/hundredminds/backend/pkg/response"
)

const maxAvatarUpload = 5 << 20

// UserHandler serves the profile and the administration endpoints.
type UserHandler struct {
	svc     *services.UserService
	cookies middleware.TokenCookies
}

// NewUserHandler wires the user endpoints.
func NewUserHandler(svc *services.UserService, cookies middleware.TokenCookies) (*UserHandler, error) {
	if svc == nil {
		return nil, errors.New("user handler: service is required")
	}
	return &UserHandler{svc: svc, cookies: cookies}, nil
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type suspensionRequest struct {
	Suspended *bool `json:"suspended" validate:"required"`
}

// GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PATCH /api/v1/users/me/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, err := h.svc.ChangePassword(requestContext(c), user.ID, services.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetPair(c, *pair)
	response.SuccessMessage(c, http.StatusOK, "Password updated", gin.H{"tokens": pair})
}

// POST /api/v1/users/me/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarUpload)
	header, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("avatar file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("avatar file could not be read"))
		return
	}
	defer file.Close()

	updated, err := h.svc.UpdateAvatar(requestContext(c), user.ID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 20)
	if perPage > 100 {
		perPage = 100
	}

	users, total, err := h.svc.List(requestContext(c), page, perPage)
	if err != nil {
		response.Error(c, err)
		return
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	response.SuccessWithMeta(c, http.StatusOK, users, response.NewMeta(page, perPage, total))
}

// PATCH /api/v1/users/:id/suspension
func (h *UserHandler) SetSuspension(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req suspensionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.SetSuspended(requestContext(c), actor, c.Param("id"), *req.Suspended)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
