package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/hundredminds/backend/internal/auth"
	"github.com/hundredminds/backend/internal/middleware"
	"github.com/hundredminds/backend/internal/models"
	"github.com/hundredminds/backend/internal/services"
	"github.com/hundredminds/backend/pkg/response"
)

// AuthHandler serves sign-up, the two-step sign-in, sign-out and password reset.
type AuthHandler struct {
	signin  *iauth.SignInService
	resets  *iauth.PasswordResetService
	users   *services.UserService
	tokens  *iauth.TokenCodec
	cookies middleware.TokenCookies
}

// NewAuthHandler wires the authentication endpoints.
func NewAuthHandler(signin *iauth.SignInService, resets *iauth.PasswordResetService, users *services.UserService, tokens *iauth.TokenCodec, cookies middleware.TokenCookies) (*AuthHandler, error) {
	if signin == nil || resets == nil || users == nil || tokens == nil {
		return nil, errors.New("auth handler: services are required")
	}
	return &AuthHandler{signin: signin, resets: resets, users: users, tokens: tokens, cookies: cookies}, nil
}

type signupRequest struct {
	Username        string `json:"username" validate:"required,username"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	FirstName       string `json:"firstName" validate:"omitempty,max=64"`
	LastName        string `json:"lastName" validate:"omitempty,max=64"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp" validate:"omitempty,otp"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type sessionResponse struct {
	User   *models.User     `json:"user"`
	Tokens *iauth.TokenPair `json:"tokens"`
}

// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Signup(requestContext(c), services.SignupInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetPair(c, pair)
	response.SuccessMessage(c, http.StatusCreated, "Account created", sessionResponse{User: user, Tokens: &pair})
}

// POST /api/v1/auth/signin
//
// Without an otp the credentials are checked and a code is emailed. With one,
// the code is exchanged for a token pair.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req signinRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.signin.SignIn(requestContext(c), iauth.SignInInput{
		Email:    req.Email,
		Password: req.Password,
		OTP:      req.OTP,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Stage == iauth.StageOTPSent {
		response.SuccessMessage(c, http.StatusOK, "A sign-in code was sent to your email", gin.H{
			"stage":     result.Stage,
			"expiresAt": result.OTPExpires.Format(time.RFC3339),
		})
		return
	}

	h.cookies.SetPair(c, *result.Tokens)
	response.Success(c, http.StatusOK, gin.H{
		"stage":  result.Stage,
		"user":   result.User,
		"tokens": result.Tokens,
	})
}

// POST /api/v1/auth/signout
func (h *AuthHandler) Signout(c *gin.Context) {
	h.cookies.Clear(c)
	response.SuccessMessage(c, http.StatusOK, "Signed out", nil)
}

// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.ForgotPassword(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessMessage(c, http.StatusOK, "A password reset link was sent to your email", nil)
}

// PATCH /api/v1/auth/reset-password/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.resets.ResetPassword(requestContext(c), c.Param("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, err := h.tokens.IssuePair(user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetPair(c, pair)
	response.Success(c, http.StatusOK, sessionResponse{User: user, Tokens: &pair})
}
