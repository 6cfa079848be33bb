package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/nayandeep999/truefeedback/internal/auth"
	"github.com/nayandeep999/truefeedback/internal/middleware"
	"github.com/nayandeep999/truefeedback/internal/models"
	"github.com/nayandeep999/truefeedback/internal/services"
	"github.com/nayandeep999/truefeedback/pkg/errors"
	"github.com/nayandeep999/truefeedback/pkg/response"
)

// AuthHandler manages registration, verification, and session flows.
type AuthHandler struct {
	users    *services.UserService
	sessions *iauth.SessionService
}

func NewAuthHandler(users *services.UserService, sessions *iauth.SessionService) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

type signupRequest struct {
	Username string `json:"username" validate:"required,min=2,max=20,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type verifyCodeRequest struct {
	Username string `json:"username" validate:"required"`
	Code     string `json:"code" validate:"required,len=6"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated,
		"User registered successfully. Please verify your email.",
		gin.H{"username": user.Username},
	)
}

// POST /api/auth/verify-code
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.VerifyCode(requestContext(c), req.Username, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK,
		"Account verified successfully",
		gin.H{"username": user.Username},
	)
}

// GET /api/auth/check-username?username=
func (h *AuthHandler) CheckUsername(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if err := validateUsername(username); err != nil {
		response.Error(c, err)
		return
	}

	available, err := h.users.IsUsernameAvailable(requestContext(c), username)
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Username is available"
	if !available {
		message = "Username is already taken"
	}

	response.SuccessWithMessage(c, http.StatusOK, message, gin.H{"available": available})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Identifier, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(user, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"user":   userPayload(user),
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.RefreshSession(strings.TrimSpace(req.RefreshToken))
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"tokens": tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	v, ok := c.Get(middleware.CtxSessionIDKey)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	sid, _ := v.(string)
	if sid == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(sid); err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, userPayload(user))
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":                    user.ID,
		"username":              user.Username,
		"email":                 user.Email,
		"is_verified":           user.IsVerified,
		"is_accepting_messages": user.IsAcceptingMessages,
	}
}
