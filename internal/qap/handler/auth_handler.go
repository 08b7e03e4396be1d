package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/solacepv/qapflow/internal/qap/service"
)

type AuthHandler struct {
	authSvc *service.AuthService
}

func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var in struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		BadRequest(c, "username and password are required")
		return
	}

	token, user, err := h.authSvc.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			Unauthorized(c, "invalid username or password")
			return
		}
		InternalError(c, "login failed")
		return
	}

	Success(c, gin.H{
		"token": token,
		"user":  user,
	})
}
