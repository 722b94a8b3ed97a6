package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autobook/internal/service/auth"
	"autobook/pkg/utils"
)

// AuthHandler authentication handler
type AuthHandler struct {
	authService auth.AuthService
}

// NewAuthHandler creates an authentication handler
func NewAuthHandler(authService auth.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid parameters: "+err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// Login user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid parameters: "+err.Error())
		return
	}

	ip := c.ClientIP()
	tokenResp, err := h.authService.Login(c.Request.Context(), &req, ip)
	if err != nil {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
		return
	}

	utils.SuccessResponse(c, tokenResp)
}

// Logout user logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, "Unauthorized")
		return
	}
	token := c.GetString("token")

	if err := h.authService.Logout(c.Request.Context(), userID.(uint64), token); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeInternalError, "logout failed")
		return
	}

	utils.SuccessResponse(c, nil)
}

// RefreshToken refreshes token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidParam, "invalid parameters")
		return
	}

	tokenResp, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.ErrorResponse(c, http.StatusUnauthorized, utils.CodeUnauthorized, err.Error())
		return
	}

	utils.SuccessResponse(c, tokenResp)
}
