package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/dto"
	"github.com/autodock-deploy/utils"
)

// AuthHandler exchanges the static API key for a short-lived JWT
type AuthHandler struct {
	settings config.Settings
}

func NewAuthHandler(settings config.Settings) *AuthHandler {
	return &AuthHandler{settings: settings}
}

// Token issues an operator token
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
		})
		return
	}

	if h.settings.APIKey == "" || req.APIKey != h.settings.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": "Invalid API key",
		})
		return
	}

	token, expiresAt, err := utils.GenerateOperatorToken(h.settings.JWTSecret, "operator")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{Token: token, ExpiresAt: expiresAt})
}
