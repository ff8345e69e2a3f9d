package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mangashelf/pkg/logging"
)

type Handler struct {
	Keys   *KeyVerifier
	Tokens TokenService
}

func NewHandler(keys *KeyVerifier, tokens TokenService) *Handler {
	return &Handler{Keys: keys, Tokens: tokens}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", h.token)
}

type tokenReq struct {
	Key string `json:"key"`
}

func (h *Handler) token(c *gin.Context) {
	if !h.Keys.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "operator auth is not enabled"})
		return
	}

	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key required"})
		return
	}

	if !h.Keys.Verify(req.Key) {
		logging.Warn().Str("client", c.ClientIP()).Msg("rejected admin key")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := h.Tokens.Sign("admin", RoleOperator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}
