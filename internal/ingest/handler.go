package ingest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/bookstore"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/update", h.trigger)
}

func (h *Handler) trigger(c *gin.Context) {
	run, err := h.Service.Run(c.Request.Context())
	switch {
	case errors.Is(err, ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "an update is already running"})
		return
	case errors.Is(err, bookstore.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bookstore application id not configured"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":  run.ID,
		"results": run.Results,
	})
}
