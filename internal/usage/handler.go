package usage

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Meter *Meter
}

func NewHandler(m *Meter) *Handler {
	return &Handler{Meter: m}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.status)
	rg.POST("/usage", h.record)
}

// GinIdentity adapts ClientIdentity for middleware keyed by caller.
func GinIdentity(c *gin.Context) string {
	return ClientIdentity(c.Request)
}

type recordReq struct {
	ServiceType string `json:"serviceType"`
}

// The query key is "service"; "serviceType" is accepted to match the POST body.
func (h *Handler) status(c *gin.Context) {
	service := c.Query("service")
	if service == "" {
		service = c.Query("serviceType")
	}
	if service == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "service is required"})
		return
	}
	st, err := h.Meter.Status(c.Request.Context(), ClientIdentity(c.Request), service)
	if errors.Is(err, ErrUnknownService) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown serviceType"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read usage"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) record(c *gin.Context) {
	var req recordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ServiceType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "serviceType is required"})
		return
	}

	res, err := h.Meter.CheckAndRecord(c.Request.Context(), ClientIdentity(c.Request), req.ServiceType)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RespondError writes the HTTP answer for a metering failure.
func RespondError(c *gin.Context, err error) {
	var le *LimitExceededError
	switch {
	case errors.As(err, &le):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": le.Message(),
			"limit": le.Limit,
			"count": le.Count,
			"max":   le.Max,
		})
	case errors.Is(err, ErrUnknownService):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown serviceType"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record usage"})
	}
}
