package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/usage"
	"mangashelf/pkg/logging"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/recommendations", h.get)
}

func (h *Handler) get(c *gin.Context) {
	mode := Mode(c.DefaultQuery("type", string(ModeGeneral)))
	if mode != ModeGeneral && mode != ModeRecent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be general or recent"})
		return
	}
	excluded, ok := jsonList(c, "excluded")
	if !ok {
		return
	}
	genres, ok := jsonList(c, "genres")
	if !ok {
		return
	}

	resp, err := h.Service.Recommend(c.Request.Context(), Query{
		Mode:     mode,
		Excluded: excluded,
		Genres:   genres,
		Identity: usage.ClientIdentity(c.Request),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// jsonList reads a query parameter holding a JSON array of strings.
func jsonList(c *gin.Context, key string) ([]string, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a JSON array of strings"})
		return nil, false
	}
	return out, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	var le *usage.LimitExceededError
	switch {
	case errors.As(err, &le):
		usage.RespondError(c, err)
	case errors.Is(err, ErrNoFavorites):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No favorites found. Please add some manga to your favorites first."})
	case errors.Is(err, ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "completion api key not configured"})
	case errors.Is(err, ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "recommendation service is busy, try again later"})
	case errors.Is(err, context.Canceled):
		// caller went away
		c.Status(499)
	default:
		var pe *ParseError
		status := http.StatusInternalServerError
		if IsUpstream(err) || errors.As(err, &pe) || errors.Is(err, ErrNoCandidates) || errors.Is(err, ErrNoJSONFound) || errors.Is(err, ErrNoContent) {
			status = http.StatusBadGateway
		}
		logging.Error().Err(err).Msg("recommendation failed")
		c.JSON(status, gin.H{"error": "Failed to generate recommendations"})
	}
}
