package favorites

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/sync"
)

type Handler struct {
	Repo *Repo
	Hub  sync.Broadcaster
}

func NewHandler(repo *Repo, hub sync.Broadcaster) *Handler {
	return &Handler{Repo: repo, Hub: hub}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/favorites", h.list)
	rg.GET("/favorites/:id", h.getOne)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.POST("/favorites", h.create)
	rg.PUT("/favorites/rating", h.rate)
	rg.DELETE("/favorites/:id", h.remove)
}

type createReq struct {
	SeriesName string `json:"series_name" binding:"required"`
}

type rateReq struct {
	MangaID *int64 `json:"mangaId" binding:"required"`
	Rating  *int   `json:"rating" binding:"required,min=0,max=5"`
}

func (h *Handler) list(c *gin.Context) {
	favs, err := h.Repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch favorites"})
		return
	}
	c.JSON(http.StatusOK, favs)
}

func (h *Handler) getOne(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	fav, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if fav == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, fav)
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series_name required"})
		return
	}
	name := strings.TrimSpace(req.SeriesName)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series_name required"})
		return
	}

	fav, err := h.Repo.Create(c.Request.Context(), name)
	if errors.Is(err, ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "series already tracked"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	sync.Publish(h.Hub, sync.ShelfEvent{
		Type:       sync.EventFavoriteCreated,
		FavoriteID: fav.ID,
		SeriesName: fav.SeriesName,
	})
	c.JSON(http.StatusCreated, fav)
}

func (h *Handler) rate(c *gin.Context) {
	var req rateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mangaId and rating (0-5) required"})
		return
	}

	ok, err := h.Repo.SetRating(c.Request.Context(), *req.MangaID, *req.Rating)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update rating"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	fav, err := h.Repo.Get(c.Request.Context(), *req.MangaID)
	if err != nil || fav == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	sync.Publish(h.Hub, sync.ShelfEvent{
		Type:       sync.EventFavoriteRated,
		FavoriteID: fav.ID,
		SeriesName: fav.SeriesName,
		Rating:     fav.Rating,
	})
	c.JSON(http.StatusOK, fav)
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	deleted, err := h.Repo.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	sync.Publish(h.Hub, sync.ShelfEvent{Type: sync.EventFavoriteDeleted, FavoriteID: id})
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
