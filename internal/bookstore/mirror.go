package bookstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/width"

	"mangashelf/pkg/models"
)

// MirrorFile is an offline catalog snapshot. Its Items use the same nesting as
// a live search response.
type MirrorFile struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Items       []SearchEntry `json:"Items"`
}

// ItemFromVolume renders a stored volume as a catalog item.
func ItemFromVolume(v models.Volume, author string) CatalogItem {
	it := CatalogItem{Title: v.Title, Author: author}
	if v.ReleaseDate != nil {
		if t, err := time.Parse(time.DateOnly, *v.ReleaseDate); err == nil {
			it.SalesDate = t.Format("2006年01月02日")
		}
	}
	if v.Price != nil {
		it.ItemPrice = *v.Price
	}
	if v.URL != nil {
		it.ItemURL = *v.URL
	}
	return it
}

func LoadMirror(path string) (*MirrorFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mirror: %w", err)
	}
	var m MirrorFile
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode mirror: %w", err)
	}
	return &m, nil
}

func WriteMirror(path string, m *MirrorFile) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	return nil
}

// Search matches the catalog's title search loosely: case and width
// insensitive containment, optional lower bound on release date, newest
// first, at most hits entries.
func (m *MirrorFile) Search(title, salesDateFrom string, hits int) []SearchEntry {
	if hits <= 0 {
		hits = defaultHits
	}
	needle := foldTitle(title)

	type dated struct {
		entry SearchEntry
		date  string
	}
	var found []dated
	for _, e := range m.Items {
		if needle != "" && !strings.Contains(foldTitle(e.Item.Title), needle) {
			continue
		}
		date, _ := ParseReleaseDate(e.Item.SalesDate)
		if salesDateFrom != "" && (date == "" || date < salesDateFrom) {
			continue
		}
		found = append(found, dated{e, date})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].date > found[j].date
	})

	out := make([]SearchEntry, 0, min(len(found), hits))
	for _, d := range found {
		if len(out) == hits {
			break
		}
		out = append(out, d.entry)
	}
	return out
}

func foldTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(width.Fold.String(s)))
}

// MirrorHandler answers catalog search requests from the mirror file at
// path, reread on every request so it can be regenerated in place.
func MirrorHandler(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := LoadMirror(path)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "mirror_unavailable", "error_description": err.Error()})
			return
		}
		hits, _ := strconv.Atoi(c.Query("hits"))
		c.JSON(http.StatusOK, searchResponse{Items: m.Search(c.Query("title"), c.Query("salesDateFrom"), hits)})
	}
}
