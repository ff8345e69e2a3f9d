package bookstore

import (
	"context"
	"sort"
	"strings"

	"mangashelf/pkg/models"
)

const latestVolumeCount = 3

// LatestVolumes returns up to three newest catalog entries for a series.
// Items whose title contains the series name are preferred; when none do, the
// unfiltered result is used. No match is not an error.
func (c *Client) LatestVolumes(ctx context.Context, seriesName string) ([]models.BookItem, error) {
	items, err := c.SearchByTitle(ctx, seriesName)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []models.BookItem{}, nil
	}

	needle := strings.ToLower(strings.TrimSpace(seriesName))
	matched := make([]models.BookItem, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), needle) {
			matched = append(matched, it)
		}
	}
	if len(matched) == 0 {
		matched = items
	}

	SortByReleaseDesc(matched)
	if len(matched) > latestVolumeCount {
		matched = matched[:latestVolumeCount]
	}
	return matched, nil
}

// SortByReleaseDesc orders items newest first. Items with unparseable dates
// keep their relative order after all dated ones.
func SortByReleaseDesc(items []models.BookItem) {
	sort.SliceStable(items, func(i, j int) bool {
		di, iok := ParseReleaseDate(items[i].SalesDate)
		dj, jok := ParseReleaseDate(items[j].SalesDate)
		switch {
		case iok && jok:
			return di > dj
		case iok:
			return true
		default:
			return false
		}
	})
}
