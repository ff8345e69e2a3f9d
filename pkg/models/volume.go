package models

import "time"

// Volume is one catalog entry believed to belong to a Favorite.
// VolumeNumber and ReleaseDate are parsed and may be nil; they are never invented.
type Volume struct {
	ID           int64     `json:"id"`
	FavoriteID   int64     `json:"favorite_id"`
	Title        string    `json:"title"`
	VolumeNumber *int      `json:"volume_number"`
	ReleaseDate  *string   `json:"release_date"` // YYYY-MM-DD
	Price        *int      `json:"price"`
	URL          *string   `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

// SeriesResult is the per-favorite outcome of one ingestion run.
type SeriesResult struct {
	FavoriteID int64    `json:"favorite_id"`
	SeriesName string   `json:"series_name"`
	Success    bool     `json:"success"`
	NewVolumes []Volume `json:"new_volumes"`
	Error      string   `json:"error,omitempty"`
}
