package models

import "time"

// Favorite is a tracked series. Author and rating are filled in later,
// by ingestion and by the user respectively.
type Favorite struct {
	ID         int64     `json:"id"`
	SeriesName string    `json:"series_name"`
	AuthorName *string   `json:"author_name"`
	Rating     *int      `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stars returns the rating, or 0 when unrated.
func (f Favorite) Stars() int {
	if f.Rating == nil {
		return 0
	}
	return *f.Rating
}

// DisplayName is the series name with the author in full-width parentheses when known.
func (f Favorite) DisplayName() string {
	if f.AuthorName == nil || *f.AuthorName == "" {
		return f.SeriesName
	}
	return f.SeriesName + "（" + *f.AuthorName + "）"
}
