package models

// BookItem is the normalized shape of one bookstore catalog entry.
type BookItem struct {
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Publisher     string   `json:"publisher"`
	SalesDate     string   `json:"sales_date"` // free text, e.g. "2018年12月04日頃"
	Price         int      `json:"price"`
	ItemURL       string   `json:"item_url"`
	ISBN          string   `json:"isbn,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	ReviewAverage *float64 `json:"review_average,omitempty"`
	ReviewCount   *int     `json:"review_count,omitempty"`
	QualityScore  float64  `json:"quality_score,omitempty"`
}
