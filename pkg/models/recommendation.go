package models

// Candidate is a transient recommendation proposal. Review fields are
// attached only after a catalog lookup.
type Candidate struct {
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Genre         string   `json:"genre"`
	Reason        string   `json:"reason"`
	ReviewAverage *float64 `json:"reviewAverage,omitempty"`
	ReviewCount   *int     `json:"reviewCount,omitempty"`
	QualityScore  *float64 `json:"qualityScore,omitempty"`
	Verified      bool     `json:"isVerified"`
	ImageURL      string   `json:"imageUrl,omitempty"`
}

// Score returns the quality score, or 0 when none was computed.
func (c Candidate) Score() float64 {
	if c.QualityScore == nil {
		return 0
	}
	return *c.QualityScore
}
