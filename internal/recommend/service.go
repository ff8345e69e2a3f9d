package recommend

import (
	"context"
	"fmt"
	"time"

	"mangashelf/internal/usage"
	"mangashelf/pkg/models"
)

type Mode string

const (
	ModeGeneral Mode = "general"
	ModeRecent  Mode = "recent"
)

// Service returns the usage service type charged for m.
func (m Mode) Service() string {
	if m == ModeRecent {
		return usage.ServiceRecentManga
	}
	return usage.ServiceRecommendations
}

type FavoriteLister interface {
	List(ctx context.Context) ([]models.Favorite, error)
}

type Meter interface {
	CheckAndRecord(ctx context.Context, identity, service string) (usage.Result, error)
}

// Query is one caller request.
type Query struct {
	Mode     Mode
	Excluded []string
	Genres   []string
	Identity string
}

type Response struct {
	Recommendations []models.Candidate `json:"recommendations"`
	BasedOn         []string           `json:"basedOn"`
	Type            Mode               `json:"type"`
	SelectedGenres  []string           `json:"selectedGenres"`
}

// Service ties favorites, metering and the pipeline together.
type Service struct {
	Favorites FavoriteLister
	Pipeline  *Pipeline
	Meter     Meter
	Now       func() time.Time
}

func NewService(favs FavoriteLister, p *Pipeline, meter Meter) *Service {
	return &Service{Favorites: favs, Pipeline: p, Meter: meter, Now: time.Now}
}

// Recommend charges the caller's quota and runs the pipeline. Recent mode
// targets series started this calendar year.
func (s *Service) Recommend(ctx context.Context, q Query) (*Response, error) {
	if q.Mode != ModeRecent {
		q.Mode = ModeGeneral
	}
	favs, err := s.Favorites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	rated := RateFavorites(favs, q.Excluded)
	if len(rated) == 0 {
		return nil, ErrNoFavorites
	}

	if s.Meter != nil {
		if _, err := s.Meter.CheckAndRecord(ctx, q.Identity, q.Mode.Service()); err != nil {
			return nil, err
		}
	}

	opts := Options{MinRating: DefaultMinRating, Genres: cleanList(q.Genres)}
	if q.Mode == ModeRecent {
		opts.TargetYear = s.Now().UTC().Year()
	}
	opts.Skip = append(opts.Skip, q.Excluded...)
	for _, f := range favs {
		opts.Skip = append(opts.Skip, f.SeriesName)
	}

	recs, err := s.Pipeline.GetVerified(ctx, rated, opts)
	if err != nil {
		return nil, err
	}

	basedOn := make([]string, 0, len(rated))
	for _, r := range rated {
		basedOn = append(basedOn, r.Name)
	}
	return &Response{
		Recommendations: recs,
		BasedOn:         basedOn,
		Type:            q.Mode,
		SelectedGenres:  opts.Genres,
	}, nil
}
