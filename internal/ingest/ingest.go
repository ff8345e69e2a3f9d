package ingest

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"mangashelf/internal/bookstore"
	"mangashelf/internal/metrics"
	"mangashelf/internal/sync"
	"mangashelf/pkg/logging"
	"mangashelf/pkg/models"
)

// DefaultSeriesPause spaces out catalog calls between series. It is a
// provisional courtesy delay, not a documented upstream rate.
const DefaultSeriesPause = time.Second

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("ingestion already running")

type Catalog interface {
	LatestVolumes(ctx context.Context, seriesName string) ([]models.BookItem, error)
}

type FavoriteStore interface {
	List(ctx context.Context) ([]models.Favorite, error)
	BackfillAuthor(ctx context.Context, id int64, author string) (bool, error)
}

type VolumeStore interface {
	FindByTitle(ctx context.Context, favoriteID int64, title string) (*models.Volume, error)
	Insert(ctx context.Context, v models.Volume) (*models.Volume, bool, error)
	BackfillNumber(ctx context.Context, id int64, number int) (bool, error)
}

// Run is the outcome of one pass over every favorite.
type Run struct {
	ID         string                `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Results    []models.SeriesResult `json:"results"`
}

// NewVolumes counts volumes inserted across all series.
func (r Run) NewVolumes() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.NewVolumes)
	}
	return n
}

func (r Run) Failures() int {
	n := 0
	for _, res := range r.Results {
		if !res.Success {
			n++
		}
	}
	return n
}

// Service walks favorites one at a time and records new catalog volumes.
type Service struct {
	Catalog   Catalog
	Favorites FavoriteStore
	Volumes   VolumeStore
	Hub       sync.Broadcaster
	Pause     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	mu    gosync.Mutex
}

func NewService(catalog Catalog, favs FavoriteStore, vols VolumeStore, hub sync.Broadcaster) *Service {
	return &Service{
		Catalog:   catalog,
		Favorites: favs,
		Volumes:   vols,
		Hub:       hub,
		Pause:     DefaultSeriesPause,
		sleep:     sleepCtx,
	}
}

// Run processes every favorite sequentially. Per-series failures are recorded
// in the results; only a failed favorites read (or cancellation) aborts.
func (s *Service) Run(ctx context.Context) (*Run, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	if c, ok := s.Catalog.(interface{ Configured() bool }); ok && !c.Configured() {
		return nil, bookstore.ErrNotConfigured
	}

	favs, err := s.Favorites.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}

	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]models.SeriesResult, 0, len(favs)),
	}
	log := logging.With().Str("component", "ingest").Str("run_id", run.ID).Logger()
	log.Info().Int("series", len(favs)).Msg("ingestion started")

	for i, fav := range favs {
		if i > 0 {
			if err := s.sleep(ctx, s.Pause); err != nil {
				return s.finish(run), err
			}
		}
		res := s.processSeries(ctx, fav)
		if !res.Success {
			log.Warn().Str("series", fav.SeriesName).Str("error", res.Error).Msg("series failed")
		}
		run.Results = append(run.Results, res)
	}

	s.finish(run)
	log.Info().Int("new_volumes", run.NewVolumes()).Int("failures", run.Failures()).Msg("ingestion finished")
	return run, nil
}

func (s *Service) finish(run *Run) *Run {
	run.FinishedAt = time.Now().UTC()
	metrics.ObserveIngest(run.StartedAt, run.NewVolumes(), run.Failures())
	sync.Publish(s.Hub, sync.ShelfEvent{
		Type:       sync.EventUpdateCompleted,
		RunID:      run.ID,
		NewVolumes: run.NewVolumes(),
		Failures:   run.Failures(),
	})
	return run
}

func (s *Service) processSeries(ctx context.Context, fav models.Favorite) models.SeriesResult {
	res := models.SeriesResult{
		FavoriteID: fav.ID,
		SeriesName: fav.SeriesName,
		NewVolumes: []models.Volume{},
	}

	items, err := s.Catalog.LatestVolumes(ctx, fav.SeriesName)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if len(items) > 0 && items[0].Author != "" && (fav.AuthorName == nil || *fav.AuthorName == "") {
		if _, err := s.Favorites.BackfillAuthor(ctx, fav.ID, items[0].Author); err != nil {
			res.Error = err.Error()
			return res
		}
	}

	for _, it := range items {
		v, err := s.storeItem(ctx, fav, it)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		if v != nil {
			res.NewVolumes = append(res.NewVolumes, *v)
		}
	}

	res.Success = true
	return res
}

// storeItem returns the inserted volume, or nil when the title was already known.
func (s *Service) storeItem(ctx context.Context, fav models.Favorite, it models.BookItem) (*models.Volume, error) {
	v := models.Volume{FavoriteID: fav.ID, Title: it.Title}
	if n, ok := ParseVolumeNumber(it.Title); ok {
		v.VolumeNumber = &n
	}
	if date, ok := bookstore.ParseReleaseDate(it.SalesDate); ok {
		v.ReleaseDate = &date
	} else if it.SalesDate != "" {
		logging.Debug().Str("title", it.Title).Str("sales_date", it.SalesDate).Msg("unparseable release date")
	}
	if it.Price > 0 {
		p := it.Price
		v.Price = &p
	}
	if it.ItemURL != "" {
		u := it.ItemURL
		v.URL = &u
	}

	existing, err := s.Volumes.FindByTitle(ctx, fav.ID, it.Title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.VolumeNumber == nil && v.VolumeNumber != nil {
			if _, err := s.Volumes.BackfillNumber(ctx, existing.ID, *v.VolumeNumber); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	saved, inserted, err := s.Volumes.Insert(ctx, v)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	sync.Publish(s.Hub, sync.ShelfEvent{
		Type:       sync.EventVolumeAdded,
		FavoriteID: fav.ID,
		SeriesName: fav.SeriesName,
		Volume:     saved,
	})
	return saved, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
