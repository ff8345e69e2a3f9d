package recommend

import (
	"context"
	"errors"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"golang.org/x/text/width"

	"mangashelf/internal/bookstore"
	"mangashelf/internal/metrics"
	"mangashelf/pkg/logging"
	"mangashelf/pkg/models"
)

const (
	// CandidatePoolSize oversamples so enough survive verification.
	CandidatePoolSize = 6
	VerifyBatchSize   = 2
	VerifyBatchPause  = 2 * time.Second
	DefaultMinRating  = 3.0

	minVerified           = 3
	defaultMinReviewCount = 5
)

// Catalog is the bookstore lookup used for verification.
type Catalog interface {
	SearchWithRatings(ctx context.Context, title string, minRating float64, minReviewCount, targetYear int) ([]models.BookItem, error)
}

// Options for one pipeline run.
type Options struct {
	MinRating  float64
	TargetYear int
	Genres     []string
	// Skip lists titles that must not be recommended.
	Skip []string
}

// Pipeline generates candidates, checks them against the catalog and ranks them.
type Pipeline struct {
	Recommender *Recommender
	Catalog     Catalog
	BatchSize   int
	BatchPause  time.Duration
	FinalCount  int

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPipeline(r *Recommender, catalog Catalog) *Pipeline {
	return &Pipeline{
		Recommender: r,
		Catalog:     catalog,
		BatchSize:   VerifyBatchSize,
		BatchPause:  VerifyBatchPause,
		FinalCount:  DefaultFinalCount,
		sleep:       sleepCtx,
	}
}

// GetVerified runs the whole pipeline and returns at most FinalCount candidates.
func (p *Pipeline) GetVerified(ctx context.Context, favs []RatedFavorite, opts Options) ([]models.Candidate, error) {
	if opts.MinRating <= 0 {
		opts.MinRating = DefaultMinRating
	}
	candidates, err := p.generate(ctx, favs, opts)
	if err != nil {
		return nil, err
	}
	candidates = dropSkipped(candidates, opts.Skip)
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	pool, err := p.BuildPool(ctx, candidates, opts)
	if err != nil {
		return nil, err
	}
	return p.Recommender.SelectBest(ctx, favs, pool, p.FinalCount)
}

// generate asks for candidates and, when the answer does not parse, asks once
// more for a repaired array. A failed repair reports the first parse error.
func (p *Pipeline) generate(ctx context.Context, favs []RatedFavorite, opts Options) ([]models.Candidate, error) {
	candidates, err := p.Recommender.GetRecommendations(ctx, favs, PromptOptions{
		TargetYear: opts.TargetYear,
		Count:      CandidatePoolSize,
		Genres:     opts.Genres,
	})
	var pe *ParseError
	if !errors.As(err, &pe) {
		return candidates, err
	}
	repaired, rerr := p.Recommender.Repair(ctx, pe.Content)
	if rerr != nil {
		logging.Warn().Err(rerr).Msg("candidate repair failed")
		return nil, err
	}
	return repaired, nil
}

// BuildPool verifies candidates in batches, backfills unverified originals
// when fewer than three were verified, and sorts verified first then by
// quality score.
func (p *Pipeline) BuildPool(ctx context.Context, candidates []models.Candidate, opts Options) ([]models.Candidate, error) {
	size := p.BatchSize
	if size <= 0 {
		size = VerifyBatchSize
	}
	checked := make([]*models.Candidate, len(candidates))

	for start := 0; start < len(candidates); start += size {
		end := min(start+size, len(candidates))
		var wg gosync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				checked[i] = p.verify(ctx, candidates[i], opts)
			}(i)
		}
		wg.Wait()

		if end < len(candidates) {
			if err := p.sleep(ctx, p.BatchPause); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pool := make([]models.Candidate, 0, len(candidates))
	present := make(map[string]bool, len(candidates))
	verified := 0
	for _, c := range checked {
		if c == nil {
			continue
		}
		pool = append(pool, *c)
		present[titleKey(c.Title)] = true
		if c.Verified {
			verified++
		}
	}
	if verified < minVerified {
		for _, c := range candidates {
			if present[titleKey(c.Title)] {
				continue
			}
			c.Verified = false
			pool = append(pool, c)
			present[titleKey(c.Title)] = true
		}
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Verified != pool[j].Verified {
			return pool[i].Verified
		}
		return pool[i].Score() > pool[j].Score()
	})
	return pool, nil
}

// verify returns the candidate with catalog data attached, unverified when the
// catalog was rate limited, or nil when it should be dropped.
func (p *Pipeline) verify(ctx context.Context, c models.Candidate, opts Options) *models.Candidate {
	minReviews := defaultMinReviewCount
	if opts.TargetYear > 0 {
		minReviews = 0
	}
	books, err := p.Catalog.SearchWithRatings(ctx, c.Title, opts.MinRating, minReviews, opts.TargetYear)
	switch {
	case errors.Is(err, bookstore.ErrRateLimited):
		metrics.VerificationOutcomes.WithLabelValues("rate_limited").Inc()
		c.Verified = false
		return &c
	case err != nil:
		metrics.VerificationOutcomes.WithLabelValues("dropped").Inc()
		logging.Warn().Err(err).Str("title", c.Title).Msg("candidate verification failed")
		return nil
	case len(books) == 0:
		metrics.VerificationOutcomes.WithLabelValues("not_found").Inc()
		return nil
	}

	best := books[0]
	metrics.VerificationOutcomes.WithLabelValues("verified").Inc()
	c.ReviewAverage = best.ReviewAverage
	c.ReviewCount = best.ReviewCount
	if best.ReviewAverage != nil {
		score := bookstore.QualityScore(best.ReviewAverage, best.ReviewCount)
		c.QualityScore = &score
	}
	c.ImageURL = best.ImageURL
	c.Verified = true
	return &c
}

func dropSkipped(candidates []models.Candidate, skip []string) []models.Candidate {
	if len(skip) == 0 {
		return candidates
	}
	set := make(map[string]bool, len(skip))
	for _, s := range skip {
		set[titleKey(s)] = true
	}
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !set[titleKey(c.Title)] {
			out = append(out, c)
		}
	}
	return out
}

// titleKey folds width and surrounding space so "ＯＮＥ ＰＩＥＣＥ" and
// "ONE PIECE" compare equal.
func titleKey(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
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
