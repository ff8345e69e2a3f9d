package bookstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"mangashelf/pkg/models"
)

const maxRatedResults = 10

// QualityScore is reviewAverage × log10(reviewCount + 1), defaulting a missing
// average to 3.0 and a missing count to 1.
func QualityScore(avg *float64, count *int) float64 {
	a := 3.0
	if avg != nil && *avg > 0 {
		a = *avg
	}
	n := 1
	if count != nil && *count > 0 {
		n = *count
	}
	return a * math.Log10(float64(n)+1)
}

// SearchWithRatings searches title and keeps items that clear the quality bar,
// best first, at most 10. A targetYear > 0 restricts to releases from Jan 1 of
// that year and relaxes the bar: unrated items pass and review count is ignored.
// Rate limits are retried with exponential backoff; other errors return at once.
func (c *Client) SearchWithRatings(ctx context.Context, title string, minRating float64, minReviewCount, targetYear int) ([]models.BookItem, error) {
	items, err := c.searchWithBackoff(ctx, title, targetYear)
	if err != nil {
		return nil, err
	}

	out := make([]models.BookItem, 0, len(items))
	for _, it := range items {
		if !passesQuality(it, minRating, minReviewCount, targetYear) {
			continue
		}
		it.QualityScore = QualityScore(it.ReviewAverage, it.ReviewCount)
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QualityScore > out[j].QualityScore
	})
	if len(out) > maxRatedResults {
		out = out[:maxRatedResults]
	}
	return out, nil
}

func passesQuality(it models.BookItem, minRating float64, minReviewCount, targetYear int) bool {
	if targetYear > 0 {
		if date, ok := ParseReleaseDate(it.SalesDate); ok && date < fmt.Sprintf("%04d-01-01", targetYear) {
			return false
		}
		return it.ReviewAverage == nil || *it.ReviewAverage >= minRating
	}
	if it.ReviewAverage == nil || *it.ReviewAverage < minRating {
		return false
	}
	count := 0
	if it.ReviewCount != nil {
		count = *it.ReviewCount
	}
	return count >= minReviewCount
}

func (c *Client) searchWithBackoff(ctx context.Context, title string, fromYear int) ([]models.BookItem, error) {
	attempts := c.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := c.retryBaseDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var items []models.BookItem
		items, err = c.search(ctx, title, fromYear)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt == attempts {
			break
		}
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
		delay *= 2
	}
	if errors.Is(err, ErrRateLimited) {
		return nil, fmt.Errorf("search %q: gave up after %d attempts: %w", title, attempts, err)
	}
	return nil, err
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
