package recommend

import (
	"context"
	"encoding/json"
	"errors"
	gosync "sync"
	"time"

	"mangashelf/pkg/models"
)

type reply struct {
	content string
	err     error
}

// fakeLLM answers prompts from a script and records them.
type fakeLLM struct {
	mu      gosync.Mutex
	replies []reply
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if len(f.replies) == 0 {
		return "", errors.New("unexpected completion")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.content, r.err
}

type catalogResult struct {
	books []models.BookItem
	err   error
}

type catalogCall struct {
	title      string
	minRating  float64
	minReviews int
	year       int
}

type fakeCatalog struct {
	mu          gosync.Mutex
	results     map[string]catalogResult
	calls       []catalogCall
	inflight    int
	maxInflight int
}

func (f *fakeCatalog) SearchWithRatings(_ context.Context, title string, minRating float64, minReviews, year int) ([]models.BookItem, error) {
	f.mu.Lock()
	f.inflight++
	f.maxInflight = max(f.maxInflight, f.inflight)
	f.calls = append(f.calls, catalogCall{title, minRating, minReviews, year})
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	r := f.results[title]
	return r.books, r.err
}

func candidatesJSON(titles ...string) string {
	out := make([]map[string]string, 0, len(titles))
	for _, t := range titles {
		out = append(out, map[string]string{
			"title":  t,
			"author": "author " + t,
			"genre":  "genre",
			"reason": "reason " + t,
		})
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func rated(avg float64, count int) models.BookItem {
	return models.BookItem{Title: "book", ReviewAverage: &avg, ReviewCount: &count, ImageURL: "https://img.example/cover.jpg"}
}

func newTestPipeline(llm *fakeLLM, cat *fakeCatalog) (*Pipeline, *[]time.Duration) {
	p := NewPipeline(NewRecommender(llm), cat)
	var sleeps []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return p, &sleeps
}

func floatPtr(f float64) *float64 { return &f }
