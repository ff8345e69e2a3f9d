package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/bookstore"
	"mangashelf/pkg/models"
)

func titles(cs []models.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Title)
	}
	return out
}

func sixCandidates() []models.Candidate {
	cs, _ := ParseCandidates(candidatesJSON("A", "B", "C", "D", "E", "F"))
	return cs
}

func TestBuildPool_VerifiesInBatchesAndBackfills(t *testing.T) {
	cat := &fakeCatalog{results: map[string]catalogResult{
		"A": {books: []models.BookItem{rated(4.0, 10)}},
		"B": {books: []models.BookItem{rated(4.5, 100), rated(3.0, 1)}},
		"C": {err: fmt.Errorf("search %q: gave up after 3 attempts: %w", "C", bookstore.ErrRateLimited)},
		"D": {},
		"E": {err: &bookstore.UpstreamError{StatusCode: 500, Body: "boom"}},
		"F": {},
	}}
	p, sleeps := newTestPipeline(&fakeLLM{}, cat)

	pool, err := p.BuildPool(context.Background(), sixCandidates(), Options{MinRating: 3})
	require.NoError(t, err)

	// 2 verified, so every original is backfilled; verified first by score.
	assert.Equal(t, []string{"B", "A", "C", "D", "E", "F"}, titles(pool))
	assert.True(t, pool[0].Verified)
	assert.True(t, pool[1].Verified)
	for _, c := range pool[2:] {
		assert.False(t, c.Verified, c.Title)
		assert.Nil(t, c.QualityScore, c.Title)
	}

	require.NotNil(t, pool[0].QualityScore)
	assert.InDelta(t, bookstore.QualityScore(floatPtr(4.5), intPtr(100)), *pool[0].QualityScore, 1e-9)
	assert.Equal(t, 100, *pool[0].ReviewCount)
	assert.Equal(t, "https://img.example/cover.jpg", pool[0].ImageURL)

	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *sleeps)
	assert.LessOrEqual(t, cat.maxInflight, 2)
	require.Len(t, cat.calls, 6)
	for _, call := range cat.calls {
		assert.Equal(t, 5, call.minReviews)
		assert.Equal(t, 0, call.year)
		assert.Equal(t, 3.0, call.minRating)
	}
}

func TestBuildPool_NoBackfillWhenEnoughVerified(t *testing.T) {
	cat := &fakeCatalog{results: map[string]catalogResult{
		"A": {books: []models.BookItem{rated(3.5, 5)}},
		"B": {books: []models.BookItem{rated(4.5, 50)}},
		"C": {err: bookstore.ErrRateLimited},
		"D": {books: []models.BookItem{rated(4.0, 20)}},
	}}
	p, _ := newTestPipeline(&fakeLLM{}, cat)

	pool, err := p.BuildPool(context.Background(), sixCandidates(), Options{MinRating: 3, TargetYear: 2025})
	require.NoError(t, err)

	// rate-limited C stays as unverified; not-found E and F are dropped
	assert.Equal(t, []string{"B", "D", "A", "C"}, titles(pool))
	assert.False(t, pool[3].Verified)
	for _, call := range cat.calls {
		assert.Equal(t, 0, call.minReviews)
		assert.Equal(t, 2025, call.year)
	}
}

func TestBuildPool_StopsWhenCancelled(t *testing.T) {
	cat := &fakeCatalog{results: map[string]catalogResult{}}
	p, _ := newTestPipeline(&fakeLLM{}, cat)
	p.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	_, err := p.BuildPool(context.Background(), sixCandidates(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, cat.calls, 2)
}

func TestGetVerified_EndToEnd(t *testing.T) {
	llm := &fakeLLM{replies: []reply{
		{content: "おすすめはこちら：\n" + candidatesJSON("A", "B", "C", "Series A", "E", "F")},
		{content: `[{"title":"C","author":"x","genre":"g","reason":"picked C"},{"title":"B","author":"x","genre":"g","reason":"picked B"},{"title":"A","author":"x","genre":"g","reason":"picked A"}]`},
	}}
	cat := &fakeCatalog{results: map[string]catalogResult{
		"A": {books: []models.BookItem{rated(4.0, 10)}},
		"B": {books: []models.BookItem{rated(4.5, 100)}},
	}}
	p, _ := newTestPipeline(llm, cat)
	favs := []RatedFavorite{{Name: "Series A", Rating: 5}, {Name: "Series B", Rating: 1}}

	got, err := p.GetVerified(context.Background(), favs, Options{Skip: []string{"Series A"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, titles(got))
	assert.Equal(t, "picked B", got[1].Reason)
	assert.True(t, got[1].Verified)
	assert.False(t, got[0].Verified)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "漫画を6つおすすめしてください")
	assert.Contains(t, llm.prompts[0], "【非常に気に入っている作品★★★★★】\nSeries A")
	assert.Contains(t, llm.prompts[0], "【嫌いな作品★☆☆☆☆】\nSeries B")
	assert.Contains(t, llm.prompts[1], "- B（author B）: reason B")

	for _, call := range cat.calls {
		assert.NotEqual(t, "Series A", call.title)
	}
}

func TestGetVerified_RepairsOnce(t *testing.T) {
	broken := `[{"title": "A" "author": "x"}]`
	t.Run("repair succeeds", func(t *testing.T) {
		llm := &fakeLLM{replies: []reply{
			{content: broken},
			{content: candidatesJSON("A")},
		}}
		p, _ := newTestPipeline(llm, &fakeCatalog{results: map[string]catalogResult{
			"A": {books: []models.BookItem{rated(4, 10)}},
		}})

		got, err := p.GetVerified(context.Background(), nil, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, titles(got))
		require.Len(t, llm.prompts, 2)
		assert.Contains(t, llm.prompts[1], broken)
	})

	t.Run("repair fails", func(t *testing.T) {
		llm := &fakeLLM{replies: []reply{
			{content: broken},
			{content: "still not json"},
		}}
		p, _ := newTestPipeline(llm, &fakeCatalog{})

		_, err := p.GetVerified(context.Background(), nil, Options{})
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, broken, pe.Content)
		assert.Len(t, llm.prompts, 2)
	})

	t.Run("no json is not repaired", func(t *testing.T) {
		llm := &fakeLLM{replies: []reply{{content: "no idea"}}}
		p, _ := newTestPipeline(llm, &fakeCatalog{})

		_, err := p.GetVerified(context.Background(), nil, Options{})
		assert.ErrorIs(t, err, ErrNoJSONFound)
		assert.Len(t, llm.prompts, 1)
	})
}

func TestGetVerified_NothingLeft(t *testing.T) {
	llm := &fakeLLM{replies: []reply{{content: candidatesJSON("Series A")}}}
	p, _ := newTestPipeline(llm, &fakeCatalog{})

	_, err := p.GetVerified(context.Background(), nil, Options{Skip: []string{"Ｓｅｒｉｅｓ Ａ"}})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGetVerified_CompletionError(t *testing.T) {
	llm := &fakeLLM{replies: []reply{{err: &StatusError{StatusCode: 429}}}}
	p, _ := newTestPipeline(llm, &fakeCatalog{})

	_, err := p.GetVerified(context.Background(), nil, Options{})
	assert.True(t, errors.Is(err, ErrRateLimited))
}
