package bookstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	title   string
	author  string
	date    string
	avg     string
	reviews int
}

func catalogJSON(items ...item) string {
	out := `{"count":` + fmt.Sprint(len(items)) + `,"Items":[`
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"Item":{"title":%q,"author":%q,"publisherName":"集英社","salesDate":%q,"itemPrice":528,"itemUrl":"https://books.example/%d","reviewAverage":%q,"reviewCount":%d,"largeImageUrl":"https://img.example/%d.jpg"}}`,
			it.title, it.author, it.date, i, it.avg, it.reviews, i)
	}
	return out + `]}`
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	var slept []time.Duration
	opts = append([]Option{WithSleeper(func(d time.Duration) { slept = append(slept, d) })}, opts...)
	return NewClient(Config{AppID: "app-1", BaseURL: srv.URL}, opts...), &slept
}

func TestSearchByTitle_RequestAndMapping(t *testing.T) {
	var got map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"applicationId": q.Get("applicationId"),
			"title":         q.Get("title"),
			"booksGenreId":  q.Get("booksGenreId"),
			"sort":          q.Get("sort"),
			"hits":          q.Get("hits"),
			"salesDateFrom": q.Get("salesDateFrom"),
		}
		fmt.Fprint(w, catalogJSON(
			item{title: "キングダム 77", author: "原泰久", date: "2025年10月17日", avg: "4.56", reviews: 12},
			item{title: "キングダム 76", author: "原泰久", date: "2025年07月18日", avg: "0.0", reviews: 0},
		))
	})

	items, err := c.SearchByTitle(context.Background(), "キングダム")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, map[string]string{
		"applicationId": "app-1",
		"title":         "キングダム",
		"booksGenreId":  "001001",
		"sort":          "-releaseDate",
		"hits":          "30",
		"salesDateFrom": "",
	}, got)

	first := items[0]
	assert.Equal(t, "原泰久", first.Author)
	assert.Equal(t, "集英社", first.Publisher)
	assert.Equal(t, 528, first.Price)
	assert.Equal(t, "https://img.example/0.jpg", first.ImageURL)
	require.NotNil(t, first.ReviewAverage)
	assert.InDelta(t, 4.56, *first.ReviewAverage, 1e-9)
	require.NotNil(t, first.ReviewCount)
	assert.Equal(t, 12, *first.ReviewCount)

	assert.Nil(t, items[1].ReviewAverage, "0.0 means unreviewed")
	assert.Nil(t, items[1].ReviewCount)
}

func TestSearchByTitle_Errors(t *testing.T) {
	t.Run("rate limited is not retried", func(t *testing.T) {
		var calls int32
		c, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := c.SearchByTitle(context.Background(), "x")
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
		assert.Empty(t, *slept)
	})

	t.Run("upstream error carries status and body", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"wrong_parameter"}`)
		})
		_, err := c.SearchByTitle(context.Background(), "x")
		var ue *UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
		assert.Contains(t, ue.Body, "wrong_parameter")
	})

	t.Run("transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := NewClient(Config{AppID: "a", BaseURL: srv.URL})
		_, err := c.SearchByTitle(context.Background(), "x")
		var te *TransportError
		assert.ErrorAs(t, err, &te)
	})

	t.Run("bad json is a transport error", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"Items":[`)
		})
		_, err := c.SearchByTitle(context.Background(), "x")
		var te *TransportError
		assert.ErrorAs(t, err, &te)
	})

	t.Run("not configured", func(t *testing.T) {
		c := NewClient(Config{})
		_, err := c.SearchByTitle(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestSearchWithRatings_Backoff(t *testing.T) {
	t.Run("recovers after rate limits", func(t *testing.T) {
		var calls int32
		c, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, catalogJSON(item{title: "A", date: "2020年01月01日", avg: "4.0", reviews: 10}))
		})
		items, err := c.SearchWithRatings(context.Background(), "A", 3.0, 5, 0)
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		var calls int32
		c, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := c.SearchWithRatings(context.Background(), "A", 3.0, 5, 0)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
		assert.Len(t, *slept, 2)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		var calls int32
		c, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := c.SearchWithRatings(context.Background(), "A", 3.0, 5, 0)
		var ue *UpstreamError
		assert.ErrorAs(t, err, &ue)
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
		assert.Empty(t, *slept)
	})

	t.Run("cancelled context stops backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, WithSleeper(func(time.Duration) { cancel() }))
		_, err := c.SearchWithRatings(ctx, "A", 3.0, 5, 0)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestSearchWithRatings_Filtering(t *testing.T) {
	catalog := catalogJSON(
		item{title: "good", date: "2024年05月01日", avg: "4.5", reviews: 40},
		item{title: "few reviews", date: "2024年05月01日", avg: "4.8", reviews: 2},
		item{title: "low", date: "2024年05月01日", avg: "2.0", reviews: 100},
		item{title: "unrated", date: "2024年05月01日", avg: "0", reviews: 0},
		item{title: "solid", date: "2024年05月01日", avg: "3.5", reviews: 300},
		item{title: "old", date: "2019年05月01日", avg: "4.9", reviews: 900},
	)

	var from string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		from = r.URL.Query().Get("salesDateFrom")
		fmt.Fprint(w, catalog)
	})

	t.Run("general requires rating and review count", func(t *testing.T) {
		items, err := c.SearchWithRatings(context.Background(), "x", 3.0, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, "", from)
		titles := make([]string, len(items))
		for i, it := range items {
			titles[i] = it.Title
		}
		// 4.9*log10(901) > 3.5*log10(301) > 4.5*log10(41)
		assert.Equal(t, []string{"old", "solid", "good"}, titles)
	})

	t.Run("recent relaxes the bar and restricts by year", func(t *testing.T) {
		items, err := c.SearchWithRatings(context.Background(), "x", 3.0, 0, 2024)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", from)
		titles := map[string]bool{}
		for _, it := range items {
			titles[it.Title] = true
			assert.Greater(t, it.QualityScore, 0.0)
		}
		assert.Equal(t, map[string]bool{"good": true, "few reviews": true, "unrated": true, "solid": true}, titles)
	})
}

func TestSearchWithRatings_CapsAtTen(t *testing.T) {
	var items []item
	for i := 0; i < 15; i++ {
		items = append(items, item{title: fmt.Sprintf("t%d", i), date: "2024年01月01日", avg: "4.0", reviews: 10 + i})
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, catalogJSON(items...))
	})
	got, err := c.SearchWithRatings(context.Background(), "t", 3.0, 5, 0)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "t14", got[0].Title)
}

func TestQualityScore(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	n := func(v int) *int { return &v }

	assert.InDelta(t, 3.0*0.30103, QualityScore(nil, nil), 1e-4)

	// monotone in average for a fixed count
	assert.Less(t, QualityScore(f(3.0), n(10)), QualityScore(f(3.5), n(10)))
	assert.Less(t, QualityScore(f(4.0), n(10)), QualityScore(f(4.5), n(10)))
	// monotone in count for a fixed average
	assert.Less(t, QualityScore(f(4.0), n(10)), QualityScore(f(4.0), n(11)))
	assert.Less(t, QualityScore(f(4.0), n(1)), QualityScore(f(4.0), n(1000)))
}

func TestCircuitBreakerOpensOnRepeatedUpstreamFailures(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	for i := 0; i < breakerFailures; i++ {
		_, err := c.SearchByTitle(context.Background(), "x")
		var ue *UpstreamError
		require.ErrorAs(t, err, &ue)
	}
	_, err := c.SearchByTitle(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, breakerFailures, atomic.LoadInt32(&calls))
}

func TestRateLimitsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	for i := 0; i < breakerFailures+2; i++ {
		_, err := c.SearchByTitle(context.Background(), "x")
		require.ErrorIs(t, err, ErrRateLimited)
	}
}
