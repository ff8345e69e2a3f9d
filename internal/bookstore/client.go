package bookstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"mangashelf/internal/metrics"
	"mangashelf/pkg/logging"
	"mangashelf/pkg/models"
)

const (
	DefaultBaseURL = "https://app.rakuten.co.jp/services/api/BooksBook/Search/20170404"

	// comics
	comicGenreID = "001001"

	defaultHits           = 30
	defaultHTTPTimeout    = 12 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = time.Second
	breakerFailures       = 5
	breakerOpenTimeout    = 30 * time.Second
)

type Config struct {
	AppID   string
	BaseURL string
}

// Client talks to the bookstore catalog search API. SearchByTitle never
// retries; SearchWithRatings retries rate limits only.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]models.BookItem]

	retryAttempts  int
	retryBaseDelay time.Duration
	sleeper        func(time.Duration)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the rate-limit backoff (3 attempts, 1s doubling).
func WithRetryBackoff(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryBaseDelay = baseDelay
	}
}

// WithSleeper replaces how backoff waits are performed; tests use it to skip real sleeps.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			AppID:   strings.TrimSpace(cfg.AppID),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
		},
		httpClient:     &http.Client{Timeout: defaultHTTPTimeout},
		retryAttempts:  defaultRetryAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = DefaultBaseURL
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]models.BookItem](gobreaker.Settings{
		Name:    "bookstore",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		// throttling and caller cancellation say nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrRateLimited) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
		},
	})
	return c
}

// Configured reports whether an application id is present.
func (c *Client) Configured() bool {
	return c.cfg.AppID != ""
}

type searchResponse struct {
	Items            []SearchEntry `json:"Items"`
	Error            string        `json:"error,omitempty"`
	ErrorDescription string        `json:"error_description,omitempty"`
}

// SearchEntry wraps one item the way the catalog nests it.
type SearchEntry struct {
	Item CatalogItem `json:"Item"`
}

// CatalogItem is the subset of catalog item fields we read.
type CatalogItem struct {
	Title          string     `json:"title"`
	Author         string     `json:"author"`
	PublisherName  string     `json:"publisherName"`
	SalesDate      string     `json:"salesDate"`
	ItemPrice      int        `json:"itemPrice"`
	ItemURL        string     `json:"itemUrl"`
	ISBN           string     `json:"isbn"`
	ReviewCount    int        `json:"reviewCount"`
	ReviewAverage  flexNumber `json:"reviewAverage"`
	LargeImageURL  string     `json:"largeImageUrl,omitempty"`
	MediumImageURL string     `json:"mediumImageUrl,omitempty"`
	SmallImageURL  string     `json:"smallImageUrl,omitempty"`
}

// flexNumber accepts both 4.5 and "4.5"; the catalog sends either.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("review average %q: %w", s, err)
	}
	*f = flexNumber(v)
	return nil
}

func (it CatalogItem) toModel() models.BookItem {
	b := models.BookItem{
		Title:     it.Title,
		Author:    it.Author,
		Publisher: it.PublisherName,
		SalesDate: it.SalesDate,
		Price:     it.ItemPrice,
		ItemURL:   it.ItemURL,
		ISBN:      it.ISBN,
		ImageURL:  firstNonEmpty(it.LargeImageURL, it.MediumImageURL, it.SmallImageURL),
	}
	// zero means "no reviews yet" in the catalog
	if avg := float64(it.ReviewAverage); avg > 0 {
		b.ReviewAverage = &avg
	}
	if it.ReviewCount > 0 {
		n := it.ReviewCount
		b.ReviewCount = &n
	}
	return b
}

// SearchByTitle runs one catalog query for comics matching title, newest first.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]models.BookItem, error) {
	return c.search(ctx, title, 0)
}

func (c *Client) search(ctx context.Context, title string, fromYear int) ([]models.BookItem, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	items, err := c.breaker.Execute(func() ([]models.BookItem, error) {
		return c.searchOnce(ctx, title, fromYear)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.BookstoreRequests.WithLabelValues("circuit_open").Inc()
		return nil, ErrUnavailable
	}
	return items, err
}

func (c *Client) searchOnce(ctx context.Context, title string, fromYear int) ([]models.BookItem, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("bookstore: build url: %w", err)
	}
	q := u.Query()
	q.Set("applicationId", c.cfg.AppID)
	q.Set("format", "json")
	q.Set("title", title)
	q.Set("booksGenreId", comicGenreID)
	q.Set("sort", "-releaseDate")
	q.Set("hits", strconv.Itoa(defaultHits))
	if fromYear > 0 {
		q.Set("salesDateFrom", fmt.Sprintf("%04d-01-01", fromYear))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("bookstore: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BookstoreRequests.WithLabelValues("transport_error").Inc()
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BookstoreRequests.WithLabelValues("transport_error").Inc()
		return nil, &TransportError{Op: "read body", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.BookstoreRequests.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.BookstoreRequests.WithLabelValues("upstream_error").Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		metrics.BookstoreRequests.WithLabelValues("transport_error").Inc()
		return nil, &TransportError{Op: "decode", Err: err}
	}
	metrics.BookstoreRequests.WithLabelValues("ok").Inc()

	out := make([]models.BookItem, 0, len(sr.Items))
	for _, wrapped := range sr.Items {
		if strings.TrimSpace(wrapped.Item.Title) == "" {
			continue
		}
		out = append(out, wrapped.Item.toModel())
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
