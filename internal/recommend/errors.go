package recommend

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotConfigured = errors.New("recommend: completion api key not configured")
	ErrRateLimited   = errors.New("recommend: completion api rate limited")
	ErrNoContent     = errors.New("recommend: completion returned no content")
	ErrNoJSONFound   = errors.New("recommend: no json array in completion")
	ErrNoFavorites   = errors.New("recommend: no favorites to base recommendations on")
	ErrNoCandidates  = errors.New("recommend: no candidates survived")
)

// StatusError is a non-2xx answer from the completion API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion: http %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == 429
}

// ParseError means the extracted array was still not valid JSON.
type ParseError struct {
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("recommend: parse candidates: %v (snippet: %s)", e.Err, snippet(e.Content))
}

func (e *ParseError) Unwrap() error { return e.Err }

func snippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if r := []rune(clean); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return clean
}
