package usage

import (
	"errors"
	"fmt"
)

const (
	ServiceRecommendations = "recommendations"
	ServiceRecentManga     = "recent-manga"
)

type Quota struct {
	Daily   int
	Monthly int
}

// Quotas are fixed per service type.
var Quotas = map[string]Quota{
	ServiceRecommendations: {Daily: 100, Monthly: 3000},
	ServiceRecentManga:     {Daily: 20, Monthly: 600},
}

var (
	ErrLimitExceeded  = errors.New("usage limit exceeded")
	ErrUnknownService = errors.New("unknown service type")
)

// LimitExceededError says which quota refused the call.
type LimitExceededError struct {
	Service string
	Limit   string // "daily" or "monthly"
	Count   int
	Max     int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s %s limit reached (%d/%d)", e.Service, e.Limit, e.Count, e.Max)
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// Message is the caller-facing text for the refusal.
func (e *LimitExceededError) Message() string {
	if e.Limit == "daily" {
		return fmt.Sprintf("1日の利用制限（%d回）に達しました。明日再度お試しください。", e.Max)
	}
	return fmt.Sprintf("月間利用制限（%d回）に達しました。来月までお待ちください。", e.Max)
}
