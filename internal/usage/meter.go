package usage

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"mangashelf/internal/metrics"
	"mangashelf/pkg/models"
)

// Period pins the calendar day and month a call is charged to (UTC).
type Period struct {
	Day        string
	MonthStart string
	NextMonth  string
}

func PeriodAt(t time.Time) Period {
	t = t.UTC()
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Day:        t.Format(time.DateOnly),
		MonthStart: first.Format(time.DateOnly),
		NextMonth:  first.AddDate(0, 1, 0).Format(time.DateOnly),
	}
}

// Result is the outcome of an allowed call.
type Result struct {
	Allowed bool `json:"canUse"`
	Daily   int  `json:"daily"`
	Monthly int  `json:"monthly"`
}

// Meter enforces per-identity quotas stored in the database.
type Meter struct {
	Repo *Repo
	Now  func() time.Time

	mu gosync.Mutex
}

func NewMeter(repo *Repo) *Meter {
	return &Meter{Repo: repo, Now: time.Now}
}

// CheckAndRecord charges one call to identity for service. When a quota is
// already used up it returns a *LimitExceededError and changes nothing.
func (m *Meter) CheckAndRecord(ctx context.Context, identity, service string) (Result, error) {
	quota, ok := Quotas[service]
	if !ok {
		return Result{}, ErrUnknownService
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, mo, err := m.Repo.CheckAndIncrement(ctx, identity, service, PeriodAt(m.Now()), func(daily, monthly int) error {
		switch {
		case daily >= quota.Daily:
			return &LimitExceededError{Service: service, Limit: "daily", Count: daily, Max: quota.Daily}
		case monthly >= quota.Monthly:
			return &LimitExceededError{Service: service, Limit: "monthly", Count: monthly, Max: quota.Monthly}
		}
		return nil
	})
	if err != nil {
		var le *LimitExceededError
		if errors.As(err, &le) {
			metrics.UsageDenied.WithLabelValues(service, le.Limit).Inc()
		}
		return Result{Daily: d, Monthly: mo}, err
	}
	return Result{Allowed: true, Daily: d, Monthly: mo}, nil
}

// Status reports current counters without charging.
func (m *Meter) Status(ctx context.Context, identity, service string) (models.UsageStatus, error) {
	quota, ok := Quotas[service]
	if !ok {
		return models.UsageStatus{}, ErrUnknownService
	}
	d, mo, err := m.Repo.Counts(ctx, identity, service, PeriodAt(m.Now()))
	if err != nil {
		return models.UsageStatus{}, err
	}
	return models.UsageStatus{
		ServiceType:  service,
		Daily:        d,
		Monthly:      mo,
		DailyLimit:   quota.Daily,
		MonthlyLimit: quota.Monthly,
	}, nil
}
