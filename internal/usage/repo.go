package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func daily(ctx context.Context, q queryer, identity, service, day string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT daily_count FROM api_usage
		WHERE identity = ? AND service_type = ? AND day = ?
	`, identity, service, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daily usage: %w", err)
	}
	return n, nil
}

// monthly sums daily rows in [from, to).
func monthly(ctx context.Context, q queryer, identity, service, from, to string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(daily_count), 0) FROM api_usage
		WHERE identity = ? AND service_type = ? AND day >= ? AND day < ?
	`, identity, service, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("read monthly usage: %w", err)
	}
	return n, nil
}

// Counts returns today's count and the month-to-date total.
func (r *Repo) Counts(ctx context.Context, identity, service string, p Period) (int, int, error) {
	d, err := daily(ctx, r.DB, identity, service, p.Day)
	if err != nil {
		return 0, 0, err
	}
	m, err := monthly(ctx, r.DB, identity, service, p.MonthStart, p.NextMonth)
	if err != nil {
		return 0, 0, err
	}
	return d, m, nil
}

// CheckAndIncrement reads both counters and, when allow says so, bumps
// today's row, all in one transaction. It returns the counts after the call.
func (r *Repo) CheckAndIncrement(ctx context.Context, identity, service string, p Period, allow func(daily, monthly int) error) (int, int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := daily(ctx, tx, identity, service, p.Day)
	if err != nil {
		return 0, 0, err
	}
	m, err := monthly(ctx, tx, identity, service, p.MonthStart, p.NextMonth)
	if err != nil {
		return 0, 0, err
	}
	if err := allow(d, m); err != nil {
		return d, m, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO api_usage (identity, service_type, day, daily_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(identity, service_type, day) DO UPDATE SET
			daily_count = daily_count + 1
	`, identity, service, p.Day); err != nil {
		return 0, 0, fmt.Errorf("increment usage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit tx: %w", err)
	}
	return d + 1, m + 1, nil
}
