// Package rollup advances the per-client rolling window snapshots day by day.
package rollup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/lastseen/internal/domain"
	"example.com/lastseen/internal/window"
)

// Store captures the persistence operations the runner needs.
type Store interface {
	LoadSnapshot(ctx context.Context, tenantID string, date time.Time) ([]domain.ClientRecord, error)
	ListObservations(ctx context.Context, tenantID string, date time.Time) ([]domain.DailyObservation, error)
	ReplaceSnapshot(ctx context.Context, tenantID string, date time.Time, rollupID string, result domain.AdvanceResult) error
	LatestSnapshotDate(ctx context.Context, tenantID string) (time.Time, bool, error)
	ActiveTenants(ctx context.Context, date time.Time) ([]string, error)
}

// Option configures optional behaviour for the Runner.
type Option func(*Runner)

// WithLogger overrides the logger used to report progress.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithWindow overrides the rolling window, used by tests to shrink the width.
func WithWindow(w window.Window) Option {
	return func(r *Runner) {
		r.window = w
	}
}

// Runner materializes tenant-day snapshots. Days advance strictly in order;
// clients within a day are independent of each other.
type Runner struct {
	store  Store
	window window.Window
	logger *log.Logger
}

// NewRunner constructs a Runner with the production 28-day window.
func NewRunner(store Store, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		window: window.Default(),
		logger: log.New(log.Writer(), "[rollup] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunDay advances a single tenant by one day and persists the result.
func (r *Runner) RunDay(ctx context.Context, tenantID string, date time.Time) (domain.AdvanceResult, error) {
	date = domain.Day(date)
	start := time.Now()

	previous, err := r.store.LoadSnapshot(ctx, tenantID, date.AddDate(0, 0, -1))
	if err != nil {
		return domain.AdvanceResult{}, fmt.Errorf("load previous snapshot: %w", err)
	}

	observations, err := r.store.ListObservations(ctx, tenantID, date)
	if err != nil {
		return domain.AdvanceResult{}, fmt.Errorf("list observations: %w", err)
	}

	result, err := domain.AdvanceDay(r.window, previous, observations, date)
	if err != nil {
		return domain.AdvanceResult{}, err
	}

	rollupID := uuid.NewString()
	if err := r.store.ReplaceSnapshot(ctx, tenantID, date, rollupID, result); err != nil {
		return domain.AdvanceResult{}, fmt.Errorf("replace snapshot: %w", err)
	}

	recordRun(tenantID, result, time.Since(start))
	r.logger.Printf("tenant=%s day=%s tracked=%d new=%d aged_out=%d",
		tenantID, date.Format("2006-01-02"), len(result.Records), result.NewClients, len(result.AgedOut))
	return result, nil
}

// CatchUp advances a tenant from its latest materialized snapshot up to and
// including the target date, one day at a time. A tenant with no snapshot
// starts at the target date.
func (r *Runner) CatchUp(ctx context.Context, tenantID string, target time.Time) (int, error) {
	target = domain.Day(target)

	latest, ok, err := r.store.LatestSnapshotDate(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	next := target
	if ok {
		next = domain.NextDay(latest)
	}

	days := 0
	for !next.After(target) {
		if err := ctx.Err(); err != nil {
			return days, err
		}
		if _, err := r.RunDay(ctx, tenantID, next); err != nil {
			return days, fmt.Errorf("day %s: %w", next.Format("2006-01-02"), err)
		}
		days++
		next = domain.NextDay(next)
	}
	return days, nil
}

// RunAllTenants catches up every tenant with observations on the target day.
func (r *Runner) RunAllTenants(ctx context.Context, target time.Time) error {
	tenants, err := r.store.ActiveTenants(ctx, target)
	if err != nil {
		return err
	}

	for _, tenantID := range tenants {
		if _, err := r.CatchUp(ctx, tenantID, target); err != nil {
			r.logger.Printf("catch-up failed (tenant=%s): %v", tenantID, err)
			recordFailure(tenantID)
		}
	}
	return nil
}
