// Package scheduler refreshes the price cache on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-desk/internal/market"
	"invest-desk/observability"

	"github.com/robfig/cron/v3"
)

// Refresher is the cache refresh run on each tick
type Refresher interface {
	RefreshCache(ctx context.Context) (market.RefreshReport, error)
}

// Scheduler runs cache refreshes on a cron schedule
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	ctx       context.Context
	timeout   time.Duration
}

// New creates a Scheduler. Cron expressions use the six-field form with seconds.
// Each run is bounded by timeout and stops early when ctx is cancelled.
func New(ctx context.Context, refresher Refresher, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		refresher: refresher,
		ctx:       ctx,
		timeout:   timeout,
	}
}

// Register schedules the refresh job
func (s *Scheduler) Register(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.RunNow); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	observability.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	observability.Info("scheduler stopped")
}

// Next returns the next scheduled run, or the zero time when nothing is scheduled
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow refreshes the cache immediately
func (s *Scheduler) RunNow() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := observability.WithComponent("scheduler")
	start := time.Now()
	report, err := s.refresher.RefreshCache(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Warn("cache refresh skipped", "error", err)
		return
	}
	logger.Info("cache refresh complete",
		"symbols", report.Symbols,
		"refreshed", report.Refreshed,
		"failed", len(report.Failed),
		"duration", time.Since(start))
}
