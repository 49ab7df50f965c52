// Package sweeper runs the periodic maintenance jobs: releasing expired slug
// reservations and removing bundles no active deployment points at.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/toolsmith-backend/internal/metrics"
)

const (
	jobReservations = "release_reservations"
	jobOrphans      = "remove_orphan_bundles"

	// Bundles younger than this are left alone so a publish that has staged
	// but not yet committed is never swept.
	defaultOrphanAge = 15 * time.Minute
	jobTimeout       = 2 * time.Minute
)

type ReservationReleaser interface {
	ReleaseExpiredReservations(ctx context.Context, now time.Time) (int64, error)
}

type OrphanRemover interface {
	RemoveOrphans(ctx context.Context, minAge time.Duration) (int64, error)
}

type Scheduler struct {
	reservations ReservationReleaser
	orphans      OrphanRemover
	logger       *zap.Logger
	orphanAge    time.Duration
	now          func() time.Time
	cron         *cron.Cron
}

func NewScheduler(reservations ReservationReleaser, orphans OrphanRemover, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reservations: reservations,
		orphans:      orphans,
		logger:       logger,
		orphanAge:    defaultOrphanAge,
		now:          time.Now,
	}
}

// Start registers both jobs on a seconds-resolution cron spec and starts
// the scheduler.
func (s *Scheduler) Start(spec string) error {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule sweep %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("sweep scheduler started", zap.String("schedule", spec))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce runs every job once. A failing job is logged and does not stop
// the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.run(ctx, jobReservations, func(ctx context.Context) (int64, error) {
		return s.reservations.ReleaseExpiredReservations(ctx, s.now())
	})
	s.run(ctx, jobOrphans, func(ctx context.Context) (int64, error) {
		return s.orphans.RemoveOrphans(ctx, s.orphanAge)
	})
}

func (s *Scheduler) run(ctx context.Context, job string, fn func(context.Context) (int64, error)) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	start := time.Now()
	n, err := fn(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.String("job", job), zap.Error(err))
		return
	}
	metrics.RecordSweep(job, n)
	if n > 0 {
		s.logger.Info("sweep finished", zap.String("job", job), zap.Int64("removed", n), zap.Duration("took", time.Since(start)))
	}
}
