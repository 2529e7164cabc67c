// Package pipeline runs the scheduled maintenance jobs: moving expired
// snapshots and order sets to cold storage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// RetentionJob archives rows older than the retention window.
type RetentionJob struct {
	archiver  domain.Archiver
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewRetentionJob creates a RetentionJob keeping retentionDays of history in
// the database.
func NewRetentionJob(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *RetentionJob {
	return &RetentionJob{
		archiver:  archiver,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "retention")),
	}
}

// RunResult counts the rows one run archived.
type RunResult struct {
	Cutoff    time.Time
	Snapshots int64
	OrderSets int64
}

// Run archives snapshots then order sets older than the cutoff. A snapshot
// failure stops the run before order sets are touched.
func (j *RetentionJob) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{Cutoff: j.now().UTC().Add(-j.retention)}
	j.logger.InfoContext(ctx, "pipeline: archive run started", slog.Time("cutoff", res.Cutoff))

	var err error
	if res.Snapshots, err = j.archiver.ArchiveSnapshots(ctx, res.Cutoff); err != nil {
		return res, fmt.Errorf("pipeline: archive snapshots: %w", err)
	}
	if res.OrderSets, err = j.archiver.ArchiveOrderSets(ctx, res.Cutoff); err != nil {
		return res, fmt.Errorf("pipeline: archive order sets: %w", err)
	}

	j.logger.InfoContext(ctx, "pipeline: archive run complete",
		slog.Int64("snapshots", res.Snapshots),
		slog.Int64("order_sets", res.OrderSets),
	)
	return res, nil
}

// RunSchedule runs the job at every time sched matches until ctx is
// cancelled. Failed runs are logged and the schedule continues.
func (j *RetentionJob) RunSchedule(ctx context.Context, sched Schedule) error {
	for {
		next := sched.Next(j.now())
		if next.IsZero() {
			return fmt.Errorf("pipeline: cron %q never fires", sched)
		}
		j.logger.InfoContext(ctx, "pipeline: next archive run", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.ErrorContext(ctx, "pipeline: archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
