package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DispatchSweeper expires overdue dispatch offers and collects finished
// ones. dispatchsvc.Service implements it.
type DispatchSweeper interface {
	SweepExpired(ctx context.Context) int
}

// DispatchCleanupJob sweeps the dispatch table once a minute so expired
// offers get their expiry notification even if their timer was lost.
type DispatchCleanupJob struct {
	sweeper DispatchSweeper
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewDispatchCleanupJob creates the cleanup job over the dispatch service.
func NewDispatchCleanupJob(sweeper DispatchSweeper, logger *slog.Logger) *DispatchCleanupJob {
	return &DispatchCleanupJob{
		sweeper: sweeper,
		cron:    cron.New(),
		logger:  logger.With("component", "dispatch_cleanup_job"),
	}
}

// Start begins the cleanup job, running every minute.
func (j *DispatchCleanupJob) Start() error {
	_, err := j.cron.AddFunc("* * * * *", func() {
		ctx := context.Background()
		if swept := j.sweeper.SweepExpired(ctx); swept > 0 {
			j.logger.InfoContext(ctx, "expired dispatches swept", "count", swept)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "dispatch cleanup job started (running every minute)")
	return nil
}

// Stop stops the cleanup job.
func (j *DispatchCleanupJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "dispatch cleanup job stopped")
}
