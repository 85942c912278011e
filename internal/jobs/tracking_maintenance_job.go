package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// TrackingPruner drops stale tracking state. trackingsvc.Service
// implements it.
type TrackingPruner interface {
	Prune(ctx context.Context) (prunedPartners int, prunedSessions int)
}

// TrackingMaintenanceJob prunes old location history, silent partners, and
// long-finished sessions once an hour.
type TrackingMaintenanceJob struct {
	pruner TrackingPruner
	cron   *cron.Cron
	logger *slog.Logger
}

// NewTrackingMaintenanceJob creates the maintenance job over the tracking service.
func NewTrackingMaintenanceJob(pruner TrackingPruner, logger *slog.Logger) *TrackingMaintenanceJob {
	return &TrackingMaintenanceJob{
		pruner: pruner,
		cron:   cron.New(),
		logger: logger.With("component", "tracking_maintenance_job"),
	}
}

// Start begins the maintenance job, running at the top of every hour.
func (j *TrackingMaintenanceJob) Start() error {
	_, err := j.cron.AddFunc("0 * * * *", func() {
		ctx := context.Background()
		partners, sessions := j.pruner.Prune(ctx)
		if partners > 0 || sessions > 0 {
			j.logger.InfoContext(ctx, "tracking state pruned",
				"partners", partners, "sessions", sessions)
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "tracking maintenance job started (running hourly)")
	return nil
}

// Stop stops the maintenance job.
func (j *TrackingMaintenanceJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "tracking maintenance job stopped")
}
