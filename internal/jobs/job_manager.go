package jobs

import (
	"fmt"
	"log/slog"
)

// JobManager coordinates all scheduled jobs in the application.
type JobManager struct {
	dispatchCleanupJob     *DispatchCleanupJob
	trackingMaintenanceJob *TrackingMaintenanceJob
}

// NewJobManager creates a job manager wiring every job to its service.
func NewJobManager(sweeper DispatchSweeper, pruner TrackingPruner, logger *slog.Logger) *JobManager {
	return &JobManager{
		dispatchCleanupJob:     NewDispatchCleanupJob(sweeper, logger),
		trackingMaintenanceJob: NewTrackingMaintenanceJob(pruner, logger),
	}
}

// StartAll starts all scheduled jobs. If any job fails to start, the ones
// already running are stopped again.
func (jm *JobManager) StartAll() error {
	if err := jm.dispatchCleanupJob.Start(); err != nil {
		return fmt.Errorf("failed to start dispatch cleanup job: %w", err)
	}

	if err := jm.trackingMaintenanceJob.Start(); err != nil {
		jm.dispatchCleanupJob.Stop()
		return fmt.Errorf("failed to start tracking maintenance job: %w", err)
	}

	return nil
}

// StopAll stops all scheduled jobs gracefully.
func (jm *JobManager) StopAll() {
	jm.trackingMaintenanceJob.Stop()
	jm.dispatchCleanupJob.Stop()
}
