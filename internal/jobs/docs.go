// Package jobs provides scheduled background tasks for the orchestration
// engine, implemented with github.com/robfig/cron/v3.
//
// # Available Jobs
//
// 1. DispatchCleanupJob - runs every minute to expire overdue dispatch
// offers and collect offers past their grace period.
//
// 2. TrackingMaintenanceJob - runs hourly to prune stale location history,
// silent partners, and long-finished tracking sessions.
//
// Jobs are managed through JobManager:
//
//	jobManager := jobs.NewJobManager(dispatcher, tracker, logger)
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("failed to start jobs:", err)
//	}
//	defer jobManager.StopAll()
package jobs
