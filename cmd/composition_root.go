package cmd

import (
	"log/slog"

	"gorm.io/gorm"

	httpadapter "campusdelivery/internal/adapters/in/http"
	"campusdelivery/internal/adapters/out/geocode"
	"campusdelivery/internal/adapters/out/inventory"
	"campusdelivery/internal/adapters/out/notification"
	"campusdelivery/internal/adapters/out/postgres"
	"campusdelivery/internal/adapters/out/postgres/sessionrepo"
	"campusdelivery/internal/core/application/dispatchsvc"
	"campusdelivery/internal/core/application/orchestrator"
	"campusdelivery/internal/core/application/trackingsvc"
	"campusdelivery/internal/core/application/usecases/queries"
	"campusdelivery/internal/core/domain/workflow"
	"campusdelivery/internal/core/ports"
	"campusdelivery/internal/jobs"
)

// CompositionRoot wires the application services together. The tracking
// service doubles as the orchestrator's ETA provider, and the orchestrator
// is the dispatcher's partner assigner.
type CompositionRoot struct {
	logger     *slog.Logger
	gormDB     *gorm.DB
	uowFactory ports.UnitOfWorkFactory

	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *dispatchsvc.Service
	Tracker      *trackingsvc.Service
	Geocoder     ports.Geocoder
}

// NewCompositionRoot constructs every service over the shared database.
func NewCompositionRoot(config Config, gormDB *gorm.DB, logger *slog.Logger) (*CompositionRoot, error) {
	uowFactory := postgres.NewGormUnitOfWorkFactory(gormDB)
	notifier := notification.NewSlogPublisher(logger)
	stock := inventory.NewInMemoryInventory(logger)
	sessionArchive := sessionrepo.NewGormSessionArchive(gormDB)

	tracker := trackingsvc.NewService(uowFactory, notifier, sessionArchive, nil, logger)
	orch := orchestrator.NewOrchestrator(
		uowFactory,
		notifier,
		stock,
		tracker,
		workflow.DefaultRules(),
		workflow.DefaultTimeouts(),
		logger,
	)
	dispatcher := dispatchsvc.NewService(uowFactory, orch, notifier, logger)

	var geocoder ports.Geocoder
	if config.GeocoderURL != "" {
		client, err := geocode.NewClient(config.GeocoderURL)
		if err != nil {
			return nil, err
		}
		geocoder = client
	}

	return &CompositionRoot{
		logger:       logger,
		gormDB:       gormDB,
		uowFactory:   uowFactory,
		Orchestrator: orch,
		Dispatcher:   dispatcher,
		Tracker:      tracker,
		Geocoder:     geocoder,
	}, nil
}

// CreateHTTPServer builds the inbound HTTP adapter.
func (c *CompositionRoot) CreateHTTPServer() *httpadapter.Server {
	return httpadapter.NewServer(
		c.Orchestrator,
		c.Dispatcher,
		c.Tracker,
		c.uowFactory,
		c.Geocoder,
		queries.NewGetActiveOrdersQueryHandler(c.gormDB),
		queries.NewGetOnlinePartnersQueryHandler(c.gormDB),
	)
}

// CreateJobManager builds the scheduled job manager.
func (c *CompositionRoot) CreateJobManager() *jobs.JobManager {
	return jobs.NewJobManager(c.Dispatcher, c.Tracker, c.logger)
}

// Shutdown stops the timer-driven services.
func (c *CompositionRoot) Shutdown() {
	c.Dispatcher.Stop()
	c.Orchestrator.Stop()
}
