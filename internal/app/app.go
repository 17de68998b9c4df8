package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/handlers"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/services/extraction"
	"github.com/ternarybob/relatio/internal/services/llm"
	"github.com/ternarybob/relatio/internal/services/pdf"
	"github.com/ternarybob/relatio/internal/services/render"
	"github.com/ternarybob/relatio/internal/services/reports"
	"github.com/ternarybob/relatio/internal/services/retention"
	"github.com/ternarybob/relatio/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Collaborators of the report pipeline
	ModelService  interfaces.ModelService
	PDFService    *pdf.Service
	TextExtractor *extraction.Service
	Renderer      *render.Renderer

	// Report assembly
	ReportService *reports.Service

	// Retention sweeps (nil when disabled)
	RetentionScheduler *retention.Scheduler

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	ReportHandler *handlers.ReportHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDirectories(); err != nil {
		return nil, fmt.Errorf("failed to initialize directories: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Bool("retention_enabled", cfg.Retention.Enabled).
		Bool("template", cfg.Report.TemplatePath != "").
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDirectories() error {
	for _, dir := range []string{a.Config.Storage.Filesystem.Uploads, a.Config.Storage.Filesystem.Reports} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = storageManager

	a.Logger.Debug().Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() error {
	// Model service; without API keys every call fails over to degraded reports
	a.ModelService = llm.NewService(context.Background(), a.Config, a.StorageManager.AuditStorage(), a.Logger)
	if err := a.ModelService.HealthCheck(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("No generative model configured; reports will use placeholders")
	}

	a.PDFService = pdf.NewService(a.Logger)
	a.TextExtractor = extraction.NewService(a.ModelService, pdf.NewExtractor(a.Logger), &a.Config.Extraction, a.Logger)
	a.Renderer = render.NewRenderer(a.Config.Storage.Filesystem.Reports, &a.Config.Report, a.PDFService, a.Logger)

	reportService, err := reports.NewService(
		a.Config,
		a.TextExtractor,
		a.ModelService,
		a.Renderer,
		a.StorageManager.ReportStorage(),
		a.StorageManager.AuditStorage(),
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create report service: %w", err)
	}
	a.ReportService = reportService

	if a.Config.Retention.Enabled {
		a.RetentionScheduler = retention.NewScheduler(a.Config, a.ReportService, a.StorageManager.ReportStorage(), a.Logger)
		if err := a.RetentionScheduler.Start(a.Config.Retention.Schedule); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.ModelService, a.Logger)
	a.ReportHandler = handlers.NewReportHandler(a.ReportService, a.Config, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.RetentionScheduler != nil {
		a.RetentionScheduler.Stop()
	}

	if a.ModelService != nil {
		if err := a.ModelService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close model service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
