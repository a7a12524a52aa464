package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/jobsearch-api/internal/app"
	"github.com/phrazzld/jobsearch-api/internal/config"
	"github.com/phrazzld/jobsearch-api/internal/service"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	stores *app.Stores

	taskService    service.TaskService
	companyService service.CompanyService
}

// newApplication opens the stores and builds the services.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	stores, err := app.OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	a, err := newApplicationWithStores(cfg, logger, stores)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	return a, nil
}

// newApplicationWithStores builds the services on already opened stores.
func newApplicationWithStores(cfg *config.Config, logger *slog.Logger, stores *app.Stores) (*application, error) {
	taskService, err := service.NewTaskService(stores.Tasks, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	companyService, err := service.NewCompanyService(stores.Companies, stores.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create company service: %w", err)
	}

	logger.Info("application initialized successfully")
	return &application{
		config:         cfg,
		logger:         logger,
		stores:         stores,
		taskService:    taskService,
		companyService: companyService,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if err := app.stores.Close(); err != nil {
		app.logger.Error("error closing database connection", "error", err)
	}
}
