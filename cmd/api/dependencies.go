package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/libroazul/libroazul/internal/domain/categorization"
	"github.com/libroazul/libroazul/internal/domain/statement/handler"
	"github.com/libroazul/libroazul/internal/domain/statement/parser"
	"github.com/libroazul/libroazul/internal/domain/statement/repository"
	"github.com/libroazul/libroazul/internal/domain/statement/service"
	"github.com/libroazul/libroazul/pkg/auth"
	"github.com/libroazul/libroazul/pkg/config"
	"github.com/libroazul/libroazul/pkg/db"
	"github.com/libroazul/libroazul/pkg/metrics"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	StatementRepo      *repository.Repository
	CategorizationRepo *categorization.Repository

	ImportService *service.ImportService

	AuthMiddleware *auth.Middleware
	ImportHandler  *handler.Handler
}

// InitDependencies wires the whole application
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.StatementRepo = repository.New(deps.DB.Pool)
	deps.CategorizationRepo = categorization.NewRepository(deps.DB.Pool)

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.AuthMiddleware = auth.NewMiddleware([]byte(cfg.Auth.JWTSecret))
	deps.ImportHandler = handler.New(deps.ImportService, logger, handler.Config{
		FetchTimeout: time.Duration(cfg.Import.FetchTimeoutSec) * time.Second,
	})

	logger.Info("all dependencies initialized")
	return deps, nil
}

func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations applied")
	return nil
}

func (d *Dependencies) initServices() error {
	loc, err := time.LoadLocation(d.Config.Import.Timezone)
	if err != nil {
		return fmt.Errorf("invalid import timezone %q: %w", d.Config.Import.Timezone, err)
	}

	d.ImportService = service.NewImportService(
		d.StatementRepo,
		d.CategorizationRepo,
		parser.DefaultDetector(),
		d.Metrics,
		d.Logger,
		service.Config{
			Location:       loc,
			MaxRows:        d.Config.Import.MaxRows,
			HeaderScanRows: d.Config.Import.HeaderScanRows,
			SampleSize:     d.Config.Import.SampleSize,
			MaxErrors:      d.Config.Import.MaxErrors,
		},
	)

	return nil
}
