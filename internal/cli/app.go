package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/pkg/logger"
)

// app wires the services every command needs. Commands run against the
// same local database whether they serve HTTP or print to the terminal.
type app struct {
	cfg          *config.Config
	log          zerolog.Logger
	db           *database.DB
	bus          *events.Bus
	marketData   *marketdata.Service
	optimization *optimization.Service
	charts       *charts.Service
}

// newApp loads configuration and builds the service graph. quiet drops
// the log level to warn so terminal commands stay readable.
func newApp(quiet bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if quiet {
		level = "warn"
	}
	log := logger.New(logger.Config{
		Level:  level,
		Pretty: cfg.LogPretty,
	})

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	bus := events.NewBus(log)

	yahooClient := yahoo.NewClient(log)
	priceRepo := marketdata.NewRepository(db.Conn(), log)
	marketData := marketdata.NewService(yahooClient, priceRepo, log)

	runRepo := optimization.NewRunRepository(db.Conn(), log)
	optService := optimization.NewService(optimization.ServiceConfig{
		MarketData:   marketData,
		Runs:         runRepo,
		Bus:          bus,
		RiskFreeRate: cfg.RiskFreeRate,
		RiskAversion: cfg.RiskAversion,
		Log:          log,
	})

	chartService := charts.NewService(marketData, log)

	return &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		bus:          bus,
		marketData:   marketData,
		optimization: optService,
		charts:       chartService,
	}, nil
}

// close releases the app's resources
func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error().Err(err).Msg("Failed to close database")
	}
}
