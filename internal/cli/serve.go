package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/scheduler"
	"github.com/aristath/frontier/internal/server"
)

// maintenanceSchedule runs weekly, Sunday 03:00
const maintenanceSchedule = "0 0 3 * * SUN"

// newServeCmd creates the serve command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	log := a.log
	log.Info().Msg("Starting frontier")

	// Scheduler and background jobs
	sched := scheduler.New(log)
	refreshJob := scheduler.NewPriceRefreshJob(a.marketData, log)
	maintenanceJob := scheduler.NewMaintenanceJob(a.db, a.optimization.Runs(), log)

	if err := sched.AddJob(a.cfg.RefreshSchedule, refreshJob); err != nil {
		return err
	}
	if err := sched.AddJob(maintenanceSchedule, maintenanceJob); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:          log,
		Cfg:          a.cfg,
		DB:           a.db,
		Bus:          a.bus,
		MarketData:   marketdata.NewHandler(a.marketData, log),
		Optimization: optimization.NewHandler(a.optimization, log),
		Charts:       charts.NewHandler(a.charts, a.optimization, log),
		Scheduler:    sched,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Str("addr", a.cfg.Addr()).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
