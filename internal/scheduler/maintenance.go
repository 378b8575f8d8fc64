package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// runRetention is how long saved runs are kept before pruning
const runRetention = 90 * 24 * time.Hour

// MaintenanceJob keeps the database healthy: prunes old saved runs and
// verifies SQLite integrity
type MaintenanceJob struct {
	log  zerolog.Logger
	db   *database.DB
	runs *optimization.RunRepository
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db *database.DB, runs *optimization.RunRepository, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		log:  log.With().Str("job", "maintenance").Logger(),
		db:   db,
		runs: runs,
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance tasks
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	pruned, err := j.runs.DeleteOlderThan(time.Now().Add(-runRetention))
	if err != nil {
		j.log.Error().Err(err).Msg("Run pruning failed")
		return fmt.Errorf("run pruning failed: %w", err)
	}

	if err := j.checkIntegrity(); err != nil {
		j.log.Error().Err(err).Msg("Integrity check failed")
		return fmt.Errorf("integrity check failed: %w", err)
	}

	j.log.Info().
		Int64("runs_pruned", pruned).
		Dur("duration", time.Since(startTime)).
		Msg("Maintenance completed")

	return nil
}

// checkIntegrity runs SQLite's quick integrity check
func (j *MaintenanceJob) checkIntegrity() error {
	var result string
	if err := j.db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("quick_check reported: %s", result)
	}
	return nil
}
