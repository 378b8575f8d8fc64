package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/marketdata"
)

// PriceRefreshJob re-fetches history for every cached symbol so
// sessions started during the day work from fresh closes
type PriceRefreshJob struct {
	log     zerolog.Logger
	service *marketdata.Service
	timeout time.Duration
	running atomic.Bool
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(service *marketdata.Service, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		log:     log.With().Str("job", "price_refresh").Logger(),
		service: service,
		timeout: 10 * time.Minute,
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run executes the price refresh
func (j *PriceRefreshJob) Run() error {
	// Skip overlapping runs rather than queueing them
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("Price refresh already running, skipping")
		return nil
	}
	defer j.running.Store(false)

	j.log.Info().Msg("Starting price refresh")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.service.RefreshAll(ctx); err != nil {
		j.log.Error().Err(err).Msg("Price refresh failed")
		return err
	}

	j.log.Info().
		Dur("duration", time.Since(startTime)).
		Msg("Price refresh completed")

	return nil
}
