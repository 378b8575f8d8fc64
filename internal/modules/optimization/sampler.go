package optimization

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/frontier/internal/domain"
)

// Random sampling constants
const (
	DefaultCloudSamples = 10000

	// cloudChunkSize fixes how many draws each worker owns. Chunk i uses
	// its own source seeded seed+i, so results are reproducible for a
	// given seed no matter how many workers run.
	cloudChunkSize = 512
)

// RandomPortfolios samples numSamples weight vectors uniformly-ish on the
// simplex (normalized exponential draws) and evaluates each against the
// session's estimates. Seed 0 picks a time-based seed; any other value
// makes the cloud reproducible.
//
// progress may be nil; when set it is called after each completed chunk.
func (e *Engine) RandomPortfolios(ctx context.Context, s *Session, numSamples int, seed int64, progress func(done, total int)) (*domain.RandomPortfolioCloud, error) {
	if numSamples <= 0 {
		numSamples = DefaultCloudSamples
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	n := s.NumAssets()
	cloud := &domain.RandomPortfolioCloud{
		Returns:      make([]float64, numSamples),
		Volatilities: make([]float64, numSamples),
		Sharpes:      make([]float64, numSamples),
	}

	numChunks := (numSamples + cloudChunkSize - 1) / cloudChunkSize

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxConcurrentSolves)

	done := make(chan int, numChunks)
	for chunk := 0; chunk < numChunks; chunk++ {
		chunk := chunk
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seed + int64(chunk)))
			start := chunk * cloudChunkSize
			end := start + cloudChunkSize
			if end > numSamples {
				end = numSamples
			}
			weights := make([]float64, n)
			for i := start; i < end; i++ {
				randomSimplexPoint(rng, weights)
				perf := s.Performance(weights)
				cloud.Returns[i] = perf.Return
				cloud.Volatilities[i] = perf.Volatility
				cloud.Sharpes[i] = perf.Sharpe
			}
			done <- end - start
			return nil
		})
	}

	finished := 0
	completed := 0
	for finished < numChunks {
		select {
		case cnt := <-done:
			finished++
			completed += cnt
			if progress != nil {
				progress(completed, numSamples)
			}
		case <-ctx.Done():
			finished = numChunks
		}
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	return cloud, nil
}

// randomSimplexPoint fills w with a uniform draw from the unit simplex.
// Exponential draws normalized by their sum give the flat Dirichlet.
func randomSimplexPoint(rng *rand.Rand, w []float64) {
	sum := 0.0
	for i := range w {
		w[i] = rng.ExpFloat64()
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
}
