package optimization

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/pkg/qp"
)

// Frontier sweep constants
const (
	DefaultFrontierPoints = 100

	// maxBoundFactor extends the sweep past the tangency portfolio's
	// return to show the frontier an investor with a different risk
	// tolerance could reach.
	maxBoundFactor = 1.2

	// maxConcurrentSolves bounds the parallel target-return solves.
	maxConcurrentSolves = 8
)

// FrontierResult holds the sampled efficient frontier together with the
// portfolios that anchored the sweep bounds.
type FrontierResult struct {
	Points         []domain.FrontierPoint `json:"points"`
	MaxSharpePoint domain.FrontierPoint   `json:"max_sharpe_point"`

	MinVolatility *Allocation `json:"min_volatility"`
	MaxSharpe     *Allocation `json:"max_sharpe"`
}

// Frontier traces the efficient frontier by sweeping target returns from
// the minimum-volatility portfolio's return to 1.2× the max-Sharpe
// portfolio's return across numPoints equally spaced targets. Targets
// outside the attainable range are silently skipped; any other solver
// failure aborts the sweep. Points come back ordered by target, not by
// completion, regardless of how the parallel solves interleave.
//
// progress may be nil; when set it is called after each completed target
// with the running count.
func (e *Engine) Frontier(ctx context.Context, s *Session, numPoints int, progress func(done, total int)) (*FrontierResult, error) {
	if numPoints <= 0 {
		numPoints = DefaultFrontierPoints
	}
	if numPoints < 2 {
		return nil, &InvalidParameterError{
			Param:  "num_points",
			Value:  float64(numPoints),
			Reason: "need at least 2 frontier points",
		}
	}

	minVol, err := e.MinVolatility(s)
	if err != nil {
		return nil, fmt.Errorf("frontier lower bound: %w", err)
	}
	maxSharpe, err := e.MaxSharpe(s)
	if err != nil {
		// Includes ErrNoAssetBeatsRiskFree: without a tangency portfolio
		// the sweep has no upper bound.
		return nil, fmt.Errorf("frontier upper bound: %w", err)
	}

	minRet := minVol.Performance.Return
	maxRet := maxSharpe.Performance.Return * maxBoundFactor
	step := (maxRet - minRet) / float64(numPoints-1)

	type slot struct {
		ok    bool
		point domain.FrontierPoint
	}
	slots := make([]slot, numPoints)

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxConcurrentSolves)

	done := 0
	for i := 0; i < numPoints; i++ {
		i := i
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			target := minRet + float64(i)*step
			alloc, err := e.TargetReturn(s, target)
			if err != nil {
				if errors.Is(err, qp.ErrInfeasible) {
					return nil
				}
				return err
			}
			slots[i] = slot{ok: true, point: domain.FrontierPoint{
				Return:     alloc.Performance.Return,
				Volatility: alloc.Performance.Volatility,
			}}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("frontier sweep: %w", err)
	}

	points := make([]domain.FrontierPoint, 0, numPoints)
	for _, sl := range slots {
		if sl.ok {
			points = append(points, sl.point)
		}
		done++
		if progress != nil {
			progress(done, numPoints)
		}
	}

	return &FrontierResult{
		Points: points,
		MaxSharpePoint: domain.FrontierPoint{
			Return:     maxSharpe.Performance.Return,
			Volatility: maxSharpe.Performance.Volatility,
		},
		MinVolatility: minVol,
		MaxSharpe:     maxSharpe,
	}, nil
}
