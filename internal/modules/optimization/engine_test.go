package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/pkg/qp"
)

// twoAssetSession builds a session with an analytically tractable
// covariance: the minimum-variance weights are exactly [0.25, 0.75].
func twoAssetSession() *Session {
	return &Session{
		Symbols:        []string{"AAA", "BBB"},
		Mu:             mat.NewVecDense(2, []float64{0.10, 0.07}),
		Cov:            mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.02}),
		RiskFree:       0.02,
		PeriodsPerYear: 252,
	}
}

func threeAssetSession() *Session {
	return &Session{
		Symbols: []string{"AAA", "BBB", "CCC"},
		Mu:      mat.NewVecDense(3, []float64{0.12, 0.09, 0.05}),
		Cov: mat.NewSymDense(3, []float64{
			0.09, 0.01, 0.0,
			0.01, 0.04, 0.005,
			0.0, 0.005, 0.0225,
		}),
		RiskFree:       0.02,
		PeriodsPerYear: 252,
	}
}

func TestMinVolatility_TwoAsset(t *testing.T) {
	e := NewEngine()
	alloc, err := e.MinVolatility(twoAssetSession())
	require.NoError(t, err)

	// w1 = (s22 - s12) / (s11 + s22 - 2 s12) = 0.01/0.04
	assert.InDelta(t, 0.25, alloc.Weights["AAA"], 1e-4)
	assert.InDelta(t, 0.75, alloc.Weights["BBB"], 1e-4)

	// wᵗSw = 0.0175 at the optimum
	assert.InDelta(t, 0.13229, alloc.Performance.Volatility, 1e-4)
	assert.InDelta(t, 0.25*0.10+0.75*0.07, alloc.Performance.Return, 1e-4)
}

func TestMinVolatility_DominatesOtherPortfolios(t *testing.T) {
	s := threeAssetSession()
	e := NewEngine()
	alloc, err := e.MinVolatility(s)
	require.NoError(t, err)

	for _, w := range [][]float64{
		{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{1. / 3, 1. / 3, 1. / 3},
	} {
		other := s.Performance(w)
		assert.LessOrEqual(t, alloc.Performance.Volatility, other.Volatility+1e-8)
	}
}

func TestMaxSharpe_BeatsGridSearch(t *testing.T) {
	s := twoAssetSession()
	e := NewEngine()
	alloc, err := e.MaxSharpe(s)
	require.NoError(t, err)

	best := 0.0
	for i := 0; i <= 1000; i++ {
		w := float64(i) / 1000
		perf := s.Performance([]float64{w, 1 - w})
		if perf.Sharpe > best {
			best = perf.Sharpe
		}
	}
	assert.InDelta(t, best, alloc.Performance.Sharpe, 1e-3)
	assert.GreaterOrEqual(t, alloc.Performance.Sharpe+1e-9, best-1e-3)
}

func TestMaxSharpe_WeightsSumToOne(t *testing.T) {
	e := NewEngine()
	alloc, err := e.MaxSharpe(threeAssetSession())
	require.NoError(t, err)

	sum := 0.0
	for _, w := range alloc.Weights {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	// Cleaning can drop up to cutoff-sized mass per asset
	assert.InDelta(t, 1.0, sum, 3*(WeightCutoff+5e-6))
}

func TestMaxSharpe_NoAssetBeatsRiskFree(t *testing.T) {
	s := twoAssetSession()
	s.RiskFree = 0.50

	e := NewEngine()
	_, err := e.MaxSharpe(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAssetBeatsRiskFree)
}

func TestMaxUtility_HighAversionNearsMinVolatility(t *testing.T) {
	s := twoAssetSession()
	e := NewEngine()

	minVol, err := e.MinVolatility(s)
	require.NoError(t, err)

	utility, err := e.MaxUtility(s, 1e6)
	require.NoError(t, err)

	assert.InDelta(t, minVol.Weights["AAA"], utility.Weights["AAA"], 1e-3)
	assert.InDelta(t, minVol.Weights["BBB"], utility.Weights["BBB"], 1e-3)
}

func TestMaxUtility_LowAversionChasesReturn(t *testing.T) {
	e := NewEngine()
	alloc, err := e.MaxUtility(twoAssetSession(), 0.01)
	require.NoError(t, err)

	// With almost no risk penalty everything goes to the high-return asset
	assert.InDelta(t, 1.0, alloc.Weights["AAA"], 1e-3)
}

func TestMaxUtility_RejectsNonPositiveAversion(t *testing.T) {
	e := NewEngine()
	for _, lambda := range []float64{0, -1} {
		_, err := e.MaxUtility(twoAssetSession(), lambda)
		require.Error(t, err)

		var paramErr *InvalidParameterError
		assert.ErrorAs(t, err, &paramErr)
		assert.True(t, IsInputError(err))
	}
}

func TestTargetReturn_HitsTargetExactly(t *testing.T) {
	s := twoAssetSession()
	e := NewEngine()

	target := 0.085
	alloc, err := e.TargetReturn(s, target)
	require.NoError(t, err)

	assert.InDelta(t, target, alloc.Performance.Return, 1e-4)

	sum := 0.0
	for _, w := range alloc.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 2*(WeightCutoff+5e-6))
}

func TestTargetReturn_ExtremesCollapseToVertex(t *testing.T) {
	s := twoAssetSession()
	e := NewEngine()

	alloc, err := e.TargetReturn(s, 0.10)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, alloc.Weights["AAA"], 1e-9)

	alloc, err = e.TargetReturn(s, 0.07)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, alloc.Weights["BBB"], 1e-9)
}

func TestTargetReturn_OutOfRangeIsInfeasible(t *testing.T) {
	e := NewEngine()
	for _, target := range []float64{0.20, 0.01} {
		_, err := e.TargetReturn(twoAssetSession(), target)
		require.Error(t, err)
		assert.ErrorIs(t, err, qp.ErrInfeasible)
	}
}

func TestPerformance_ZeroVolatilityReportsZeroSharpe(t *testing.T) {
	s := &Session{
		Symbols:  []string{"AAA", "BBB"},
		Mu:       mat.NewVecDense(2, []float64{0.10, 0.07}),
		Cov:      mat.NewSymDense(2, nil),
		RiskFree: 0.02,
	}
	perf := s.Performance([]float64{0.5, 0.5})
	assert.Equal(t, 0.0, perf.Sharpe)
	assert.Equal(t, 0.0, perf.Volatility)
}
