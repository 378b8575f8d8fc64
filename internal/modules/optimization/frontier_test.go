package optimization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontier_SweepsFromMinVolToBeyondTangency(t *testing.T) {
	s := twoAssetSession()
	e := NewEngine()

	result, err := e.Frontier(context.Background(), s, 50, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Points)

	minVol := result.MinVolatility.Performance
	maxSharpe := result.MaxSharpe.Performance

	// The lowest target coincides with the minimum-volatility portfolio
	first := result.Points[0]
	assert.InDelta(t, minVol.Return, first.Return, 1e-4)
	assert.InDelta(t, minVol.Volatility, first.Volatility, 1e-4)

	// No point undercuts the global minimum volatility and returns come
	// back ordered by target
	for i, p := range result.Points {
		assert.GreaterOrEqual(t, p.Volatility+1e-8, minVol.Volatility)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Return+1e-8, result.Points[i-1].Return)
		}
	}

	// The sweep extends to 1.2x the tangency return, which here exceeds
	// max(mu): those targets are skipped, not errors.
	assert.Less(t, len(result.Points), 50)
	assert.Greater(t, len(result.Points), 40)

	assert.InDelta(t, maxSharpe.Return, result.MaxSharpePoint.Return, 1e-12)
	assert.InDelta(t, maxSharpe.Volatility, result.MaxSharpePoint.Volatility, 1e-12)
}

func TestFrontier_ProgressCoversEveryTarget(t *testing.T) {
	s := twoAssetSession()
	e := NewEngine()

	var calls []int
	result, err := e.Frontier(context.Background(), s, 10, func(done, total int) {
		assert.Equal(t, 10, total)
		calls = append(calls, done)
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, calls, 10)
	for i, done := range calls {
		assert.Equal(t, i+1, done)
	}
}

func TestFrontier_RejectsSinglePoint(t *testing.T) {
	e := NewEngine()
	_, err := e.Frontier(context.Background(), twoAssetSession(), 1, nil)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
}

func TestFrontier_NoTangencyMeansNoSweep(t *testing.T) {
	s := twoAssetSession()
	s.RiskFree = 0.50

	e := NewEngine()
	_, err := e.Frontier(context.Background(), s, 10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAssetBeatsRiskFree)
}

func TestFrontier_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine()
	_, err := e.Frontier(ctx, twoAssetSession(), 10, nil)
	require.Error(t, err)
}
