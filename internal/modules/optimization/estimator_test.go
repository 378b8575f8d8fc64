package optimization

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/domain"
)

// tableFromReturns builds a price table whose per-period returns are
// exactly the given sequences, starting every series at 100.
func tableFromReturns(returns map[string][]float64) *domain.PriceTable {
	var numRows int
	prices := make(map[string][]float64, len(returns))
	for sym, rets := range returns {
		series := make([]float64, len(rets)+1)
		series[0] = 100
		for i, r := range rets {
			series[i+1] = series[i] * (1 + r)
		}
		prices[sym] = series
		numRows = len(series)
	}
	dates := make([]string, numRows)
	for i := range dates {
		dates[i] = fmt.Sprintf("2024-01-%02d", i+1)
	}
	return &domain.PriceTable{Dates: dates, Prices: prices}
}

// alternating returns a sequence cycling through the given values
func alternating(n int, values ...float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = values[i%len(values)]
	}
	return out
}

func TestEstimate_KnownMoments(t *testing.T) {
	// 30 returns alternating +0.02 / -0.01: mean 0.005, every deviation
	// is ±0.015, so the sample variance is 30·0.015²/29.
	table := tableFromReturns(map[string][]float64{
		"AAA": alternating(30, 0.02, -0.01),
		"BBB": alternating(30, -0.01, 0.02),
	})

	symbols, mu, cov, err := Estimate(table, 252)
	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "BBB"}, symbols)

	wantMu := 0.005 * 252
	assert.InDelta(t, wantMu, mu.AtVec(0), 1e-9)
	assert.InDelta(t, wantMu, mu.AtVec(1), 1e-9)

	wantVar := 30 * 0.015 * 0.015 / 29 * 252
	assert.InDelta(t, wantVar, cov.At(0, 0), 1e-9)
	assert.InDelta(t, wantVar, cov.At(1, 1), 1e-9)

	// The two series move in exact opposition
	assert.InDelta(t, -wantVar, cov.At(0, 1), 1e-9)
	assert.InDelta(t, cov.At(0, 1), cov.At(1, 0), 1e-12)
}

func TestEstimate_SortsSymbols(t *testing.T) {
	table := tableFromReturns(map[string][]float64{
		"ZZZ": alternating(30, 0.02, -0.01),
		"AAA": alternating(30, 0.01, -0.005),
		"MMM": alternating(30, 0.015, -0.008),
	})

	symbols, _, _, err := Estimate(table, 252)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, symbols)
}

func TestEstimate_InsufficientRows(t *testing.T) {
	table := tableFromReturns(map[string][]float64{
		"AAA": alternating(10, 0.02, -0.01),
		"BBB": alternating(10, -0.01, 0.02),
	})

	_, _, _, err := Estimate(table, 252)
	require.Error(t, err)

	var estErr *EstimationError
	assert.ErrorAs(t, err, &estErr)
	assert.True(t, IsInputError(err))
}

func TestEstimate_ConstantSeries(t *testing.T) {
	table := tableFromReturns(map[string][]float64{
		"AAA": alternating(30, 0.02, -0.01),
		"FLAT": alternating(30, 0.0),
	})

	_, _, _, err := Estimate(table, 252)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constant")
}

func TestEstimate_NonPositivePrice(t *testing.T) {
	table := tableFromReturns(map[string][]float64{
		"AAA": alternating(30, 0.02, -0.01),
		"BBB": alternating(30, -0.01, 0.02),
	})
	table.Prices["BBB"][5] = -1

	_, _, _, err := Estimate(table, 252)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive")
}

func TestEstimate_NeedsTwoAssets(t *testing.T) {
	table := tableFromReturns(map[string][]float64{
		"AAA": alternating(30, 0.02, -0.01),
	})

	_, _, _, err := Estimate(table, 252)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 assets")
}

func TestNewSession_DefaultsPeriods(t *testing.T) {
	table := tableFromReturns(map[string][]float64{
		"AAA": alternating(30, 0.02, -0.01),
		"BBB": alternating(30, -0.01, 0.02),
	})

	s, err := NewSession(table, 0.03, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPeriodsPerYear, s.PeriodsPerYear)
	assert.Equal(t, 2, s.NumAssets())
	assert.Equal(t, 0.03, s.RiskFree)
}

func TestWeightMap_PairsInOrder(t *testing.T) {
	s := twoAssetSession()
	m := s.WeightMap([]float64{0.3, 0.7})
	assert.Equal(t, map[string]float64{"AAA": 0.3, "BBB": 0.7}, m)
}
