package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanWeights_ZeroesNoise(t *testing.T) {
	cleaned := CleanWeights([]float64{0.5, 5e-5, -3e-7, 0.49995})
	assert.Equal(t, []float64{0.5, 0, 0, 0.49995}, cleaned)
}

func TestCleanWeights_RoundsToFiveDecimals(t *testing.T) {
	cleaned := CleanWeights([]float64{0.333333333, 0.666666666})
	assert.Equal(t, []float64{0.33333, 0.66667}, cleaned)
}

func TestCleanWeights_DoesNotRenormalize(t *testing.T) {
	// Every entry just below the cutoff except one: the dropped mass is
	// not redistributed.
	raw := []float64{0.9995, 5e-5, 5e-5, 5e-5, 5e-5, 5e-5, 5e-5, 5e-5, 5e-5, 5e-5, 5e-5}
	cleaned := CleanWeights(raw)

	sum := 0.0
	for _, w := range cleaned {
		sum += w
	}
	assert.InDelta(t, 0.9995, sum, 1e-12)
}

func TestCleanWeights_SumStaysNearOne(t *testing.T) {
	// Rounding and cutoff move the sum of a simplex vector by at most
	// n·(cutoff + half an ulp at 5 decimals) in either direction.
	raw := []float64{0.200004, 0.199996, 0.25, 0.00009, 0.349910}
	cleaned := CleanWeights(raw)

	sum := 0.0
	for _, w := range cleaned {
		sum += w
	}
	n := float64(len(raw))
	assert.GreaterOrEqual(t, sum, 1-n*(WeightCutoff+5e-6))
	assert.LessOrEqual(t, sum, 1+n*5e-6)
}

func TestCleanWeights_ReturnsNewSlice(t *testing.T) {
	raw := []float64{0.5, 0.5}
	cleaned := CleanWeights(raw)
	cleaned[0] = 0
	assert.Equal(t, 0.5, raw[0])
}
