package optimization

import "math"

// Weight cleaning constants. Entries below the cutoff are considered
// numerical noise from the solver and zeroed; survivors are rounded for
// display. The vector is intentionally NOT renormalized afterwards, so
// the cleaned sum can fall short of 1 by the dropped mass. Downstream
// statistics are computed over the cleaned vector as-is.
const (
	WeightCutoff   = 1e-4
	WeightDecimals = 5
)

// CleanWeights zeroes entries with magnitude below WeightCutoff and
// rounds the rest to WeightDecimals decimal places. Returns a new slice.
func CleanWeights(raw []float64) []float64 {
	cleaned := make([]float64, len(raw))
	pow := math.Pow(10, WeightDecimals)
	for i, w := range raw {
		if math.Abs(w) < WeightCutoff {
			continue
		}
		cleaned[i] = math.Round(w*pow) / pow
	}
	return cleaned
}
