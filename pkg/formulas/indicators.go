package formulas

import (
	"github.com/markcheno/go-talib"
)

// SimpleMovingAverage calculates the SMA series for a price series
// The first period-1 entries are zero, matching the underlying library's
// warm-up behavior. Returns nil if the series is shorter than the period.
func SimpleMovingAverage(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	return talib.Sma(prices, period)
}
