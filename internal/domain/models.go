package domain

import "time"

// RunKind identifies what a stored optimization run produced
type RunKind string

const (
	RunKindOptimize RunKind = "optimize"
	RunKindFrontier RunKind = "frontier"
)

// PriceTable holds aligned daily close prices for a set of assets.
// Dates are ascending YYYY-MM-DD strings and every series in Prices has
// exactly len(Dates) entries. Rows with a missing value for any asset
// are dropped before the table is built.
type PriceTable struct {
	Dates  []string             `json:"dates"`
	Prices map[string][]float64 `json:"prices"`
}

// NumRows returns the number of aligned observations
func (t *PriceTable) NumRows() int {
	return len(t.Dates)
}

// NumAssets returns the number of price series
func (t *PriceTable) NumAssets() int {
	return len(t.Prices)
}

// PricePoint represents a single point on a price chart
type PricePoint struct {
	Time  string  `json:"time"`  // YYYY-MM-DD format
	Value float64 `json:"value"` // Close price
}

// Performance holds the annualized statistics of a portfolio
type Performance struct {
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
	Sharpe     float64 `json:"sharpe"`
}

// FrontierPoint is one (return, volatility) sample on the efficient frontier
type FrontierPoint struct {
	Return     float64 `json:"return"`
	Volatility float64 `json:"volatility"`
}

// RandomPortfolioCloud holds the statistics of randomly sampled feasible
// portfolios as parallel arrays. Descriptive output only.
type RandomPortfolioCloud struct {
	Returns      []float64 `json:"returns"`
	Volatilities []float64 `json:"volatilities"`
	Sharpes      []float64 `json:"sharpes"`
}

// Size returns the number of sampled portfolios
func (c *RandomPortfolioCloud) Size() int {
	return len(c.Returns)
}

// Run is a persisted optimization session
type Run struct {
	ID        string    `json:"id"`
	Kind      RunKind   `json:"kind"`
	Symbols   []string  `json:"symbols"`
	CreatedAt time.Time `json:"created_at"`
}
