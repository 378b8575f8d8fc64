package optimization

import (
	"fmt"

	"github.com/aristath/frontier/internal/domain"
)

// Strategy selects which allocation the engine runs
type Strategy string

const (
	StrategyMinVolatility Strategy = "min_volatility"
	StrategyMaxSharpe     Strategy = "max_sharpe"
	StrategyMaxUtility    Strategy = "max_utility"
	StrategyTargetReturn  Strategy = "target_return"
)

// ParseStrategy validates a strategy name from a request
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMinVolatility, StrategyMaxSharpe, StrategyMaxUtility, StrategyTargetReturn:
		return Strategy(s), nil
	case "":
		return StrategyMaxSharpe, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// OptimizeRequest asks for a single allocation
type OptimizeRequest struct {
	Symbols      []string `json:"symbols"`
	Start        string   `json:"start,omitempty"` // YYYY-MM-DD, empty = open
	End          string   `json:"end,omitempty"`
	Strategy     string   `json:"strategy,omitempty"`
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`
	RiskAversion *float64 `json:"risk_aversion,omitempty"`
	TargetReturn *float64 `json:"target_return,omitempty"`
	Save         bool     `json:"save,omitempty"`
}

// FrontierRequest asks for a frontier sweep plus a random portfolio cloud
type FrontierRequest struct {
	Symbols      []string `json:"symbols"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	RiskFreeRate *float64 `json:"risk_free_rate,omitempty"`
	NumPoints    int      `json:"num_points,omitempty"`
	NumSamples   int      `json:"num_samples,omitempty"`
	Seed         int64    `json:"seed,omitempty"`
	Save         bool     `json:"save,omitempty"`
}

// OptimizeResult is the full output of one allocation run. It is both
// the API response body and the payload persisted with a saved run.
type OptimizeResult struct {
	RunID        string             `json:"run_id,omitempty"`
	Strategy     Strategy           `json:"strategy"`
	Symbols      []string           `json:"symbols"`
	Weights      map[string]float64 `json:"weights"`
	Performance  domain.Performance `json:"performance"`
	RiskFreeRate float64            `json:"risk_free_rate"`
	RiskAversion float64            `json:"risk_aversion,omitempty"`
	TargetReturn float64            `json:"target_return,omitempty"`
	Observations int                `json:"observations"`
	From         string             `json:"from"`
	To           string             `json:"to"`
}

// FrontierRunResult is the full output of a frontier run: the swept
// curve, the anchoring portfolios, and the sampled cloud.
type FrontierRunResult struct {
	RunID          string                       `json:"run_id,omitempty"`
	Symbols        []string                     `json:"symbols"`
	Points         []domain.FrontierPoint       `json:"points"`
	MaxSharpePoint domain.FrontierPoint         `json:"max_sharpe_point"`
	MinVolatility  *Allocation                  `json:"min_volatility"`
	MaxSharpe      *Allocation                  `json:"max_sharpe"`
	Cloud          *domain.RandomPortfolioCloud `json:"cloud,omitempty"`
	RiskFreeRate   float64                      `json:"risk_free_rate"`
	Seed           int64                        `json:"seed,omitempty"`
	Observations   int                          `json:"observations"`
	From           string                       `json:"from"`
	To             string                       `json:"to"`
}

// DiscreteRequest converts continuous weights into whole-share counts.
// Weights come either inline or from a saved run.
type DiscreteRequest struct {
	RunID      string             `json:"run_id,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	TotalValue float64            `json:"total_value"`

	// Prices may be supplied directly; when empty the latest cached
	// closes are used.
	Prices map[string]float64 `json:"prices,omitempty"`
}
