package optimization

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/pkg/formulas"
)

// Constants for estimation and allocation defaults
const (
	MinObservations       = 30   // minimum aligned price rows
	DefaultPeriodsPerYear = 252  // trading days per year
	DefaultRiskFreeRate   = 0.03 // annual, as decimal
	DefaultRiskAversion   = 1.0  // utility lambda

	// constantSeriesEps flags a return series with no variation, which
	// would make the covariance matrix exactly singular.
	constantSeriesEps = 1e-12
)

// Session carries the immutable per-optimization state derived once from
// a price table: the asset order, annualized expected returns, and the
// annualized sample covariance. Every allocation call, the frontier
// sweep, and the random sampler read the same session concurrently
// without coordination; nothing mutates it after construction.
type Session struct {
	Symbols        []string
	Mu             *mat.VecDense
	Cov            *mat.SymDense
	RiskFree       float64
	PeriodsPerYear int
}

// NewSession estimates mu and the covariance matrix from the table and
// binds them to the given risk-free rate.
func NewSession(table *domain.PriceTable, riskFree float64, periodsPerYear int) (*Session, error) {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	symbols, mu, cov, err := Estimate(table, periodsPerYear)
	if err != nil {
		return nil, err
	}
	return &Session{
		Symbols:        symbols,
		Mu:             mu,
		Cov:            cov,
		RiskFree:       riskFree,
		PeriodsPerYear: periodsPerYear,
	}, nil
}

// NumAssets returns the session dimension
func (s *Session) NumAssets() int {
	return len(s.Symbols)
}

// Performance computes the annualized statistics of a weight vector in
// session asset order. The vector is used as given; cleaned vectors are
// not renormalized first. A volatility below 1e-12 reports Sharpe 0.
func (s *Session) Performance(weights []float64) domain.Performance {
	ret := 0.0
	for i, w := range weights {
		ret += w * s.Mu.AtVec(i)
	}
	vol := math.Sqrt(quadraticForm(s.Cov, weights))
	sharpe := 0.0
	if vol > 1e-12 {
		sharpe = (ret - s.RiskFree) / vol
	}
	return domain.Performance{Return: ret, Volatility: vol, Sharpe: sharpe}
}

// WeightMap pairs a weight vector with the session's symbols
func (s *Session) WeightMap(weights []float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for i, sym := range s.Symbols {
		out[sym] = weights[i]
	}
	return out
}

// Estimate converts an aligned price table into an annualized expected
// return vector and annualized sample covariance matrix. Assets are
// ordered by sorted symbol so identical tables give identical output.
//
// Per-period simple returns are computed between consecutive rows; mu is
// their mean scaled by periodsPerYear and the covariance is the sample
// covariance (N-1 denominator) scaled by the same factor.
func Estimate(table *domain.PriceTable, periodsPerYear int) ([]string, *mat.VecDense, *mat.SymDense, error) {
	if table == nil || table.NumAssets() == 0 {
		return nil, nil, nil, &EstimationError{Reason: "price table is empty"}
	}
	if table.NumAssets() < 2 {
		return nil, nil, nil, &EstimationError{Reason: "need at least 2 assets"}
	}
	rows := table.NumRows()
	if rows < MinObservations {
		return nil, nil, nil, &EstimationError{
			Reason: fmt.Sprintf("insufficient price history: only %d rows available (need at least %d)", rows, MinObservations),
		}
	}

	symbols := make([]string, 0, table.NumAssets())
	for sym := range table.Prices {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	returns := make([][]float64, len(symbols))
	for i, sym := range symbols {
		prices := table.Prices[sym]
		if len(prices) != rows {
			return nil, nil, nil, &EstimationError{
				Reason: fmt.Sprintf("%s has %d prices for %d dates", sym, len(prices), rows),
			}
		}
		for _, p := range prices {
			if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
				return nil, nil, nil, &EstimationError{
					Reason: fmt.Sprintf("%s has a non-positive or missing price", sym),
				}
			}
		}
		returns[i] = formulas.CalculateReturns(prices)
	}

	numReturns := rows - 1
	if numReturns < 2 {
		return nil, nil, nil, &EstimationError{
			Reason: fmt.Sprintf("only %d return observations", numReturns),
		}
	}

	for i, sym := range symbols {
		if formulas.Variance(returns[i]) < constantSeriesEps {
			return nil, nil, nil, &EstimationError{
				Reason: fmt.Sprintf("%s has a constant price series", sym),
			}
		}
	}

	scale := float64(periodsPerYear)
	mu := mat.NewVecDense(len(symbols), nil)
	for i := range symbols {
		mu.SetVec(i, formulas.Mean(returns[i])*scale)
	}

	cov := mat.NewSymDense(len(symbols), nil)
	for i := range symbols {
		for j := i; j < len(symbols); j++ {
			cov.SetSym(i, j, formulas.Covariance(returns[i], returns[j])*scale)
		}
	}

	return symbols, mu, cov, nil
}

// quadraticForm computes wᵗSw
func quadraticForm(s *mat.SymDense, w []float64) float64 {
	n := len(w)
	sum := 0.0
	for i := 0; i < n; i++ {
		if w[i] == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			sum += w[i] * s.At(i, j) * w[j]
		}
	}
	return sum
}
