package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/pkg/qp"
)

// targetEps decides when a requested target return coincides with an
// extreme asset return, in which case the single-vertex solution is
// returned directly instead of solving a fully pinned system.
const targetEps = 1e-12

// Allocation is the result of one allocation operation: the cleaned
// weight map plus statistics computed over the cleaned vector.
type Allocation struct {
	Weights     map[string]float64 `json:"weights"`
	Performance domain.Performance `json:"performance"`

	// Vector holds the cleaned weights in session symbol order.
	Vector []float64 `json:"-"`
}

// Engine runs the four allocation strategies on top of the QP solver.
// It is stateless and safe for concurrent use; all per-call state lives
// in the Session.
type Engine struct {
	solverOpts *qp.Options
}

// NewEngine creates an allocation engine with default solver settings
func NewEngine() *Engine {
	return &Engine{}
}

// MinVolatility computes the global minimum-variance portfolio:
// minimize wᵗSw subject to sum(w)=1, w≥0.
func (e *Engine) MinVolatility(s *Session) (*Allocation, error) {
	n := s.NumAssets()
	a, b := qp.Budget(n, 1)
	g, h := qp.NonNegativity(n)

	res, err := qp.Solve(&qp.Problem{
		P:  scaledCov(s.Cov, 2),
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: uniformWeights(n),
	}, e.solverOpts)
	if err != nil {
		return nil, fmt.Errorf("min volatility: %w", err)
	}
	return e.finish(s, res.X)
}

// MaxSharpe computes the tangency portfolio via the standard
// homogenization: with excess returns r = mu - rf·1 and variables
// (y, κ), minimize yᵗSy subject to rᵗy = 1, sum(y) = κ, y ≥ 0, κ ≥ 0,
// then recover w = y/κ. The fractional objective itself is not convex;
// the substituted problem is.
func (e *Engine) MaxSharpe(s *Session) (*Allocation, error) {
	n := s.NumAssets()

	best := -1
	bestExcess := 0.0
	excess := make([]float64, n)
	for i := 0; i < n; i++ {
		excess[i] = s.Mu.AtVec(i) - s.RiskFree
		if excess[i] > bestExcess {
			bestExcess = excess[i]
			best = i
		}
	}
	if best < 0 {
		return nil, ErrNoAssetBeatsRiskFree
	}

	// Quadratic term over z = (y, κ): S on the y block, zero curvature
	// along κ.
	p := mat.NewSymDense(n+1, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			p.SetSym(i, j, 2*s.Cov.At(i, j))
		}
	}

	a := mat.NewDense(2, n+1, nil)
	for j := 0; j < n; j++ {
		a.Set(0, j, excess[j])
		a.Set(1, j, 1)
	}
	a.Set(1, n, -1)
	b := mat.NewVecDense(2, []float64{1, 0})

	g, h := qp.NonNegativity(n + 1)

	// All mass on the best excess-return asset satisfies both equality
	// rows exactly.
	z0 := mat.NewVecDense(n+1, nil)
	z0.SetVec(best, 1/bestExcess)
	z0.SetVec(n, 1/bestExcess)

	res, err := qp.Solve(&qp.Problem{
		P:  p,
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: z0,
	}, e.solverOpts)
	if err != nil {
		return nil, fmt.Errorf("max sharpe: %w", err)
	}

	kappa := res.X.AtVec(n)
	if kappa < 1e-12 {
		return nil, fmt.Errorf("max sharpe: %w: scale variable collapsed", qp.ErrNumerical)
	}
	w := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		w.SetVec(i, res.X.AtVec(i)/kappa)
	}
	return e.finish(s, w)
}

// MaxUtility maximizes wᵗmu - (λ/2)·wᵗSw on the simplex, equivalent to
// the convex QP minimize ½λwᵗSw - wᵗmu.
func (e *Engine) MaxUtility(s *Session, riskAversion float64) (*Allocation, error) {
	if math.IsNaN(riskAversion) || riskAversion <= 0 {
		return nil, &InvalidParameterError{
			Param:  "risk_aversion",
			Value:  riskAversion,
			Reason: "must be greater than zero",
		}
	}

	n := s.NumAssets()
	negMu := mat.NewVecDense(n, nil)
	negMu.ScaleVec(-1, s.Mu)
	a, b := qp.Budget(n, 1)
	g, h := qp.NonNegativity(n)

	res, err := qp.Solve(&qp.Problem{
		P:  scaledCov(s.Cov, riskAversion),
		Q:  negMu,
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: uniformWeights(n),
	}, e.solverOpts)
	if err != nil {
		return nil, fmt.Errorf("max utility: %w", err)
	}
	return e.finish(s, res.X)
}

// TargetReturn computes the minimum-variance portfolio achieving an
// exact expected return: minimize wᵗSw subject to sum(w)=1, w≥0,
// wᵗmu = target. Targets outside the attainable range fail with
// qp.ErrInfeasible.
func (e *Engine) TargetReturn(s *Session, target float64) (*Allocation, error) {
	n := s.NumAssets()

	minIdx, maxIdx := 0, 0
	for i := 1; i < n; i++ {
		if s.Mu.AtVec(i) < s.Mu.AtVec(minIdx) {
			minIdx = i
		}
		if s.Mu.AtVec(i) > s.Mu.AtVec(maxIdx) {
			maxIdx = i
		}
	}
	muMin := s.Mu.AtVec(minIdx)
	muMax := s.Mu.AtVec(maxIdx)

	if target < muMin-targetEps || target > muMax+targetEps {
		return nil, fmt.Errorf("target return %g: %w: attainable range is [%g, %g]",
			target, qp.ErrInfeasible, muMin, muMax)
	}

	// At an extreme the feasible set collapses to a single vertex.
	if math.Abs(target-muMax) <= targetEps {
		return e.finish(s, unitVertex(n, maxIdx))
	}
	if math.Abs(target-muMin) <= targetEps {
		return e.finish(s, unitVertex(n, minIdx))
	}

	a := mat.NewDense(2, n, nil)
	for j := 0; j < n; j++ {
		a.Set(0, j, 1)
		a.Set(1, j, s.Mu.AtVec(j))
	}
	b := mat.NewVecDense(2, []float64{1, target})
	g, h := qp.NonNegativity(n)

	// Blend of the extreme-return vertices hits the target exactly while
	// staying on the simplex.
	t := (target - muMin) / (muMax - muMin)
	x0 := mat.NewVecDense(n, nil)
	x0.SetVec(minIdx, 1-t)
	x0.SetVec(maxIdx, t)

	res, err := qp.Solve(&qp.Problem{
		P:  scaledCov(s.Cov, 2),
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: x0,
	}, e.solverOpts)
	if err != nil {
		return nil, fmt.Errorf("target return %g: %w", target, err)
	}
	return e.finish(s, res.X)
}

// finish cleans the raw solver weights and attaches statistics computed
// over the cleaned (not renormalized) vector.
func (e *Engine) finish(s *Session, raw *mat.VecDense) (*Allocation, error) {
	n := raw.Len()
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = raw.AtVec(i)
	}
	cleaned := CleanWeights(vec)
	return &Allocation{
		Weights:     s.WeightMap(cleaned),
		Performance: s.Performance(cleaned),
		Vector:      cleaned,
	}, nil
}

func scaledCov(cov *mat.SymDense, k float64) *mat.SymDense {
	n := cov.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, k*cov.At(i, j))
		}
	}
	return out
}

func uniformWeights(n int) *mat.VecDense {
	x := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x.SetVec(i, 1/float64(n))
	}
	return x
}

func unitVertex(n, idx int) *mat.VecDense {
	x := mat.NewVecDense(n, nil)
	x.SetVec(idx, 1)
	return x
}
