// Package qp solves convex quadratic programs with linear equality and
// inequality constraints using a deterministic primal active-set method.
package qp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIter = 500
	defaultTol     = 1e-10

	// feasTol bounds the constraint violation accepted for a starting point.
	feasTol = 1e-8

	// activeTol decides whether an inequality counts as active at the start.
	activeTol = 1e-9

	// psdTol is the relative eigenvalue tolerance for the convexity check.
	psdTol = 1e-8

	// ridge regularizes a singular KKT system on the retry pass.
	ridge = 1e-10

	// kktResTol bounds the relative residual accepted for a KKT solve.
	kktResTol = 1e-6

	// unboundedLimit flags iterates escaping toward infinity.
	unboundedLimit = 1e8
)

// Problem is a convex quadratic program in the canonical form
//
//	minimize    ½ xᵗPx + qᵗx
//	subject to  A·x = b
//	            G·x ≤ h
//
// P must be positive semidefinite. Q may be nil for a pure quadratic
// objective. A/B and G/H may be nil when the corresponding constraint
// block is absent. X0 must be a feasible starting point whenever
// inequality constraints are present; with equalities only it may be nil
// and a minimum-norm feasible point is derived.
type Problem struct {
	P  *mat.SymDense
	Q  *mat.VecDense
	A  *mat.Dense
	B  *mat.VecDense
	G  *mat.Dense
	H  *mat.VecDense
	X0 *mat.VecDense
}

// Options tunes the solver. The zero value selects defaults.
type Options struct {
	MaxIter int
	Tol     float64
}

// Result holds the minimizer and solve diagnostics.
type Result struct {
	X          *mat.VecDense
	Objective  float64
	Iterations int
}

// NonNegativity returns (G, h) expressing x ≥ 0 as G·x ≤ h.
func NonNegativity(n int) (*mat.Dense, *mat.VecDense) {
	g := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		g.Set(i, i, -1)
	}
	return g, mat.NewVecDense(n, nil)
}

// Budget returns (A, b) expressing sum(x) = total.
func Budget(n int, total float64) (*mat.Dense, *mat.VecDense) {
	a := mat.NewDense(1, n, nil)
	for j := 0; j < n; j++ {
		a.Set(0, j, 1)
	}
	return a, mat.NewVecDense(1, []float64{total})
}

// Solve minimizes the problem with a primal active-set iteration.
//
// The method keeps every iterate feasible: starting from a feasible
// point it solves the equality-constrained subproblem induced by the
// current working set, steps toward that subproblem's minimizer as far
// as the inactive inequalities allow, and adds the blocking constraint
// when one is hit. At a stationary point, inequality multipliers are
// inspected and the most negative one leaves the working set. Ties are
// broken by lowest row index, so identical inputs produce identical
// outputs.
func Solve(prob *Problem, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	tol := opts.Tol
	if tol <= 0 {
		tol = defaultTol
	}

	n, me, mi, err := checkDimensions(prob)
	if err != nil {
		return nil, err
	}
	if err := checkConvexity(prob.P); err != nil {
		return nil, err
	}

	q := prob.Q
	if q == nil {
		q = mat.NewVecDense(n, nil)
	}

	x, err := startingPoint(prob, n, me, mi)
	if err != nil {
		return nil, err
	}

	// Initial working set: inequalities tight at the start, capped so the
	// constraint rows cannot exceed the variable count.
	active := make([]bool, mi)
	numActive := 0
	if mi > 0 {
		var gx mat.VecDense
		gx.MulVec(prob.G, x)
		for i := 0; i < mi && me+numActive < n; i++ {
			if gx.AtVec(i) >= prob.H.AtVec(i)-activeTol {
				active[i] = true
				numActive++
			}
		}
	}

	for iter := 1; iter <= maxIter; iter++ {
		xStar, ineqMult, err := solveWorkingSet(prob, q, x, active, numActive, n, me)
		if err != nil {
			return nil, err
		}
		if norm2(xStar) >= unboundedLimit {
			return nil, fmt.Errorf("%w: iterate diverged", ErrUnbounded)
		}

		d := mat.NewVecDense(n, nil)
		d.SubVec(xStar, x)

		if norm2(d) <= tol*(1+norm2(x)) {
			// Stationary for the current working set. Optimal when every
			// active inequality multiplier is non-negative.
			drop := -1
			lowest := -tol
			for i, k := 0, 0; i < mi; i++ {
				if !active[i] {
					continue
				}
				if ineqMult[k] < lowest {
					lowest = ineqMult[k]
					drop = i
				}
				k++
			}
			if drop < 0 {
				return &Result{
					X:          x,
					Objective:  objective(prob.P, q, x),
					Iterations: iter,
				}, nil
			}
			active[drop] = false
			numActive--
			continue
		}

		// Step as far toward the subproblem minimizer as the inactive
		// inequalities allow.
		alpha := 1.0
		blocking := -1
		for i := 0; i < mi; i++ {
			if active[i] {
				continue
			}
			gd := rowDot(prob.G, i, d)
			if gd <= tol {
				continue
			}
			slack := prob.H.AtVec(i) - rowDot(prob.G, i, x)
			step := slack / gd
			if step < 0 {
				step = 0
			}
			if step < alpha {
				alpha = step
				blocking = i
			}
		}

		x.AddScaledVec(x, alpha, d)
		if blocking >= 0 && me+numActive < n {
			active[blocking] = true
			numActive++
		}
	}

	return nil, fmt.Errorf("%w: iteration cap %d reached", ErrNumerical, maxIter)
}

func checkDimensions(prob *Problem) (n, me, mi int, err error) {
	if prob == nil || prob.P == nil {
		return 0, 0, 0, fmt.Errorf("qp: quadratic term is required")
	}
	n = prob.P.SymmetricDim()
	if n == 0 {
		return 0, 0, 0, fmt.Errorf("qp: empty problem")
	}
	if prob.Q != nil && prob.Q.Len() != n {
		return 0, 0, 0, fmt.Errorf("qp: linear term has length %d, want %d", prob.Q.Len(), n)
	}
	if prob.A != nil {
		r, c := prob.A.Dims()
		if c != n {
			return 0, 0, 0, fmt.Errorf("qp: equality matrix has %d columns, want %d", c, n)
		}
		if prob.B == nil || prob.B.Len() != r {
			return 0, 0, 0, fmt.Errorf("qp: equality right-hand side does not match %d rows", r)
		}
		me = r
	}
	if prob.G != nil {
		r, c := prob.G.Dims()
		if c != n {
			return 0, 0, 0, fmt.Errorf("qp: inequality matrix has %d columns, want %d", c, n)
		}
		if prob.H == nil || prob.H.Len() != r {
			return 0, 0, 0, fmt.Errorf("qp: inequality right-hand side does not match %d rows", r)
		}
		mi = r
	}
	if prob.X0 != nil && prob.X0.Len() != n {
		return 0, 0, 0, fmt.Errorf("qp: starting point has length %d, want %d", prob.X0.Len(), n)
	}
	return n, me, mi, nil
}

// checkConvexity rejects quadratic terms with eigenvalues below
// -psdTol relative to the spectral radius.
func checkConvexity(p *mat.SymDense) error {
	var es mat.EigenSym
	if ok := es.Factorize(p, false); !ok {
		return fmt.Errorf("%w: eigendecomposition failed", ErrNumerical)
	}
	vals := es.Values(nil)
	scale := 1.0
	for _, v := range vals {
		if a := math.Abs(v); a > scale {
			scale = a
		}
	}
	if vals[0] < -psdTol*scale {
		return fmt.Errorf("%w: smallest eigenvalue %g", ErrNotPSD, vals[0])
	}
	return nil
}

// startingPoint validates the supplied X0 or derives a feasible point
// when only equality constraints are present.
func startingPoint(prob *Problem, n, me, mi int) (*mat.VecDense, error) {
	if prob.X0 != nil {
		x := mat.NewVecDense(n, nil)
		x.CopyVec(prob.X0)
		if me > 0 {
			var ax mat.VecDense
			ax.MulVec(prob.A, x)
			for i := 0; i < me; i++ {
				if math.Abs(ax.AtVec(i)-prob.B.AtVec(i)) > feasTol {
					return nil, fmt.Errorf("%w: starting point violates equality row %d", ErrInfeasible, i)
				}
			}
		}
		if mi > 0 {
			var gx mat.VecDense
			gx.MulVec(prob.G, x)
			for i := 0; i < mi; i++ {
				if gx.AtVec(i) > prob.H.AtVec(i)+feasTol {
					return nil, fmt.Errorf("%w: starting point violates inequality row %d", ErrInfeasible, i)
				}
			}
		}
		return x, nil
	}

	if mi > 0 {
		return nil, fmt.Errorf("qp: starting point required with inequality constraints")
	}
	if me == 0 {
		return mat.NewVecDense(n, nil), nil
	}

	// Minimum-norm solution of A·x = b.
	x := mat.NewVecDense(n, nil)
	if err := x.SolveVec(prob.A, prob.B); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("%w: equality system has no solution", ErrInfeasible)
		}
	}
	var ax mat.VecDense
	ax.MulVec(prob.A, x)
	for i := 0; i < me; i++ {
		if math.Abs(ax.AtVec(i)-prob.B.AtVec(i)) > feasTol {
			return nil, fmt.Errorf("%w: equality system is inconsistent", ErrInfeasible)
		}
	}
	return x, nil
}

// solveWorkingSet minimizes the objective subject to the equality
// constraints plus the active inequalities held as equalities, via the
// dense KKT system
//
//	[P   Aᵗ  Gaᵗ] [x]   [-q]
//	[A   0   0  ] [λ] = [ b]
//	[Ga  0   0  ] [μ]   [ha]
//
// Returns the subproblem minimizer and the active-inequality multipliers
// in working-set order.
func solveWorkingSet(prob *Problem, q, x *mat.VecDense, active []bool, numActive, n, me int) (*mat.VecDense, []float64, error) {
	size := n + me + numActive
	kkt := mat.NewDense(size, size, nil)
	rhs := mat.NewVecDense(size, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			kkt.Set(i, j, prob.P.At(i, j))
		}
		rhs.SetVec(i, -q.AtVec(i))
	}
	for r := 0; r < me; r++ {
		for j := 0; j < n; j++ {
			v := prob.A.At(r, j)
			kkt.Set(n+r, j, v)
			kkt.Set(j, n+r, v)
		}
		rhs.SetVec(n+r, prob.B.AtVec(r))
	}
	row := n + me
	for i := 0; i < len(active); i++ {
		if !active[i] {
			continue
		}
		for j := 0; j < n; j++ {
			v := prob.G.At(i, j)
			kkt.Set(row, j, v)
			kkt.Set(j, row, v)
		}
		rhs.SetVec(row, prob.H.AtVec(i))
		row++
	}

	// A singular KKT matrix can surface as a tolerated mat.Condition
	// error with a meaningless solution vector, so acceptance is decided
	// by the residual, not the error value alone.
	sol := mat.NewVecDense(size, nil)
	err := sol.SolveVec(kkt, rhs)
	if err != nil || !(kktResidual(kkt, sol, rhs) <= kktResTol) {
		// Regularize the quadratic block once, then give up. The ridge
		// turns a zero-curvature descent direction into a huge finite
		// iterate, which the unboundedLimit check in Solve flags.
		for i := 0; i < n; i++ {
			kkt.Set(i, i, kkt.At(i, i)+ridge)
		}
		sol = mat.NewVecDense(size, nil)
		if err := sol.SolveVec(kkt, rhs); err != nil {
			if _, ok := err.(mat.Condition); !ok {
				return nil, nil, fmt.Errorf("%w: singular KKT system", ErrNumerical)
			}
		}
		if !(kktResidual(kkt, sol, rhs) <= kktResTol) {
			return nil, nil, fmt.Errorf("%w: singular KKT system", ErrNumerical)
		}
	}
	for i := 0; i < size; i++ {
		if math.IsNaN(sol.AtVec(i)) || math.IsInf(sol.AtVec(i), 0) {
			return nil, nil, fmt.Errorf("%w: non-finite KKT solution", ErrNumerical)
		}
	}

	xStar := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		xStar.SetVec(i, sol.AtVec(i))
	}
	mult := make([]float64, numActive)
	for k := 0; k < numActive; k++ {
		mult[k] = sol.AtVec(n + me + k)
	}
	return xStar, mult, nil
}

// kktResidual measures ‖K·sol − rhs‖ relative to the right-hand side.
// NaN entries in sol propagate into a NaN residual, which fails every
// <= comparison.
func kktResidual(kkt *mat.Dense, sol, rhs *mat.VecDense) float64 {
	var r mat.VecDense
	r.MulVec(kkt, sol)
	r.SubVec(&r, rhs)
	return mat.Norm(&r, 2) / (1 + mat.Norm(rhs, 2))
}

func objective(p *mat.SymDense, q, x *mat.VecDense) float64 {
	n := x.Len()
	quad := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			quad += x.AtVec(i) * p.At(i, j) * x.AtVec(j)
		}
	}
	lin := mat.Dot(q, x)
	return 0.5*quad + lin
}

func rowDot(m *mat.Dense, row int, v *mat.VecDense) float64 {
	_, c := m.Dims()
	sum := 0.0
	for j := 0; j < c; j++ {
		sum += m.At(row, j) * v.AtVec(j)
	}
	return sum
}

func norm2(v *mat.VecDense) float64 {
	return mat.Norm(v, 2)
}
