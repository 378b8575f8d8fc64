package qp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func uniformStart(n int) *mat.VecDense {
	x := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x.SetVec(i, 1/float64(n))
	}
	return x
}

func TestSolve_Unconstrained(t *testing.T) {
	// minimize ½xᵗIx - [1 2]ᵗx  =>  x = [1 2]
	prob := &Problem{
		P: mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		Q: mat.NewVecDense(2, []float64{-1, -2}),
	}

	res, err := Solve(prob, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X.AtVec(0), 1e-8)
	assert.InDelta(t, 2.0, res.X.AtVec(1), 1e-8)
	assert.InDelta(t, -2.5, res.Objective, 1e-8)
}

func TestSolve_EqualityOnly(t *testing.T) {
	// minimize ½xᵗx subject to x1 + x2 = 2  =>  x = [1 1]
	a, b := Budget(2, 2)
	prob := &Problem{
		P: mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		A: a,
		B: b,
	}

	res, err := Solve(prob, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X.AtVec(0), 1e-8)
	assert.InDelta(t, 1.0, res.X.AtVec(1), 1e-8)
}

func TestSolve_MinimumVariancePortfolio(t *testing.T) {
	// Two-asset global minimum variance on the simplex. Analytically
	// w1 = (s22 - s12) / (s11 + s22 - 2 s12) = 0.01/0.04 = 0.25.
	s := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.02})
	a, b := Budget(2, 1)
	g, h := NonNegativity(2)
	prob := &Problem{
		P:  scaleSym(s, 2),
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: uniformStart(2),
	}

	res, err := Solve(prob, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.X.AtVec(0), 1e-6)
	assert.InDelta(t, 0.75, res.X.AtVec(1), 1e-6)
	// Objective is ½·wᵗ(2S)w = wᵗSw = 0.0175 at the optimum.
	assert.InDelta(t, 0.0175, res.Objective, 1e-8)
}

func TestSolve_ActiveBoundAtOptimum(t *testing.T) {
	// minimize ½λwᵗSw - μᵗw on the simplex with λ=1 pins the portfolio
	// to the high-return asset: the unconstrained stationary point has a
	// negative second weight.
	s := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.02})
	mu := mat.NewVecDense(2, []float64{0.12, 0.08})
	a, b := Budget(2, 1)
	g, h := NonNegativity(2)
	neg := mat.NewVecDense(2, nil)
	neg.ScaleVec(-1, mu)
	prob := &Problem{
		P:  s,
		Q:  neg,
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: uniformStart(2),
	}

	res, err := Solve(prob, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X.AtVec(0), 1e-6)
	assert.InDelta(t, 0.0, res.X.AtVec(1), 1e-6)
}

func TestSolve_ThreeAssetSimplex(t *testing.T) {
	s := mat.NewSymDense(3, []float64{
		0.09, 0.01, 0.0,
		0.01, 0.04, 0.005,
		0.0, 0.005, 0.0225,
	})
	a, b := Budget(3, 1)
	g, h := NonNegativity(3)
	prob := &Problem{
		P:  scaleSym(s, 2),
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: uniformStart(3),
	}

	res, err := Solve(prob, nil)
	require.NoError(t, err)

	sum := 0.0
	for i := 0; i < 3; i++ {
		assert.GreaterOrEqual(t, res.X.AtVec(i), -1e-9)
		sum += res.X.AtVec(i)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	// The solution must not be dominated by any simplex corner or the
	// uniform portfolio.
	opt := quadForm(s, res.X)
	for _, w := range [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1. / 3, 1. / 3, 1. / 3}} {
		v := quadForm(s, mat.NewVecDense(3, w))
		assert.LessOrEqual(t, opt, v+1e-9)
	}
}

func TestSolve_Deterministic(t *testing.T) {
	s := mat.NewSymDense(3, []float64{
		0.09, 0.01, 0.0,
		0.01, 0.04, 0.005,
		0.0, 0.005, 0.0225,
	})
	mu := mat.NewVecDense(3, []float64{-0.15, -0.10, -0.06})
	a, b := Budget(3, 1)
	g, h := NonNegativity(3)

	solveOnce := func() []float64 {
		prob := &Problem{
			P:  s,
			Q:  mu,
			A:  a,
			B:  b,
			G:  g,
			H:  h,
			X0: uniformStart(3),
		}
		res, err := Solve(prob, nil)
		require.NoError(t, err)
		out := make([]float64, 3)
		for i := range out {
			out[i] = res.X.AtVec(i)
		}
		return out
	}

	first := solveOnce()
	second := solveOnce()
	assert.Equal(t, first, second)
}

func TestSolve_RejectsIndefinite(t *testing.T) {
	// Eigenvalues 3 and -1.
	prob := &Problem{
		P: mat.NewSymDense(2, []float64{1, 2, 2, 1}),
	}

	_, err := Solve(prob, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotPSD)
}

func TestSolve_InfeasibleStart(t *testing.T) {
	a, b := Budget(2, 1)
	g, h := NonNegativity(2)
	prob := &Problem{
		P:  mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		A:  a,
		B:  b,
		G:  g,
		H:  h,
		X0: mat.NewVecDense(2, []float64{2, -1}),
	}

	_, err := Solve(prob, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSolve_InconsistentEqualities(t *testing.T) {
	// x1 + x2 = 1 and x1 + x2 = 2 cannot both hold.
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	b := mat.NewVecDense(2, []float64{1, 2})
	prob := &Problem{
		P: mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		A: a,
		B: b,
	}

	_, err := Solve(prob, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSolve_UnboundedObjective(t *testing.T) {
	// Zero curvature with a linear drift and no constraints.
	prob := &Problem{
		P: mat.NewSymDense(2, nil),
		Q: mat.NewVecDense(2, []float64{1, 0}),
	}

	_, err := Solve(prob, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnbounded)
}

func TestSolve_UnboundedAlongFlatDirection(t *testing.T) {
	// Positive curvature in x1 only; the objective falls without limit
	// along x2. The singular KKT solve must not pass off x = 0 as the
	// minimizer.
	prob := &Problem{
		P: mat.NewSymDense(2, []float64{1, 0, 0, 0}),
		Q: mat.NewVecDense(2, []float64{0, 1}),
	}

	res, err := Solve(prob, nil)
	require.Error(t, err)
	require.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnbounded)
}

func TestSolve_MissingStartWithInequalities(t *testing.T) {
	g, h := NonNegativity(2)
	prob := &Problem{
		P: mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		G: g,
		H: h,
	}

	_, err := Solve(prob, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting point required")
}

func TestSolve_DimensionMismatch(t *testing.T) {
	prob := &Problem{
		P: mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		Q: mat.NewVecDense(3, []float64{1, 2, 3}),
	}

	_, err := Solve(prob, nil)
	require.Error(t, err)
}

func TestBudgetAndNonNegativityShapes(t *testing.T) {
	a, b := Budget(4, 1)
	r, c := a.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 1.0, b.AtVec(0))

	g, h := NonNegativity(3)
	r, c = g.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, -1.0, g.At(1, 1))
	assert.Equal(t, 0.0, h.AtVec(2))
}

// scaleSym returns k·S as a fresh symmetric matrix.
func scaleSym(s *mat.SymDense, k float64) *mat.SymDense {
	n := s.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, k*s.At(i, j))
		}
	}
	return out
}

func quadForm(s *mat.SymDense, w *mat.VecDense) float64 {
	var sw mat.VecDense
	sw.MulVec(s, w)
	return mat.Dot(w, &sw)
}
