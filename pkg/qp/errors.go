package qp

import "errors"

var (
	// ErrInfeasible indicates that no point satisfies all constraints.
	ErrInfeasible = errors.New("qp: problem is infeasible")

	// ErrUnbounded indicates the objective decreases without bound over
	// the feasible set.
	ErrUnbounded = errors.New("qp: objective is unbounded below")

	// ErrNumerical indicates the solver hit its iteration cap or an
	// ill-conditioned system it could not recover from.
	ErrNumerical = errors.New("qp: solver failed to converge")

	// ErrNotPSD indicates the quadratic term has a negative eigenvalue
	// beyond tolerance, so the problem is not convex.
	ErrNotPSD = errors.New("qp: quadratic term is not positive semidefinite")
)
