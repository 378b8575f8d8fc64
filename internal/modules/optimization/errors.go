package optimization

import (
	"errors"
	"fmt"
)

// ErrNoAssetBeatsRiskFree is returned by the max-Sharpe allocation when
// every expected return is at or below the risk-free rate, so no
// finite-Sharpe-maximizing direction exists. Distinct from a generic
// infeasibility so callers can choose a fallback policy.
var ErrNoAssetBeatsRiskFree = errors.New("optimization: no asset return exceeds the risk-free rate")

// EstimationError indicates the price table cannot produce a usable
// return vector and covariance matrix. Never retried; surfaced verbatim.
type EstimationError struct {
	Reason string
}

func (e *EstimationError) Error() string {
	return "estimation failed: " + e.Reason
}

// InvalidParameterError indicates an out-of-range configuration value,
// rejected before any solve attempt.
type InvalidParameterError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Param, e.Value, e.Reason)
}

// IsInputError reports whether err stems from bad caller input rather
// than a solver failure.
func IsInputError(err error) bool {
	var estErr *EstimationError
	var paramErr *InvalidParameterError
	return errors.As(err, &estErr) || errors.As(err, &paramErr)
}
