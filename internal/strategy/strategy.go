// Package strategy defines parameterized signal generators. Strategies are
// collaborators of the validation core: the optimizer searches their
// parameter space, Monte Carlo parameter-sensitivity mode perturbs their
// parameters, and walk-forward analysis re-optimizes them per window.
package strategy

import "strategy-lab/internal/domain"

// Strategy produces a signal series from a bar series and parameters.
// Implementations must be deterministic and stateless: Signals may be called
// concurrently from sweep workers.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// DefaultParams returns the declared default parameter values.
	DefaultParams() map[string]float64

	// ParamSpace returns candidate values per parameter for optimization.
	ParamSpace() map[string][]float64

	// Signals generates one signal point per bar.
	Signals(bars []domain.Bar, params map[string]float64) []domain.SignalPoint
}

// paramOr reads a parameter with a fallback default.
func paramOr(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

// levels derives absolute stop-loss/take-profit prices from the entry bar
// close and the configured percentages. Zero percentages yield nil levels.
func levels(close float64, direction int, stopPct, takePct float64) (stop, take *float64) {
	if direction == 0 || close <= 0 {
		return nil, nil
	}
	sign := 1.0
	if direction < 0 {
		sign = -1
	}
	if stopPct > 0 {
		v := close * (1 - sign*stopPct)
		stop = &v
	}
	if takePct > 0 {
		v := close * (1 + sign*takePct)
		take = &v
	}
	return stop, take
}
