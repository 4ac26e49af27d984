package strategy

import "strategy-lab/internal/domain"

// Momentum goes long when the trailing return over the lookback window
// exceeds a threshold and short when it drops below the negative threshold.
type Momentum struct{}

// NewMomentum creates a new Momentum strategy.
func NewMomentum() *Momentum {
	return &Momentum{}
}

// Name returns the strategy identifier.
func (s *Momentum) Name() string { return "momentum" }

// DefaultParams returns the declared defaults.
func (s *Momentum) DefaultParams() map[string]float64 {
	return map[string]float64{
		"lookback":      20,
		"threshold":     0.02,
		"stop_loss_pct": 0.05,
	}
}

// ParamSpace returns candidate values per parameter.
func (s *Momentum) ParamSpace() map[string][]float64 {
	return map[string][]float64{
		"lookback":      {10, 20, 40, 60},
		"threshold":     {0.01, 0.02, 0.05},
		"stop_loss_pct": {0.02, 0.05, 0.10},
	}
}

// Signals emits one point per bar based on the trailing lookback return.
func (s *Momentum) Signals(bars []domain.Bar, params map[string]float64) []domain.SignalPoint {
	lookback := int(paramOr(params, "lookback", 20))
	threshold := paramOr(params, "threshold", 0.02)
	stopPct := paramOr(params, "stop_loss_pct", 0)
	if lookback < 1 {
		lookback = 1
	}

	signals := make([]domain.SignalPoint, len(bars))
	for i, bar := range bars {
		signals[i] = domain.SignalPoint{Timestamp: bar.Timestamp}
		if i < lookback {
			continue
		}
		base := bars[i-lookback].Close
		if base <= 0 {
			continue
		}

		ret := bar.Close/base - 1
		direction := 0
		switch {
		case ret >= threshold:
			direction = 1
		case ret <= -threshold:
			direction = -1
		}

		signals[i].Direction = direction
		signals[i].StopLoss, signals[i].TakeProfit = levels(bar.Close, direction, stopPct, 0)
	}
	return signals
}

var _ Strategy = (*Momentum)(nil)
