package strategy

import "strategy-lab/internal/domain"

// MACross is a moving-average crossover generator: long while the fast
// average is above the slow one, short while below.
type MACross struct{}

// NewMACross creates a new MACross strategy.
func NewMACross() *MACross {
	return &MACross{}
}

// Name returns the strategy identifier.
func (s *MACross) Name() string { return "ma_cross" }

// DefaultParams returns the declared defaults.
func (s *MACross) DefaultParams() map[string]float64 {
	return map[string]float64{
		"fast_period":     10,
		"slow_period":     30,
		"stop_loss_pct":   0.05,
		"take_profit_pct": 0.10,
	}
}

// ParamSpace returns candidate values per parameter.
func (s *MACross) ParamSpace() map[string][]float64 {
	return map[string][]float64{
		"fast_period":     {5, 10, 15, 20},
		"slow_period":     {20, 30, 50, 100},
		"stop_loss_pct":   {0.02, 0.05, 0.10},
		"take_profit_pct": {0.05, 0.10, 0.20},
	}
}

// Signals emits one point per bar: +1 while fast SMA > slow SMA, -1 while
// fast < slow, 0 until both windows are warm. Stop and target levels are
// attached relative to the bar close.
func (s *MACross) Signals(bars []domain.Bar, params map[string]float64) []domain.SignalPoint {
	fast := int(paramOr(params, "fast_period", 10))
	slow := int(paramOr(params, "slow_period", 30))
	stopPct := paramOr(params, "stop_loss_pct", 0)
	takePct := paramOr(params, "take_profit_pct", 0)
	if fast < 1 {
		fast = 1
	}
	if slow <= fast {
		slow = fast + 1
	}

	signals := make([]domain.SignalPoint, len(bars))
	var fastSum, slowSum float64

	for i, bar := range bars {
		signals[i] = domain.SignalPoint{Timestamp: bar.Timestamp}

		fastSum += bar.Close
		if i >= fast {
			fastSum -= bars[i-fast].Close
		}
		slowSum += bar.Close
		if i >= slow {
			slowSum -= bars[i-slow].Close
		}
		if i+1 < slow {
			continue
		}

		fastMA := fastSum / float64(fast)
		slowMA := slowSum / float64(slow)

		direction := 0
		switch {
		case fastMA > slowMA:
			direction = 1
		case fastMA < slowMA:
			direction = -1
		}

		signals[i].Direction = direction
		signals[i].StopLoss, signals[i].TakeProfit = levels(bar.Close, direction, stopPct, takePct)
	}
	return signals
}

var _ Strategy = (*MACross)(nil)
