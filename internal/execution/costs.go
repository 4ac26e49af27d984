// Package execution models fill costs: slippage and commission.
// All functions are pure and deterministic given their inputs.
package execution

import "strategy-lab/internal/domain"

// CostModel computes slippage and fees for simulated fills.
type CostModel struct {
	BaseBps         float64 // fixed component, basis points of price
	ImpactCoeff     float64 // multiplied by order value
	VolatilityCoeff float64 // multiplied by relative volatility
	StopLossBps     float64 // extra basis points on stop-loss fills
	MakerRate       float64
	TakerRate       float64
}

// NewCostModel builds a cost model from a backtest configuration.
func NewCostModel(cfg domain.BacktestConfig) CostModel {
	return CostModel{
		BaseBps:         cfg.SlippageBps,
		ImpactCoeff:     cfg.ImpactCoeff,
		VolatilityCoeff: cfg.VolatilityCoeff,
		StopLossBps:     cfg.StopLossSlippageBps,
		MakerRate:       cfg.MakerFeeRate,
		TakerRate:       cfg.TakerFeeRate,
	}
}

// Slippage returns the per-unit price degradation for an order of the given
// size. volatility is the relative volatility of the instrument (rolling
// stddev of returns). The result is the sum of a fixed bps-of-price
// component, an order-value-proportional component, a volatility-proportional
// component and, for stop-loss fills, an additional fixed bps component.
// Every component is non-negative; zero notional costs zero.
func (m CostModel) Slippage(price, quantity, volatility float64, isStopLoss bool) float64 {
	if price <= 0 || quantity <= 0 {
		return 0
	}

	base := price * m.BaseBps / 10_000
	impact := price * m.ImpactCoeff * price * quantity
	vol := price * m.VolatilityCoeff * volatility
	if vol < 0 {
		vol = 0
	}

	s := base + impact + vol
	if isStopLoss {
		s += price * m.StopLossBps / 10_000
	}
	return s
}

// Fee returns the commission on the given notional. Maker and taker orders
// are charged at their respective rates. Zero notional costs zero.
func (m CostModel) Fee(notional float64, isMaker bool) float64 {
	if notional <= 0 {
		return 0
	}
	if isMaker {
		return notional * m.MakerRate
	}
	return notional * m.TakerRate
}
