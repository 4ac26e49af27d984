package optimize

import (
	"context"
	"fmt"
	"math"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/strategy"
)

// Objective evaluates one parameter combination, returning a score to
// maximize and the backing backtest result.
type Objective func(ctx context.Context, params map[string]float64) (float64, *domain.BacktestResult, error)

// ScoreFunc maps derived performance metrics to a fitness score.
type ScoreFunc func(*domain.PerformanceMetrics) float64

// Named objective functions.
var scoreFuncs = map[string]ScoreFunc{
	"sharpe":  func(m *domain.PerformanceMetrics) float64 { return m.SharpeRatio },
	"sortino": func(m *domain.PerformanceMetrics) float64 { return m.SortinoRatio },
	"calmar":  func(m *domain.PerformanceMetrics) float64 { return m.CalmarRatio },
	"total_return": func(m *domain.PerformanceMetrics) float64 {
		return m.TotalReturnPct
	},
	"profit_factor": func(m *domain.PerformanceMetrics) float64 {
		if math.IsInf(m.ProfitFactor, 1) {
			return 1000
		}
		return m.ProfitFactor
	},
	// balanced blends risk-adjusted return, hit rate and drawdown recovery.
	"balanced": func(m *domain.PerformanceMetrics) float64 {
		return 0.4*math.Max(0, m.SharpeRatio) + 0.3*m.WinRate + 0.3*math.Max(0, m.CalmarRatio)
	},
}

// ScoreByName resolves a named objective function.
func ScoreByName(name string) (ScoreFunc, error) {
	fn, ok := scoreFuncs[name]
	if !ok {
		return nil, fmt.Errorf("unknown objective %q", name)
	}
	return fn, nil
}

// BacktestObjective builds the standard objective: generate signals with the
// candidate parameters, run the engine, derive metrics, score them.
func BacktestObjective(engine *backtest.Engine, strat strategy.Strategy, bars []domain.Bar, score ScoreFunc, mopts metrics.Options) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, *domain.BacktestResult, error) {
		signals := strat.Signals(bars, params)
		res, err := engine.Run(ctx, bars, signals, strat.Name(), params)
		if err != nil {
			return 0, nil, err
		}
		return score(metrics.Compute(res, mopts)), res, nil
	}
}
