package walkforward

import (
	"math"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
)

// aggregate stitches the out-of-sample equity curves into one combined curve
// and derives the cross-window robustness statistics.
func (a *Analyzer) aggregate(results []domain.WindowResult) *domain.WalkForwardResult {
	out := &domain.WalkForwardResult{
		Windows:    results,
		NumWindows: len(results),
	}

	var (
		oosReturns   []float64
		degradations []float64
		combined     []domain.EquityPoint
		trades       []domain.Trade
	)
	running := 1.0
	for _, wr := range results {
		if wr.Skipped {
			out.NumSkipped++
			continue
		}
		res := wr.OutSampleResult
		oosReturns = append(oosReturns, res.TotalReturnPct)
		degradations = append(degradations, wr.Degradation)
		trades = append(trades, res.Trades...)

		// Normalize each window's curve to the compounded level so the
		// stitched curve is continuous across window boundaries.
		if res.InitialCapital > 0 {
			for _, p := range res.EquityCurve {
				combined = append(combined, domain.EquityPoint{
					Timestamp: p.Timestamp,
					Equity:    running * (p.Equity / res.InitialCapital),
				})
			}
		}
		running *= 1 + res.TotalReturnPct
	}

	out.CombinedEquityCurve = combined
	if len(oosReturns) > 0 {
		out.CombinedReturnPct = running - 1
		out.CombinedMetrics = metrics.Compute(combinedResult(combined, trades, running), a.mopts)
		out.MeanDegradation = metrics.Mean(degradations)
		out.ConsistencyScore = consistency(oosReturns)
	}
	out.ParameterStability = parameterStability(results)
	return out
}

// combinedResult wraps the stitched curve in a synthetic backtest result so
// the standard performance derivation applies to the whole out-of-sample path.
func combinedResult(curve []domain.EquityPoint, trades []domain.Trade, final float64) *domain.BacktestResult {
	res := &domain.BacktestResult{
		InitialCapital: 1,
		FinalCapital:   final,
		TotalReturnPct: final - 1,
		EquityCurve:    curve,
		Trades:         trades,
		NumTrades:      len(trades),
	}

	peak := math.Inf(-1)
	maxDD := 0.0
	res.DrawdownCurve = make([]domain.DrawdownPoint, len(curve))
	for i, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (p.Equity - peak) / peak
		}
		res.DrawdownCurve[i] = domain.DrawdownPoint{Timestamp: p.Timestamp, Drawdown: dd}
		if -dd > maxDD {
			maxDD = -dd
		}
	}
	res.PeakCapital = peak
	res.MaxDrawdown = maxDD

	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	if len(trades) > 0 {
		res.WinRate = float64(wins) / float64(len(trades))
	}
	return res
}

// consistency measures how uniform the out-of-sample returns are across
// windows: 1 means identical returns, 0 means dispersion dominates.
func consistency(oosReturns []float64) float64 {
	if len(oosReturns) < 2 {
		return 1
	}
	abs := make([]float64, len(oosReturns))
	for i, r := range oosReturns {
		abs[i] = math.Abs(r)
	}
	meanAbs := metrics.Mean(abs)
	if meanAbs == 0 {
		return 1
	}
	score := 1 - metrics.SampleStddev(oosReturns)/meanAbs
	return math.Max(0, math.Min(1, score))
}

// parameterStability reports, per parameter, the coefficient of variation of
// the value chosen across windows. Lower means the optimum is more stable.
func parameterStability(results []domain.WindowResult) map[string]float64 {
	values := make(map[string][]float64)
	for _, wr := range results {
		if wr.Skipped {
			continue
		}
		for name, v := range wr.BestParams {
			values[name] = append(values[name], v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	stability := make(map[string]float64, len(values))
	for name, vs := range values {
		stability[name] = metrics.CoefficientOfVariation(vs)
	}
	return stability
}
