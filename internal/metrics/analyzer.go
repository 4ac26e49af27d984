// Package metrics derives risk/return statistics from backtest results.
// All computations are pure transformations of a completed BacktestResult.
package metrics

import (
	"math"
	"time"

	"strategy-lab/internal/domain"
)

const msPerDay = int64(24 * 60 * 60 * 1000)

// Options configures metric derivation.
type Options struct {
	// RiskFreeRate is the annualized risk-free rate for excess returns.
	RiskFreeRate float64

	// PeriodsPerYear annualizes per-day statistics. Zero means 252.
	PeriodsPerYear float64
}

// Compute derives the full statistic superset from a backtest result.
func Compute(res *domain.BacktestResult, opts Options) *domain.PerformanceMetrics {
	periods := opts.PeriodsPerYear
	if periods <= 0 {
		periods = 252
	}

	m := &domain.PerformanceMetrics{
		TotalReturnPct: res.TotalReturnPct,
		MaxDrawdown:    res.MaxDrawdown,
		WinRate:        res.WinRate,
		NumTrades:      res.NumTrades,
	}

	daily := dailyReturns(res.EquityCurve)
	m.AnnualizedReturnPct = annualize(res)
	m.AnnualizedVol = SampleStddev(daily) * math.Sqrt(periods)
	m.SharpeRatio = sharpe(daily, opts.RiskFreeRate, periods)
	m.SortinoRatio = sortino(daily, opts.RiskFreeRate, periods)

	if res.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualizedReturnPct / res.MaxDrawdown
	}

	m.MaxDrawdownDuration = maxDrawdownDuration(res.DrawdownCurve)
	m.UlcerIndex = ulcerIndex(res.DrawdownCurve)
	m.KRatio = kRatio(res.EquityCurve)

	fillTradeStats(m, res.Trades)
	return m
}

// dailyReturns resamples the per-bar equity curve to one sample per calendar
// day (the day's last equity) and returns day-over-day returns.
func dailyReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}

	var days []float64
	lastDay := curve[0].Timestamp / msPerDay
	lastEq := curve[0].Equity
	for _, p := range curve[1:] {
		day := p.Timestamp / msPerDay
		if day != lastDay {
			days = append(days, lastEq)
			lastDay = day
		}
		lastEq = p.Equity
	}
	days = append(days, lastEq)

	rets := make([]float64, 0, len(days))
	for i := 1; i < len(days); i++ {
		if days[i-1] > 0 {
			rets = append(rets, days[i]/days[i-1]-1)
		}
	}
	return rets
}

func annualize(res *domain.BacktestResult) float64 {
	elapsed := res.EndTime - res.StartTime
	if elapsed <= 0 {
		return res.TotalReturnPct
	}
	years := float64(elapsed) / float64(365*msPerDay)
	if years <= 0 || res.TotalReturnPct <= -1 {
		return res.TotalReturnPct
	}
	return math.Pow(1+res.TotalReturnPct, 1/years) - 1
}

func sharpe(daily []float64, riskFree, periods float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	std := SampleStddev(daily)
	if std == 0 {
		return 0
	}
	excess := make([]float64, len(daily))
	for i, r := range daily {
		excess[i] = r - riskFree/periods
	}
	return math.Sqrt(periods) * Mean(excess) / std
}

// sortino replaces total volatility with the stddev of the downside-return
// subset.
func sortino(daily []float64, riskFree, periods float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	var downside []float64
	for _, r := range daily {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	std := SampleStddev(downside)
	if std == 0 {
		return 0
	}
	excess := make([]float64, len(daily))
	for i, r := range daily {
		excess[i] = r - riskFree/periods
	}
	return math.Sqrt(periods) * Mean(excess) / std
}

// maxDrawdownDuration returns the longest contiguous run of curve points
// with drawdown below zero.
func maxDrawdownDuration(curve []domain.DrawdownPoint) int {
	longest, current := 0, 0
	for _, p := range curve {
		if p.Drawdown < 0 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// ulcerIndex is the root mean square of percentage drawdown.
func ulcerIndex(curve []domain.DrawdownPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, p := range curve {
		pct := p.Drawdown * 100
		sumSq += pct * pct
	}
	return math.Sqrt(sumSq / float64(len(curve)))
}

// kRatio measures equity curve consistency: regression slope over residual
// standard error, scaled by sqrt(n).
func kRatio(curve []domain.EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}
	ys := make([]float64, len(curve))
	for i, p := range curve {
		ys[i] = p.Equity
	}
	slope, rse := linearRegression(ys)
	if rse == 0 {
		return 0
	}
	return slope / rse * math.Sqrt(float64(len(ys)))
}

func fillTradeStats(m *domain.PerformanceMetrics, trades []domain.Trade) {
	if len(trades) == 0 {
		return
	}

	var sumWin, sumLoss float64
	var wins, losses int
	var sumPnL, sumMAE, sumMFE float64
	largestLoss := 0.0

	for _, t := range trades {
		sumPnL += t.PnL
		sumMAE += t.MAE
		sumMFE += t.MFE
		if t.PnL > 0 {
			wins++
			sumWin += t.PnL
		} else {
			losses++
			sumLoss += -t.PnL
		}
		if -t.PnL > largestLoss {
			largestLoss = -t.PnL
		}
	}

	n := float64(len(trades))
	m.Expectancy = sumPnL / n
	m.AvgMAE = sumMAE / n
	m.AvgMFE = sumMFE / n

	if sumLoss > 0 {
		m.ProfitFactor = sumWin / sumLoss
	} else if sumWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	winRate := float64(wins) / n
	if losses > 0 && wins > 0 {
		avgWin := sumWin / float64(wins)
		avgLoss := sumLoss / float64(losses)
		m.PayoffRatio = avgWin / avgLoss
		m.KellyFraction = winRate - (1-winRate)/m.PayoffRatio
	} else if wins > 0 {
		// No losing trades: full allocation is optimal by the formula.
		m.KellyFraction = winRate
	}

	m.OptimalF = optimalF(trades, largestLoss)
	m.MonthlyWinRate = monthlyWinRate(trades)
}

// optimalF searches a fixed 100-step grid for the fraction maximizing the
// terminal wealth relative. The search aborts (TWR treated as 0) for any f
// where a single trade's holding-period return drops to zero or below.
func optimalF(trades []domain.Trade, largestLoss float64) float64 {
	if largestLoss <= 0 {
		return 0
	}

	bestF, bestTWR := 0.0, 0.0
	for step := 1; step <= 100; step++ {
		f := float64(step) / 100
		twr := 1.0
		for _, t := range trades {
			hpr := 1 + f*t.PnL/largestLoss
			if hpr <= 0 {
				twr = 0
				break
			}
			twr *= hpr
		}
		if twr > bestTWR {
			bestTWR = twr
			bestF = f
		}
	}
	return bestF
}

// monthlyWinRate is the fraction of calendar months (by exit time, UTC)
// with positive summed PnL.
func monthlyWinRate(trades []domain.Trade) float64 {
	byMonth := make(map[int]float64)
	for _, t := range trades {
		ts := time.UnixMilli(t.ExitTime).UTC()
		key := ts.Year()*12 + int(ts.Month())
		byMonth[key] += t.PnL
	}
	if len(byMonth) == 0 {
		return 0
	}
	positive := 0
	for _, pnl := range byMonth {
		if pnl > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(byMonth))
}
