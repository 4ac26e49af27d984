package montecarlo

import (
	"math"
	"sort"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
)

// Robustness score weights.
const (
	weightReturnStability  = 0.3
	weightSharpeStability  = 0.2
	weightParamSensitivity = 0.2
	weightProbOfProfit     = 0.3
)

// aggregate reduces simulation records to distribution statistics.
// paramReturns is the return subset from parameter-sensitivity simulations,
// used for the sensitivity component of the robustness score.
func (s *Simulator) aggregate(records []domain.SimulationRecord, paramReturns []float64) *domain.MonteCarloResult {
	result := &domain.MonteCarloResult{
		NSimulations: len(records),
		Simulations:  records,
	}
	if len(records) == 0 {
		return result
	}

	returns := make([]float64, len(records))
	sharpes := make([]float64, len(records))
	drawdowns := make([]float64, len(records))
	winRates := make([]float64, len(records))
	for i, r := range records {
		returns[i] = r.ReturnPct
		sharpes[i] = r.Sharpe
		drawdowns[i] = r.MaxDrawdown
		winRates[i] = r.WinRate
	}

	sortedReturns := make([]float64, len(returns))
	copy(sortedReturns, returns)
	sort.Float64s(sortedReturns)

	result.MeanReturn = metrics.Mean(returns)
	result.StdReturn = metrics.SampleStddev(returns)
	result.MedianReturn = metrics.Percentile(sortedReturns, 0.50)
	result.MeanSharpe = metrics.Mean(sharpes)
	result.StdSharpe = metrics.SampleStddev(sharpes)
	result.MeanMaxDrawdown = metrics.Mean(drawdowns)
	result.StdMaxDrawdown = metrics.SampleStddev(drawdowns)
	result.MeanWinRate = metrics.Mean(winRates)

	for _, level := range s.cfg.ConfidenceLevels {
		tail := (1 - level) / 2
		result.ConfidenceIntervals = append(result.ConfidenceIntervals, domain.ConfidenceInterval{
			Level:  level,
			Lower:  metrics.Percentile(sortedReturns, tail),
			Median: result.MedianReturn,
			Upper:  metrics.Percentile(sortedReturns, 1-tail),
		})
	}

	profitable, ruined := 0, 0
	ruin := s.cfg.RuinDrawdown
	if ruin <= 0 {
		ruin = 0.5
	}
	for i := range records {
		if returns[i] > 0 {
			profitable++
		}
		if drawdowns[i] >= ruin {
			ruined++
		}
	}
	result.ProbabilityOfProfit = float64(profitable) / float64(len(records))
	result.ProbabilityOfRuin = float64(ruined) / float64(len(records))

	result.VaR95 = metrics.Percentile(sortedReturns, 0.05)
	worst := len(sortedReturns) / 20
	if worst < 1 {
		worst = 1
	}
	result.CVaR95 = metrics.Mean(sortedReturns[:worst])

	result.ReturnStability = stability(returns)
	result.SharpeStability = stability(sharpes)
	if len(paramReturns) > 0 {
		result.ParamSensitivityScore = stability(paramReturns)
	} else {
		// No parameter perturbation ran; the component is neutral.
		result.ParamSensitivityScore = 1
	}

	result.RobustnessScore = weightReturnStability*result.ReturnStability +
		weightSharpeStability*result.SharpeStability +
		weightParamSensitivity*result.ParamSensitivityScore +
		weightProbOfProfit*result.ProbabilityOfProfit
	return result
}

// stability maps dispersion to [0,1]: 1 - CV/2 clamped.
func stability(xs []float64) float64 {
	cv := metrics.CoefficientOfVariation(xs)
	return clamp01(1 - cv/2)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
