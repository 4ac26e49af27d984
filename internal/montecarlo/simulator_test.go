package montecarlo

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
)

// originalResult builds a small but realistic completed backtest.
func originalResult() *domain.BacktestResult {
	trades := []domain.Trade{
		{PnL: 200, ReturnPct: 0.02},
		{PnL: -100, ReturnPct: -0.01},
		{PnL: 300, ReturnPct: 0.03},
		{PnL: -150, ReturnPct: -0.015},
		{PnL: 250, ReturnPct: 0.025},
	}
	curve := []domain.EquityPoint{
		{Timestamp: 1000, Equity: 10_000},
		{Timestamp: 2000, Equity: 10_200},
		{Timestamp: 3000, Equity: 10_100},
		{Timestamp: 4000, Equity: 10_400},
		{Timestamp: 5000, Equity: 10_250},
		{Timestamp: 6000, Equity: 10_500},
	}
	return &domain.BacktestResult{
		StrategyName:   "test",
		Params:         map[string]float64{"period": 10},
		InitialCapital: 10_000,
		FinalCapital:   10_500,
		TotalReturnPct: 0.05,
		WinRate:        0.6,
		NumTrades:      len(trades),
		Trades:         trades,
		EquityCurve:    curve,
	}
}

func testSimulator(cfg domain.MonteCarloConfig) *Simulator {
	return New(Options{Config: cfg})
}

func TestRun_NilResult(t *testing.T) {
	sim := testSimulator(domain.DefaultMonteCarloConfig())
	_, err := sim.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilResult)
}

func TestRun_NoTrades(t *testing.T) {
	sim := testSimulator(domain.DefaultMonteCarloConfig())
	_, err := sim.Run(context.Background(), &domain.BacktestResult{})
	assert.ErrorIs(t, err, ErrNoTrades)
}

func TestRun_ParameterSensitivityNeedsCollaborators(t *testing.T) {
	cfg := domain.DefaultMonteCarloConfig()
	cfg.Mode = domain.MCParameterSensitivity
	sim := testSimulator(cfg)

	_, err := sim.Run(context.Background(), originalResult())
	assert.ErrorIs(t, err, ErrMissingCollaborators)
}

func TestRun_ShuffleDistribution(t *testing.T) {
	cfg := domain.DefaultMonteCarloConfig()
	cfg.NSimulations = 200
	sim := testSimulator(cfg)

	res, err := sim.Run(context.Background(), originalResult())
	require.NoError(t, err)

	assert.Equal(t, 200, res.NSimulations)
	assert.Len(t, res.Simulations, 200)

	// Shuffling reorders the same trade set: every simulation compounds to
	// the identical terminal return, only the drawdown path differs.
	first := res.Simulations[0].ReturnPct
	for _, rec := range res.Simulations {
		assert.InDelta(t, first, rec.ReturnPct, 1e-9)
		assert.Equal(t, 0.6, rec.WinRate)
	}
	assert.InDelta(t, 0.0, res.StdReturn, 1e-9)
	assert.Equal(t, 1.0, res.ProbabilityOfProfit)
}

func TestRun_BootstrapSamplesOriginalLength(t *testing.T) {
	cfg := domain.DefaultMonteCarloConfig()
	cfg.Mode = domain.MCReturnBootstrap
	cfg.NSimulations = 100
	sim := testSimulator(cfg)

	original := originalResult()
	res, err := sim.Run(context.Background(), original)
	require.NoError(t, err)
	assert.Equal(t, 100, res.NSimulations)

	// With-replacement sampling produces dispersion across simulations.
	assert.Greater(t, res.StdReturn, 0.0)
}

func TestRun_DeterministicPerSeed(t *testing.T) {
	cfg := domain.DefaultMonteCarloConfig()
	cfg.NSimulations = 50
	cfg.Seed = 123

	first, err := testSimulator(cfg).Run(context.Background(), originalResult())
	require.NoError(t, err)
	second, err := testSimulator(cfg).Run(context.Background(), originalResult())
	require.NoError(t, err)

	require.Equal(t, len(first.Simulations), len(second.Simulations))
	for i := range first.Simulations {
		assert.Equal(t, first.Simulations[i].MaxDrawdown, second.Simulations[i].MaxDrawdown)
	}
	assert.Equal(t, first.MeanReturn, second.MeanReturn)
}

func TestRun_ConfidenceIntervalsOrdered(t *testing.T) {
	cfg := domain.DefaultMonteCarloConfig()
	cfg.Mode = domain.MCReturnBootstrap
	cfg.NSimulations = 300
	sim := testSimulator(cfg)

	res, err := sim.Run(context.Background(), originalResult())
	require.NoError(t, err)
	require.Len(t, res.ConfidenceIntervals, 3)

	for _, ci := range res.ConfidenceIntervals {
		assert.LessOrEqual(t, ci.Lower, ci.Median, "level %v", ci.Level)
		assert.LessOrEqual(t, ci.Median, ci.Upper, "level %v", ci.Level)
	}

	// Wider levels nest inside narrower ones.
	ci90, ci99 := res.ConfidenceIntervals[0], res.ConfidenceIntervals[2]
	assert.GreaterOrEqual(t, ci90.Lower, ci99.Lower)
	assert.LessOrEqual(t, ci90.Upper, ci99.Upper)
}

func TestSimulateBootstrap_SameLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	returns := []float64{0.01, -0.02, 0.03, 0.04, -0.01}

	rec := simulateBootstrap(rng, returns)
	assert.False(t, math.IsNaN(rec.ReturnPct))
	assert.GreaterOrEqual(t, rec.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, rec.WinRate, 1.0)
}

func TestCompound_KnownPath(t *testing.T) {
	rec := compound([]float64{0.10, -0.50, 0.10})

	// 1.0 -> 1.1 -> 0.55 -> 0.605
	assert.InDelta(t, -0.395, rec.ReturnPct, 1e-12)
	assert.InDelta(t, 0.5, rec.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.605, rec.FinalEquity, 1e-12)
}

func TestRuinProbability(t *testing.T) {
	cfg := domain.DefaultMonteCarloConfig()
	cfg.RuinDrawdown = 0.4
	sim := testSimulator(cfg)

	records := []domain.SimulationRecord{
		{ReturnPct: 0.1, MaxDrawdown: 0.1},
		{ReturnPct: -0.5, MaxDrawdown: 0.6},
		{ReturnPct: 0.2, MaxDrawdown: 0.45},
		{ReturnPct: 0.3, MaxDrawdown: 0.2},
	}
	res := sim.aggregate(records, nil)

	assert.InDelta(t, 0.5, res.ProbabilityOfRuin, 1e-12)
	assert.InDelta(t, 0.75, res.ProbabilityOfProfit, 1e-12)
}

func TestAggregate_RobustnessWeights(t *testing.T) {
	sim := testSimulator(domain.DefaultMonteCarloConfig())

	// Identical records: zero dispersion, so every stability is 1 and all
	// returns are profitable.
	records := []domain.SimulationRecord{
		{ReturnPct: 0.1, Sharpe: 1.5, MaxDrawdown: 0.1, WinRate: 0.6},
		{ReturnPct: 0.1, Sharpe: 1.5, MaxDrawdown: 0.1, WinRate: 0.6},
		{ReturnPct: 0.1, Sharpe: 1.5, MaxDrawdown: 0.1, WinRate: 0.6},
	}
	res := sim.aggregate(records, nil)

	assert.InDelta(t, 1.0, res.ReturnStability, 1e-12)
	assert.InDelta(t, 1.0, res.SharpeStability, 1e-12)
	assert.Equal(t, 1.0, res.ParamSensitivityScore, "neutral without perturbation runs")
	assert.InDelta(t, 1.0, res.RobustnessScore, 1e-12)
}

func TestAggregate_Empty(t *testing.T) {
	sim := testSimulator(domain.DefaultMonteCarloConfig())
	res := sim.aggregate(nil, nil)
	assert.Equal(t, 0, res.NSimulations)
	assert.Equal(t, 0.0, res.RobustnessScore)
}

func TestVaRAndCVaR(t *testing.T) {
	sim := testSimulator(domain.DefaultMonteCarloConfig())

	records := make([]domain.SimulationRecord, 100)
	for i := range records {
		// Returns -0.50, -0.49, ..., +0.49.
		records[i] = domain.SimulationRecord{ReturnPct: float64(i-50) / 100}
	}
	res := sim.aggregate(records, nil)

	assert.Less(t, res.VaR95, 0.0)
	assert.LessOrEqual(t, res.CVaR95, res.VaR95, "expected shortfall is at least as bad as VaR")
}
