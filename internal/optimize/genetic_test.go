package optimize

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
)

func geneticConfig() domain.OptimizationConfig {
	cfg := domain.DefaultOptimizationConfig()
	cfg.Method = domain.MethodGenetic
	cfg.PopulationSize = 12
	cfg.NGenerations = 10
	cfg.ConvergenceWindow = 3
	cfg.Seed = 99
	return cfg
}

func TestGenetic_CurveNonDecreasing(t *testing.T) {
	opt := newTestOptimizer(geneticConfig(), quadObjective)

	res, err := opt.Optimize(context.Background(), Space{
		"period":    {5, 8, 10, 12, 20},
		"threshold": {0.01, 0.02, 0.05},
	})
	require.NoError(t, err)
	require.True(t, res.Found)
	require.NotEmpty(t, res.ConvergenceCurve)

	for i := 1; i < len(res.ConvergenceCurve); i++ {
		assert.GreaterOrEqual(t, res.ConvergenceCurve[i], res.ConvergenceCurve[i-1],
			"cumulative best must never regress (generation %d)", i)
	}
}

func TestGenetic_ConvergesOnStableOptimum(t *testing.T) {
	// Constant positive landscape: the best score is flat immediately, so
	// the trailing-window criterion fires well before the generation cap.
	obj := func(ctx context.Context, params map[string]float64) (float64, *domain.BacktestResult, error) {
		return 1.0, &domain.BacktestResult{NumTrades: 20, WinRate: 0.6}, nil
	}
	opt := newTestOptimizer(geneticConfig(), obj)

	res, err := opt.Optimize(context.Background(), Space{"period": {5, 10, 20}})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Less(t, len(res.ConvergenceCurve), 10, "should stop before the generation cap")
}

func TestGenetic_DeterministicPerSeed(t *testing.T) {
	space := Space{
		"period":    {5, 8, 10, 12, 20},
		"threshold": {0.01, 0.02, 0.05},
	}

	first, err := newTestOptimizer(geneticConfig(), quadObjective).Optimize(context.Background(), space)
	require.NoError(t, err)
	second, err := newTestOptimizer(geneticConfig(), quadObjective).Optimize(context.Background(), space)
	require.NoError(t, err)

	assert.Equal(t, first.BestParams, second.BestParams)
	assert.Equal(t, first.ConvergenceCurve, second.ConvergenceCurve)
	require.Equal(t, len(first.Evaluations), len(second.Evaluations))
	for i := range first.Evaluations {
		assert.Equal(t, first.Evaluations[i].Params, second.Evaluations[i].Params)
	}
}

func TestCrossover_SplitsSortedGenes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p1 := map[string]float64{"a": 1, "b": 1, "c": 1}
	p2 := map[string]float64{"a": 2, "b": 2, "c": 2}

	child := crossover(p1, p2, []string{"a", "b", "c"}, rng)
	require.Len(t, child, 3)
	// Genes before the split come from p1, after it from p2: the child is
	// monotone over the sorted gene order.
	assert.Equal(t, 1.0, child["a"])
	assert.Equal(t, 2.0, child["c"])
}

func TestMutate_RateZeroAndOne(t *testing.T) {
	space := Space{"a": {1, 2, 3}}
	names := []string{"a"}
	rng := rand.New(rand.NewSource(1))

	ind := map[string]float64{"a": 99} // off-grid marker
	mutate(ind, space, names, 0, rng)
	assert.Equal(t, 99.0, ind["a"], "zero rate never mutates")

	mutate(ind, space, names, 1, rng)
	assert.Contains(t, []float64{1, 2, 3}, ind["a"], "full rate re-draws from candidates")
}

func TestTournament_PrefersAccepted(t *testing.T) {
	evals := []domain.Evaluation{
		{Params: map[string]float64{"a": 1}, Score: 5, Accepted: true},
		{Params: map[string]float64{"a": 2}, RejectReason: domain.RejectReasonMinTrades},
		{Params: map[string]float64{"a": 3}, RejectReason: domain.RejectReasonMinTrades},
	}
	rng := rand.New(rand.NewSource(3))

	// Over many draws the accepted individual must dominate selections.
	wins := 0
	for i := 0; i < 100; i++ {
		if tournament(evals, rng)["a"] == 1 {
			wins++
		}
	}
	assert.Greater(t, wins, 50)
}

func TestConverged(t *testing.T) {
	assert.False(t, converged([]float64{1, 1}, 3), "window not filled")
	assert.False(t, converged([]float64{math.Inf(-1), 1, 1}, 3), "no accepted candidate yet")
	assert.True(t, converged([]float64{0.5, 1, 1, 1}, 3))
	assert.False(t, converged([]float64{1, 2, 4}, 3))
}
