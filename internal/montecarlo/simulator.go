// Package montecarlo stress-tests a completed backtest result by generating
// synthetic variants: trade-order shuffling, return bootstrapping and
// strategy parameter perturbation.
package montecarlo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/strategy"
)

// Hard failures of the top-level API.
var (
	ErrNilResult            = errors.New("original backtest result is required")
	ErrNoTrades             = errors.New("original result has no trades to resample")
	ErrNoReturns            = errors.New("original equity curve is too short to bootstrap")
	ErrMissingCollaborators = errors.New("parameter sensitivity requires engine, strategy and bars")
)

// Options configures a Simulator. Engine, Strategy and Bars are only
// required for parameter-sensitivity (and combined) mode.
type Options struct {
	Config   domain.MonteCarloConfig
	Logger   *zap.Logger
	Engine   *backtest.Engine
	Strategy strategy.Strategy
	Bars     []domain.Bar
}

// Simulator generates synthetic variants of a backtest result and reports
// the resulting outcome distribution.
type Simulator struct {
	cfg    domain.MonteCarloConfig
	logger *zap.Logger
	engine *backtest.Engine
	strat  strategy.Strategy
	bars   []domain.Bar
}

// New creates a new Simulator.
func New(opts Options) *Simulator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		cfg:    opts.Config,
		logger: logger,
		engine: opts.Engine,
		strat:  opts.Strategy,
		bars:   opts.Bars,
	}
}

// Run generates the configured number of simulations from the original
// result and aggregates their distribution. Simulations are independent;
// each owns an RNG seeded from the master seed plus its index, so output is
// reproducible regardless of worker scheduling.
func (s *Simulator) Run(ctx context.Context, original *domain.BacktestResult) (*domain.MonteCarloResult, error) {
	if original == nil {
		return nil, ErrNilResult
	}
	n := s.cfg.NSimulations
	if n <= 0 {
		n = 1000
	}

	modes, err := s.simModes(original)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting monte carlo run",
		zap.String("mode", string(s.cfg.Mode)),
		zap.Int("simulations", n))

	tradeReturns := tradeReturns(original.Trades)
	curveReturns := equityReturns(original.EquityCurve)

	type simOut struct {
		rec  domain.SimulationRecord
		mode domain.MonteCarloMode
		ok   bool
	}
	outs := make([]simOut, n)

	workers := s.cfg.NWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			mode := modes[idx%len(modes)]
			rng := rand.New(rand.NewSource(s.cfg.Seed + int64(idx)))

			var rec domain.SimulationRecord
			var ok bool
			switch mode {
			case domain.MCTradeRandomization:
				rec, ok = simulateShuffle(rng, tradeReturns, original.WinRate), true
			case domain.MCReturnBootstrap:
				rec, ok = simulateBootstrap(rng, curveReturns), true
			case domain.MCParameterSensitivity:
				rec, ok = s.simulatePerturbation(ctx, rng, original)
			}
			rec.Index = idx
			outs[idx] = simOut{rec: rec, mode: mode, ok: ok}
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]domain.SimulationRecord, 0, n)
	var paramReturns []float64
	for _, out := range outs {
		if !out.ok {
			continue
		}
		records = append(records, out.rec)
		if out.mode == domain.MCParameterSensitivity {
			paramReturns = append(paramReturns, out.rec.ReturnPct)
		}
	}
	observability.RecordSimulations(string(s.cfg.Mode), len(records))

	result := s.aggregate(records, paramReturns)
	result.RunID = uuid.NewString()
	result.Mode = s.cfg.Mode

	s.logger.Info("monte carlo run finished",
		zap.Int("simulations", len(records)),
		zap.Float64("mean_return", result.MeanReturn),
		zap.Float64("probability_of_profit", result.ProbabilityOfProfit),
		zap.Float64("robustness", result.RobustnessScore))
	return result, nil
}

// simModes resolves which generation modes participate and validates that
// the original result and collaborators can support them.
func (s *Simulator) simModes(original *domain.BacktestResult) ([]domain.MonteCarloMode, error) {
	hasCollaborators := s.engine != nil && s.strat != nil && len(s.bars) > 0

	switch s.cfg.Mode {
	case domain.MCReturnBootstrap:
		if len(original.EquityCurve) < 2 {
			return nil, ErrNoReturns
		}
		return []domain.MonteCarloMode{domain.MCReturnBootstrap}, nil
	case domain.MCParameterSensitivity:
		if !hasCollaborators {
			return nil, ErrMissingCollaborators
		}
		return []domain.MonteCarloMode{domain.MCParameterSensitivity}, nil
	case domain.MCCombined:
		if len(original.Trades) == 0 {
			return nil, ErrNoTrades
		}
		if len(original.EquityCurve) < 2 {
			return nil, ErrNoReturns
		}
		modes := []domain.MonteCarloMode{domain.MCTradeRandomization, domain.MCReturnBootstrap}
		if hasCollaborators {
			modes = append(modes, domain.MCParameterSensitivity)
		}
		return modes, nil
	default:
		if len(original.Trades) == 0 {
			return nil, ErrNoTrades
		}
		return []domain.MonteCarloMode{domain.MCTradeRandomization}, nil
	}
}

// simulateShuffle reorders the original per-trade returns and compounds
// capital sequentially in the new order.
func simulateShuffle(rng *rand.Rand, returns []float64, winRate float64) domain.SimulationRecord {
	shuffled := make([]float64, len(returns))
	for i, j := range rng.Perm(len(returns)) {
		shuffled[i] = returns[j]
	}
	rec := compound(shuffled)
	rec.WinRate = winRate // the trade set is unchanged, only its order
	return rec
}

// simulateBootstrap resamples the original equity-curve returns with
// replacement into a synthetic path of the same length.
func simulateBootstrap(rng *rand.Rand, returns []float64) domain.SimulationRecord {
	sampled := make([]float64, len(returns))
	for i := range sampled {
		sampled[i] = returns[rng.Intn(len(returns))]
	}
	rec := compound(sampled)

	wins := 0
	for _, r := range sampled {
		if r > 0 {
			wins++
		}
	}
	if len(sampled) > 0 {
		rec.WinRate = float64(wins) / float64(len(sampled))
	}
	return rec
}

// simulatePerturbation re-runs the engine with uniformly perturbed strategy
// parameters and regenerated signals.
func (s *Simulator) simulatePerturbation(ctx context.Context, rng *rand.Rand, original *domain.BacktestResult) (domain.SimulationRecord, bool) {
	params := make(map[string]float64, len(original.Params))
	for name, v := range original.Params {
		jitter := 1 + (rng.Float64()*2-1)*s.cfg.ParamVariationPct
		params[name] = v * jitter
	}

	signals := s.strat.Signals(s.bars, params)
	res, err := s.engine.Run(ctx, s.bars, signals, original.StrategyName, params)
	if err != nil {
		s.logger.Warn("perturbation run failed", zap.Error(err))
		return domain.SimulationRecord{}, false
	}

	m := metrics.Compute(res, metrics.Options{})
	return domain.SimulationRecord{
		ReturnPct:   res.TotalReturnPct,
		Sharpe:      m.SharpeRatio,
		MaxDrawdown: res.MaxDrawdown,
		WinRate:     res.WinRate,
		FinalEquity: res.FinalCapital,
	}, true
}

// compound walks a return sequence, compounding normalized equity, and
// derives path statistics.
func compound(returns []float64) domain.SimulationRecord {
	eq := 1.0
	peak := 1.0
	maxDD := 0.0
	for _, r := range returns {
		eq *= 1 + r
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			dd := (peak - eq) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	sharpe := 0.0
	if std := metrics.SampleStddev(returns); std > 0 {
		sharpe = metrics.Mean(returns) / std * math.Sqrt(float64(len(returns)))
	}

	return domain.SimulationRecord{
		ReturnPct:   eq - 1,
		Sharpe:      sharpe,
		MaxDrawdown: maxDD,
		FinalEquity: eq,
	}
}

func tradeReturns(trades []domain.Trade) []float64 {
	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.ReturnPct
	}
	return returns
}

func equityReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Equity > 0 {
			returns = append(returns, curve[i].Equity/curve[i-1].Equity-1)
		}
	}
	return returns
}
