// Package optimize searches a declared parameter space with grid, random or
// genetic search, using repeated backtest invocations as the objective.
package optimize

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

// Hard failures of the top-level API.
var (
	ErrEmptySpace  = errors.New("parameter space is empty")
	ErrNoObjective = errors.New("objective function is required")
)

// Space maps a parameter name to its candidate values.
type Space map[string][]float64

// names returns the parameter names in deterministic (sorted) order.
func (s Space) names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Space) validate() error {
	if len(s) == 0 {
		return ErrEmptySpace
	}
	for name, values := range s {
		if len(values) == 0 {
			return errors.New("parameter " + name + " has no candidate values")
		}
	}
	return nil
}

// Options configures an Optimizer.
type Options struct {
	Config    domain.OptimizationConfig
	Objective Objective
	Logger    *zap.Logger
}

// Optimizer runs a parameter search against an objective function.
// Candidate evaluations are independent and run on a bounded worker pool.
type Optimizer struct {
	cfg       domain.OptimizationConfig
	objective Objective
	logger    *zap.Logger
}

// New creates a new Optimizer.
func New(opts Options) *Optimizer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		cfg:       opts.Config,
		objective: opts.Objective,
		logger:    logger,
	}
}

// Optimize searches the space with the configured method. A search that
// finds no combination satisfying the constraints is a routine outcome:
// the result carries Found=false, not an error.
func (o *Optimizer) Optimize(ctx context.Context, space Space) (*domain.OptimizationResult, error) {
	if o.objective == nil {
		return nil, ErrNoObjective
	}
	if err := space.validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	var result *domain.OptimizationResult
	var err error

	switch o.cfg.Method {
	case domain.MethodRandom:
		result, err = o.runRandom(ctx, space)
	case domain.MethodGenetic:
		result, err = o.runGenetic(ctx, space)
	default:
		result, err = o.runGrid(ctx, space)
	}
	if err != nil {
		return nil, err
	}

	result.RunID = uuid.NewString()
	result.Duration = time.Since(started)
	observability.RecordSweep(string(result.Method), result.Duration.Seconds())
	o.logger.Info("optimization sweep finished",
		zap.String("method", string(result.Method)),
		zap.Int("evaluations", len(result.Evaluations)),
		zap.Bool("found", result.Found),
		zap.Float64("best_score", result.BestScore),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (o *Optimizer) runGrid(ctx context.Context, space Space) (*domain.OptimizationResult, error) {
	combos := combinations(space)
	o.logger.Info("starting grid search",
		zap.Int("parameters", len(space)),
		zap.Int("combinations", len(combos)))

	evals := o.evaluateBatch(ctx, domain.MethodGrid, combos)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.OptimizationResult{Method: domain.MethodGrid, Evaluations: evals}
	selectBest(result, evals)
	return result, nil
}

func (o *Optimizer) runRandom(ctx context.Context, space Space) (*domain.OptimizationResult, error) {
	n := o.cfg.NRandomSamples
	if n <= 0 {
		n = 100
	}
	names := space.names()

	// Each draw owns a seed derived from the master seed and its index so
	// results are reproducible regardless of worker scheduling.
	samples := make([]map[string]float64, n)
	for i := 0; i < n; i++ {
		rng := rand.New(rand.NewSource(o.cfg.Seed + int64(i)))
		params := make(map[string]float64, len(names))
		for _, name := range names {
			values := space[name]
			params[name] = values[rng.Intn(len(values))]
		}
		samples[i] = params
	}

	o.logger.Info("starting random search", zap.Int("samples", n))
	evals := o.evaluateBatch(ctx, domain.MethodRandom, samples)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.OptimizationResult{Method: domain.MethodRandom, Evaluations: evals}
	selectBest(result, evals)
	return result, nil
}

// evaluateBatch scores parameter sets on a bounded worker pool. Results are
// written index-addressed, so the evaluation log keeps the input order and
// no shared state crosses worker boundaries.
func (o *Optimizer) evaluateBatch(ctx context.Context, method domain.OptimizationMethod, paramSets []map[string]float64) []domain.Evaluation {
	workers := o.cfg.NWorkers
	if workers <= 0 {
		workers = 1
	}

	evals := make([]domain.Evaluation, len(paramSets))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, params := range paramSets {
		wg.Add(1)
		go func(idx int, ps map[string]float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				evals[idx] = domain.Evaluation{Params: ps, RejectReason: domain.RejectReasonError}
				return
			}
			evals[idx] = o.evaluate(ctx, method, ps)
		}(i, params)
	}
	wg.Wait()
	return evals
}

// evaluate scores a single combination. Failures are isolated: an objective
// error rejects the evaluation without aborting the surrounding sweep.
func (o *Optimizer) evaluate(ctx context.Context, method domain.OptimizationMethod, params map[string]float64) domain.Evaluation {
	score, res, err := o.objective(ctx, params)
	if err != nil {
		o.logger.Warn("evaluation failed",
			zap.String("method", string(method)),
			zap.Any("params", params),
			zap.Error(err))
		observability.RecordEvaluation(string(method), "error")
		return domain.Evaluation{Params: params, RejectReason: domain.RejectReasonError}
	}

	eval := domain.Evaluation{Params: params, Score: score, Result: res}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		eval.RejectReason = domain.RejectReasonBadScore
	} else {
		eval.RejectReason = checkConstraints(o.cfg.Constraints, res)
	}

	if eval.RejectReason == "" {
		eval.Accepted = true
		observability.RecordEvaluation(string(method), "accepted")
	} else {
		observability.RecordEvaluation(string(method), "rejected")
	}
	return eval
}

// checkConstraints returns a rejection reason code, or "" when the result
// is acceptable.
func checkConstraints(c domain.Constraints, res *domain.BacktestResult) string {
	if res == nil {
		return domain.RejectReasonError
	}
	if c.MinTrades > 0 && res.NumTrades < c.MinTrades {
		return domain.RejectReasonMinTrades
	}
	if c.MaxDrawdown > 0 && res.MaxDrawdown > c.MaxDrawdown {
		return domain.RejectReasonMaxDrawdown
	}
	if c.MinWinRate > 0 && res.WinRate < c.MinWinRate {
		return domain.RejectReasonMinWinRate
	}
	return ""
}

// selectBest fills the best-candidate fields from accepted evaluations.
func selectBest(result *domain.OptimizationResult, evals []domain.Evaluation) {
	for _, eval := range evals {
		if !eval.Accepted {
			continue
		}
		if !result.Found || eval.Score > result.BestScore {
			result.Found = true
			result.BestScore = eval.Score
			result.BestParams = eval.Params
			result.BestResult = eval.Result
		}
	}
}

// combinations expands the Cartesian product of all candidate lists, in
// sorted parameter-name order.
func combinations(space Space) []map[string]float64 {
	names := space.names()

	total := 1
	for _, name := range names {
		total *= len(space[name])
	}

	combos := make([]map[string]float64, 0, total)
	indices := make([]int, len(names))
	for {
		params := make(map[string]float64, len(names))
		for i, name := range names {
			params[name] = space[name][indices[i]]
		}
		combos = append(combos, params)

		pos := len(names) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(space[names[pos]]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos
		}
	}
}
