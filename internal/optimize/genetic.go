package optimize

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
)

const tournamentSize = 3

// convergenceCV is the trailing-window coefficient of variation of the
// best-score curve below which the search is declared converged.
const convergenceCV = 0.01

// runGenetic evolves a population of parameter tuples. Genetic operations
// run single-threaded on the master RNG; only fitness evaluations are
// parallel, so evolution is reproducible regardless of worker scheduling.
func (o *Optimizer) runGenetic(ctx context.Context, space Space) (*domain.OptimizationResult, error) {
	popSize := o.cfg.PopulationSize
	if popSize <= 0 {
		popSize = 50
	}
	generations := o.cfg.NGenerations
	if generations <= 0 {
		generations = 20
	}
	window := o.cfg.ConvergenceWindow
	if window <= 0 {
		window = 5
	}
	eliteCount := int(float64(popSize) * o.cfg.ElitismPct)
	if o.cfg.ElitismPct > 0 && eliteCount < 1 {
		eliteCount = 1
	}

	names := space.names()
	rng := rand.New(rand.NewSource(o.cfg.Seed))

	o.logger.Info("starting genetic search",
		zap.Int("population", popSize),
		zap.Int("generations", generations),
		zap.Float64("mutation_rate", o.cfg.MutationRate),
		zap.Float64("crossover_rate", o.cfg.CrossoverRate),
		zap.Int("elites", eliteCount))

	population := make([]map[string]float64, popSize)
	for i := range population {
		population[i] = randomIndividual(space, names, rng)
	}

	result := &domain.OptimizationResult{Method: domain.MethodGenetic}

	for gen := 0; gen < generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		evals := o.evaluateBatch(ctx, domain.MethodGenetic, population)
		result.Evaluations = append(result.Evaluations, evals...)
		selectBest(result, evals)

		// Cumulative best per generation; with elitism this curve is
		// non-decreasing.
		curvePoint := math.Inf(-1)
		if result.Found {
			curvePoint = result.BestScore
		}
		result.ConvergenceCurve = append(result.ConvergenceCurve, curvePoint)

		o.logger.Debug("generation complete",
			zap.Int("generation", gen+1),
			zap.Float64("best_score", curvePoint))

		if converged(result.ConvergenceCurve, window) {
			result.Converged = true
			o.logger.Info("genetic search converged", zap.Int("generation", gen+1))
			break
		}
		if gen == generations-1 {
			break
		}

		population = o.nextGeneration(space, names, evals, popSize, eliteCount, rng)
	}

	return result, nil
}

// nextGeneration applies elitism, tournament selection, single-point
// crossover and per-gene mutation.
func (o *Optimizer) nextGeneration(space Space, names []string, evals []domain.Evaluation, popSize, eliteCount int, rng *rand.Rand) []map[string]float64 {
	next := make([]map[string]float64, 0, popSize)

	// Elites: top accepted individuals carried over unchanged.
	ranked := make([]domain.Evaluation, 0, len(evals))
	for _, e := range evals {
		if e.Accepted {
			ranked = append(ranked, e)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	for i := 0; i < eliteCount && i < len(ranked); i++ {
		next = append(next, cloneParams(ranked[i].Params))
	}

	for len(next) < popSize {
		p1 := tournament(evals, rng)
		p2 := tournament(evals, rng)

		var child map[string]float64
		if rng.Float64() < o.cfg.CrossoverRate {
			child = crossover(p1, p2, names, rng)
		} else {
			child = cloneParams(p1)
		}
		mutate(child, space, names, o.cfg.MutationRate, rng)
		next = append(next, child)
	}
	return next
}

// tournament picks the fittest of tournamentSize random contestants.
// Rejected evaluations compete with -Inf fitness.
func tournament(evals []domain.Evaluation, rng *rand.Rand) map[string]float64 {
	best := evals[rng.Intn(len(evals))]
	bestScore := fitness(best)
	for i := 1; i < tournamentSize; i++ {
		c := evals[rng.Intn(len(evals))]
		if fitness(c) > bestScore {
			best = c
			bestScore = fitness(c)
		}
	}
	return best.Params
}

func fitness(e domain.Evaluation) float64 {
	if !e.Accepted {
		return math.Inf(-1)
	}
	return e.Score
}

// crossover splits the sorted gene order at a single random point.
func crossover(p1, p2 map[string]float64, names []string, rng *rand.Rand) map[string]float64 {
	child := make(map[string]float64, len(names))
	point := 1
	if len(names) > 1 {
		point = 1 + rng.Intn(len(names)-1)
	}
	for i, name := range names {
		if i < point {
			child[name] = p1[name]
		} else {
			child[name] = p2[name]
		}
	}
	return child
}

// mutate re-draws each gene from its candidate list at the mutation rate.
func mutate(individual map[string]float64, space Space, names []string, rate float64, rng *rand.Rand) {
	for _, name := range names {
		if rng.Float64() < rate {
			values := space[name]
			individual[name] = values[rng.Intn(len(values))]
		}
	}
}

func randomIndividual(space Space, names []string, rng *rand.Rand) map[string]float64 {
	params := make(map[string]float64, len(names))
	for _, name := range names {
		values := space[name]
		params[name] = values[rng.Intn(len(values))]
	}
	return params
}

func cloneParams(params map[string]float64) map[string]float64 {
	clone := make(map[string]float64, len(params))
	for k, v := range params {
		clone[k] = v
	}
	return clone
}

// converged reports whether the trailing window of the best-score curve has
// a coefficient of variation below 1%.
func converged(curve []float64, window int) bool {
	if len(curve) < window {
		return false
	}
	tail := curve[len(curve)-window:]
	for _, v := range tail {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return metrics.CoefficientOfVariation(tail) < convergenceCV
}
