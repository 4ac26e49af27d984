package domain

// BacktestConfig holds immutable parameters for one simulation run.
// Created once per run and never mutated by the engine.
type BacktestConfig struct {
	// Optional date range bounds (unix ms). Zero means unbounded.
	StartTime int64
	EndTime   int64

	InitialCapital float64

	// Commission rates applied to notional at the effective fill price.
	MakerFeeRate float64
	TakerFeeRate float64

	// Slippage model components, see execution.CostModel.
	SlippageBps         float64 // fixed component, basis points of price
	ImpactCoeff         float64 // order-value-proportional component
	VolatilityCoeff     float64 // volatility-proportional component
	StopLossSlippageBps float64 // extra basis points on stop-loss fills

	// Funding (carrying cost) on open positions.
	FundingRate       float64 // charged on position value once per interval
	FundingIntervalMs int64

	// Position sizing and permissions.
	MaxPositionSize float64 // fraction of capital committed per position
	AllowShort      bool

	// CircuitBreakerDrawdown halts the run once equity drawdown from peak
	// reaches this fraction. Zero disables the breaker.
	CircuitBreakerDrawdown float64

	// RegimeWindow is the number of trailing bars used for regime
	// classification and rolling volatility. Zero disables regime stamping.
	RegimeWindow int
}

// DefaultBacktestConfig returns the documented defaults.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:         10_000,
		MakerFeeRate:           0.0002,
		TakerFeeRate:           0.0005,
		SlippageBps:            2,
		ImpactCoeff:            1e-8,
		VolatilityCoeff:        0.1,
		StopLossSlippageBps:    5,
		FundingRate:            0.0001,
		FundingIntervalMs:      8 * 60 * 60 * 1000,
		MaxPositionSize:        0.95,
		AllowShort:             true,
		CircuitBreakerDrawdown: 0.5,
		RegimeWindow:           20,
	}
}

// OptimizationMethod selects the parameter search algorithm.
type OptimizationMethod string

// Optimization method constants.
const (
	MethodGrid    OptimizationMethod = "grid"
	MethodRandom  OptimizationMethod = "random"
	MethodGenetic OptimizationMethod = "genetic"
)

// Constraints reject candidate evaluations whose backtest result is not
// acceptable. Rejected evaluations stay in the evaluation log but are
// excluded from best-candidate selection.
type Constraints struct {
	MinTrades   int
	MaxDrawdown float64 // fraction, 0 disables
	MinWinRate  float64 // fraction, 0 disables
}

// OptimizationConfig holds parameters for one optimizer invocation.
type OptimizationConfig struct {
	Method    OptimizationMethod
	Objective string // objective function name, see optimize.ScoreByName

	// Random search.
	NRandomSamples int

	// Genetic algorithm.
	PopulationSize    int
	NGenerations      int
	CrossoverRate     float64
	MutationRate      float64
	ElitismPct        float64
	ConvergenceWindow int // trailing best-score window for convergence

	Constraints Constraints

	NWorkers int
	Seed     int64
}

// DefaultOptimizationConfig returns the documented defaults.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		Method:            MethodGrid,
		Objective:         "sharpe",
		NRandomSamples:    100,
		PopulationSize:    50,
		NGenerations:      20,
		CrossoverRate:     0.8,
		MutationRate:      0.1,
		ElitismPct:        0.1,
		ConvergenceWindow: 5,
		Constraints: Constraints{
			MinTrades:   10,
			MaxDrawdown: 0.5,
			MinWinRate:  0,
		},
		NWorkers: 4,
		Seed:     42,
	}
}

// MonteCarloMode selects how synthetic variants are generated.
type MonteCarloMode string

// Monte Carlo mode constants.
const (
	MCTradeRandomization   MonteCarloMode = "trade_randomization"
	MCReturnBootstrap      MonteCarloMode = "return_bootstrapping"
	MCParameterSensitivity MonteCarloMode = "parameter_sensitivity"
	MCCombined             MonteCarloMode = "combined"
)

// MonteCarloConfig holds parameters for one simulator invocation.
type MonteCarloConfig struct {
	Mode         MonteCarloMode
	NSimulations int

	// ParamVariationPct bounds the uniform perturbation applied to each
	// numeric strategy parameter in parameter-sensitivity mode.
	ParamVariationPct float64

	// ConfidenceLevels for percentile-based intervals, e.g. 0.90, 0.95.
	ConfidenceLevels []float64

	// RuinDrawdown is the drawdown fraction counted as ruin.
	RuinDrawdown float64

	NWorkers int
	Seed     int64
}

// DefaultMonteCarloConfig returns the documented defaults.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Mode:              MCTradeRandomization,
		NSimulations:      1000,
		ParamVariationPct: 0.2,
		ConfidenceLevels:  []float64{0.90, 0.95, 0.99},
		RuinDrawdown:      0.5,
		NWorkers:          4,
		Seed:              42,
	}
}

// WalkForwardConfig holds parameters for one walk-forward analysis.
type WalkForwardConfig struct {
	InSampleDays  int
	OutSampleDays int
	StepDays      int

	// Anchored grows the in-sample span from the data start instead of
	// rolling it forward.
	Anchored bool

	// MinDataPoints skips windows whose in-sample or out-of-sample span
	// holds fewer bars than this.
	MinDataPoints int

	// OptimizeInSample runs a grid search per window; when false the
	// strategy's declared defaults are used.
	OptimizeInSample bool

	// Metric is the objective used for in-sample scoring and degradation.
	Metric string

	Constraints Constraints

	NWorkers int
	Seed     int64
}

// DefaultWalkForwardConfig returns the documented defaults.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		InSampleDays:     90,
		OutSampleDays:    30,
		StepDays:         30,
		Anchored:         false,
		MinDataPoints:    50,
		OptimizeInSample: true,
		Metric:           "sharpe",
		NWorkers:         4,
		Seed:             42,
	}
}
