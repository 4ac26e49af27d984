package domain

import "time"

// EquityPoint is one mark-to-market sample of the equity curve.
type EquityPoint struct {
	Timestamp int64 // unix ms
	Equity    float64
}

// DrawdownPoint is one sample of the drawdown curve. Drawdown is the
// decline from the running equity peak expressed as a non-positive fraction.
type DrawdownPoint struct {
	Timestamp int64   // unix ms
	Drawdown  float64 // <= 0
}

// RegimeStats aggregates trade outcomes per market regime at entry.
type RegimeStats struct {
	Regime  Regime
	Trades  int
	Wins    int
	WinRate float64
	NetPnL  float64
}

// BacktestResult is the aggregate outcome of one simulation run.
// Built once, at run completion.
type BacktestResult struct {
	RunID        string
	StrategyName string
	Params       map[string]float64

	StartTime int64 // unix ms, first processed bar
	EndTime   int64 // unix ms, last processed bar

	InitialCapital float64
	FinalCapital   float64
	PeakCapital    float64

	TotalReturnPct float64
	MaxDrawdown    float64 // worst peak-to-trough, positive fraction
	WinRate        float64
	NumTrades      int

	TotalFees     float64
	TotalSlippage float64
	TotalFunding  float64

	Trades          []Trade
	EquityCurve     []EquityPoint
	DrawdownCurve   []DrawdownPoint
	RegimeBreakdown map[Regime]*RegimeStats

	BarsProcessed int

	// Partial is set when the circuit breaker halted the run before the
	// end of the data. CircuitBreakerTime is the halting bar's timestamp.
	Partial            bool
	CircuitBreakerTime int64
}

// PerformanceMetrics is the risk/return statistic superset derived from a
// BacktestResult.
type PerformanceMetrics struct {
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	AnnualizedVol       float64

	SharpeRatio  float64
	SortinoRatio float64
	CalmarRatio  float64

	MaxDrawdown         float64 // positive fraction
	MaxDrawdownDuration int     // longest contiguous underwater run, in curve points
	UlcerIndex          float64
	KRatio              float64

	KellyFraction float64
	OptimalF      float64

	WinRate        float64
	PayoffRatio    float64 // avg win / avg loss
	ProfitFactor   float64
	Expectancy     float64 // mean trade PnL
	MonthlyWinRate float64 // fraction of calendar months with positive PnL

	AvgMAE float64
	AvgMFE float64

	NumTrades int
}

// Evaluation is one entry of an optimizer's search trace.
type Evaluation struct {
	Params   map[string]float64
	Score    float64
	Accepted bool
	// RejectReason is set when the evaluation failed constraints or errored.
	RejectReason string
	Result       *BacktestResult
}

// Rejection reason codes used in the evaluation log.
const (
	RejectReasonError       = "evaluation_error"
	RejectReasonMinTrades   = "min_trades"
	RejectReasonMaxDrawdown = "max_drawdown"
	RejectReasonMinWinRate  = "min_win_rate"
	RejectReasonBadScore    = "non_finite_score"
)

// OptimizationResult is the best parameter set plus the search trace of one
// optimizer invocation.
type OptimizationResult struct {
	RunID  string
	Method OptimizationMethod

	// Found reports whether any evaluation satisfied the constraints.
	// When false, BestParams and BestResult are nil.
	Found      bool
	BestParams map[string]float64
	BestScore  float64
	BestResult *BacktestResult

	Evaluations []Evaluation

	// Genetic algorithm extras: cumulative best score per generation and
	// whether the convergence criterion stopped the search early.
	ConvergenceCurve []float64
	Converged        bool

	Duration time.Duration
}

// SimulationRecord is the outcome of one synthetic Monte Carlo variant.
type SimulationRecord struct {
	Index       int
	ReturnPct   float64
	Sharpe      float64
	MaxDrawdown float64 // positive fraction
	WinRate     float64
	FinalEquity float64
}

// ConfidenceInterval is a percentile-based interval of simulated returns.
type ConfidenceInterval struct {
	Level  float64
	Lower  float64
	Median float64
	Upper  float64
}

// MonteCarloResult is the distribution of outcomes across all simulations
// of one simulator invocation.
type MonteCarloResult struct {
	RunID        string
	Mode         MonteCarloMode
	NSimulations int

	Simulations []SimulationRecord

	MeanReturn   float64
	StdReturn    float64
	MedianReturn float64

	MeanSharpe float64
	StdSharpe  float64

	MeanMaxDrawdown float64
	StdMaxDrawdown  float64
	MeanWinRate     float64

	ConfidenceIntervals []ConfidenceInterval

	ProbabilityOfProfit float64
	ProbabilityOfRuin   float64
	VaR95               float64 // 5th percentile of returns
	CVaR95              float64 // mean of the worst 5%

	ReturnStability       float64
	SharpeStability       float64
	ParamSensitivityScore float64
	RobustnessScore       float64
}

// WalkForwardWindow is one in-sample/out-of-sample time slice.
// OutSampleStart always equals InSampleEnd.
type WalkForwardWindow struct {
	Index          int
	InSampleStart  int64
	InSampleEnd    int64
	OutSampleStart int64
	OutSampleEnd   int64
}

// WindowResult holds the evaluation of a single walk-forward window.
type WindowResult struct {
	Window     WalkForwardWindow
	BestParams map[string]float64

	InSampleResult  *BacktestResult
	OutSampleResult *BacktestResult

	InSampleScore  float64
	OutSampleScore float64
	Degradation    float64

	Skipped    bool
	SkipReason string
}

// WalkForwardResult aggregates all window evaluations of one analysis.
type WalkForwardResult struct {
	RunID string

	Windows    []WindowResult
	NumWindows int
	NumSkipped int

	CombinedEquityCurve []EquityPoint
	CombinedReturnPct   float64
	CombinedMetrics     *PerformanceMetrics

	MeanDegradation  float64
	ConsistencyScore float64

	// ParameterStability maps parameter name to the coefficient of
	// variation of its chosen value across windows.
	ParameterStability map[string]float64
}
