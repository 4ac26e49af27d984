// Package walkforward partitions history into in-sample/out-of-sample
// windows, optimizes parameters in-sample and validates them out-of-sample.
package walkforward

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/lookup"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/optimize"
	"strategy-lab/internal/strategy"
)

const msPerDay = int64(24 * 60 * 60 * 1000)

// ErrInsufficientData is returned when the bar series cannot host a single
// walk-forward window.
var ErrInsufficientData = errors.New("insufficient data for walk-forward analysis")

// Skip reason codes.
const (
	skipReasonTooFewBars = "insufficient_data"
	skipReasonRunFailed  = "backtest_failed"
)

// Options configures an Analyzer.
type Options struct {
	Config domain.WalkForwardConfig
	Engine *backtest.Engine
	Logger *zap.Logger

	// MetricsOptions feeds performance derivation for window scoring.
	MetricsOptions metrics.Options
}

// Analyzer runs walk-forward analysis. Windows are independent and are
// processed on a bounded worker pool.
type Analyzer struct {
	cfg    domain.WalkForwardConfig
	engine *backtest.Engine
	logger *zap.Logger
	mopts  metrics.Options
}

// New creates a new Analyzer.
func New(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		cfg:    opts.Config,
		engine: opts.Engine,
		logger: logger,
		mopts:  opts.MetricsOptions,
	}
}

// Run slices the bar series into windows, optimizes each window in-sample
// (grid search over the supplied space) and re-runs the engine out-of-sample
// with the chosen parameters.
func (a *Analyzer) Run(ctx context.Context, bars []domain.Bar, strat strategy.Strategy, space optimize.Space) (*domain.WalkForwardResult, error) {
	if err := lookup.ValidateBars(bars); err != nil {
		return nil, err
	}
	score, err := optimize.ScoreByName(a.cfg.Metric)
	if err != nil {
		return nil, err
	}

	windows := a.generateWindows(bars)
	if len(windows) == 0 {
		return nil, ErrInsufficientData
	}
	a.logger.Info("starting walk-forward analysis",
		zap.String("strategy", strat.Name()),
		zap.Int("windows", len(windows)),
		zap.Bool("anchored", a.cfg.Anchored),
		zap.Bool("optimize_in_sample", a.cfg.OptimizeInSample))

	results := make([]domain.WindowResult, len(windows))
	workers := a.cfg.NWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, w := range windows {
		wg.Add(1)
		go func(idx int, window domain.WalkForwardWindow) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[idx] = domain.WindowResult{Window: window, Skipped: true, SkipReason: skipReasonRunFailed}
				return
			}
			results[idx] = a.processWindow(ctx, window, bars, strat, space, score)
		}(i, w)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := a.aggregate(results)
	result.RunID = uuid.NewString()
	a.logger.Info("walk-forward analysis finished",
		zap.Int("windows", result.NumWindows),
		zap.Int("skipped", result.NumSkipped),
		zap.Float64("combined_return", result.CombinedReturnPct),
		zap.Float64("mean_degradation", result.MeanDegradation),
		zap.Float64("consistency", result.ConsistencyScore))
	return result, nil
}

// generateWindows produces rolling (or anchored) in-sample/out-of-sample
// slices. OutSampleStart always equals InSampleEnd; generation stops once
// the out-of-sample span would pass the data's end.
func (a *Analyzer) generateWindows(bars []domain.Bar) []domain.WalkForwardWindow {
	dataStart := bars[0].Timestamp
	dataEnd := bars[len(bars)-1].Timestamp

	inSpan := int64(a.cfg.InSampleDays) * msPerDay
	outSpan := int64(a.cfg.OutSampleDays) * msPerDay
	step := int64(a.cfg.StepDays) * msPerDay
	if inSpan <= 0 || outSpan <= 0 || step <= 0 {
		return nil
	}

	var windows []domain.WalkForwardWindow
	for cursor := dataStart; ; cursor += step {
		isStart := cursor
		if a.cfg.Anchored {
			isStart = dataStart
		}
		isEnd := cursor + inSpan
		oosEnd := isEnd + outSpan
		if oosEnd > dataEnd {
			break
		}
		windows = append(windows, domain.WalkForwardWindow{
			Index:          len(windows),
			InSampleStart:  isStart,
			InSampleEnd:    isEnd,
			OutSampleStart: isEnd,
			OutSampleEnd:   oosEnd,
		})
	}
	return windows
}

// processWindow optimizes in-sample, validates out-of-sample and computes
// the degradation of the configured metric.
func (a *Analyzer) processWindow(ctx context.Context, window domain.WalkForwardWindow, bars []domain.Bar, strat strategy.Strategy, space optimize.Space, score optimize.ScoreFunc) domain.WindowResult {
	wr := domain.WindowResult{Window: window}

	isBars := lookup.SliceByTime(bars, window.InSampleStart, window.InSampleEnd)
	oosBars := lookup.SliceByTime(bars, window.OutSampleStart, window.OutSampleEnd)
	if len(isBars) < a.cfg.MinDataPoints || len(oosBars) < a.cfg.MinDataPoints {
		wr.Skipped = true
		wr.SkipReason = skipReasonTooFewBars
		observability.RecordWindow("skipped")
		a.logger.Debug("window skipped",
			zap.Int("window", window.Index),
			zap.Int("in_sample_bars", len(isBars)),
			zap.Int("out_sample_bars", len(oosBars)))
		return wr
	}

	params := strat.DefaultParams()
	if a.cfg.OptimizeInSample {
		if best, res := a.optimizeInSample(ctx, window, isBars, strat, space, score); best != nil {
			params = best
			wr.InSampleResult = res
		}
	}
	wr.BestParams = params

	if wr.InSampleResult == nil {
		res, err := a.runSlice(ctx, isBars, strat, params)
		if err != nil {
			wr.Skipped = true
			wr.SkipReason = skipReasonRunFailed
			observability.RecordWindow("skipped")
			a.logger.Warn("in-sample run failed", zap.Int("window", window.Index), zap.Error(err))
			return wr
		}
		wr.InSampleResult = res
	}

	oosRes, err := a.runSlice(ctx, oosBars, strat, params)
	if err != nil {
		wr.Skipped = true
		wr.SkipReason = skipReasonRunFailed
		observability.RecordWindow("skipped")
		a.logger.Warn("out-of-sample run failed", zap.Int("window", window.Index), zap.Error(err))
		return wr
	}
	wr.OutSampleResult = oosRes

	wr.InSampleScore = score(metrics.Compute(wr.InSampleResult, a.mopts))
	wr.OutSampleScore = score(metrics.Compute(oosRes, a.mopts))
	if wr.InSampleScore != 0 {
		wr.Degradation = (wr.InSampleScore - wr.OutSampleScore) / math.Abs(wr.InSampleScore)
	}

	observability.RecordWindow("processed")
	return wr
}

// optimizeInSample grid-searches the space over the in-sample bars. A search
// that finds nothing acceptable falls back to strategy defaults.
func (a *Analyzer) optimizeInSample(ctx context.Context, window domain.WalkForwardWindow, isBars []domain.Bar, strat strategy.Strategy, space optimize.Space, score optimize.ScoreFunc) (map[string]float64, *domain.BacktestResult) {
	cfg := domain.OptimizationConfig{
		Method:      domain.MethodGrid,
		Objective:   a.cfg.Metric,
		Constraints: a.cfg.Constraints,
		// Windows are already parallel; evaluations inside one stay serial.
		NWorkers: 1,
		Seed:     a.cfg.Seed + int64(window.Index),
	}
	opt := optimize.New(optimize.Options{
		Config:    cfg,
		Objective: optimize.BacktestObjective(a.engine, strat, isBars, score, a.mopts),
		Logger:    a.logger,
	})

	res, err := opt.Optimize(ctx, space)
	if err != nil || !res.Found {
		a.logger.Warn("in-sample optimization found no acceptable candidate, using defaults",
			zap.Int("window", window.Index),
			zap.Error(err))
		return nil, nil
	}
	return res.BestParams, res.BestResult
}

func (a *Analyzer) runSlice(ctx context.Context, bars []domain.Bar, strat strategy.Strategy, params map[string]float64) (*domain.BacktestResult, error) {
	signals := strat.Signals(bars, params)
	return a.engine.Run(ctx, bars, signals, strat.Name(), params)
}
