// Package backtest replays historical bars and signals through a realistic
// execution simulator and produces structured run results.
package backtest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/execution"
	"strategy-lab/internal/lookup"
	"strategy-lab/internal/observability"
)

// ErrInsufficientData is returned when the bar series inside the configured
// date range is too short to simulate.
var ErrInsufficientData = errors.New("insufficient data for backtest")

// minBars is the minimum number of bars a run needs.
const minBars = 2

// Options configures an Engine.
type Options struct {
	Config domain.BacktestConfig
	Logger *zap.Logger
}

// Engine runs the position state machine over an aligned (bar, signal)
// stream. An Engine holds no per-run state: Run builds a fresh simulation
// state on every call, so a single Engine is safe to share across workers.
type Engine struct {
	cfg    domain.BacktestConfig
	costs  execution.CostModel
	logger *zap.Logger
}

// NewEngine creates a new backtest engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    opts.Config,
		costs:  execution.NewCostModel(opts.Config),
		logger: logger,
	}
}

// Run simulates the strategy over the bar series. Signals are outer-joined
// onto bars by timestamp; missing signals are treated as flat. Each run is
// strictly sequential: every bar depends on the state mutated by the
// previous one.
//
// Per-bar failures (insufficient capital, disallowed side) are logged and
// skipped. Only data-shape errors are returned to the caller.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar, signals []domain.SignalPoint, name string, params map[string]float64) (*domain.BacktestResult, error) {
	started := time.Now()

	if e.cfg.StartTime > 0 || e.cfg.EndTime > 0 {
		bars = boundBars(bars, e.cfg.StartTime, e.cfg.EndTime)
	}
	if len(bars) < minBars {
		return nil, ErrInsufficientData
	}

	aligned, err := lookup.AlignSignals(bars, signals)
	if err != nil {
		return nil, err
	}

	st := newRunState(e.cfg, e.costs)
	processed := 0

	for i := range bars {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		bar := bars[i]
		st.observe(bar)
		equity := st.markToMarket(bar)
		processed = i + 1

		// Circuit breaker: halt the run once drawdown from peak reaches
		// the configured threshold. Any open position is force-closed at
		// the halting bar so the partial result is fully settled.
		if e.cfg.CircuitBreakerDrawdown > 0 && st.peakEquity > 0 {
			dd := (st.peakEquity - equity) / st.peakEquity
			if dd >= e.cfg.CircuitBreakerDrawdown {
				if st.position != nil {
					st.closePosition(bar.Timestamp, bar.Close, domain.ExitReasonBacktestEnd, false)
				}
				st.halted = true
				st.haltTime = bar.Timestamp
				e.logger.Warn("circuit breaker triggered",
					zap.String("strategy", name),
					zap.Int64("timestamp", bar.Timestamp),
					zap.Float64("drawdown", dd),
					zap.Float64("threshold", e.cfg.CircuitBreakerDrawdown))
				observability.RecordCircuitBreakerTrip()
				break
			}
		}

		if st.position != nil {
			st.updateExtremes(bar)
			if st.checkStopTarget(bar) {
				// Position closed intrabar; the same bar's signal is
				// still applied below and may reopen.
			} else {
				st.applyFunding(bar)
			}
		}

		if err := e.applySignal(st, bar, aligned[i]); err != nil {
			e.logger.Warn("signal skipped",
				zap.String("strategy", name),
				zap.Int64("timestamp", bar.Timestamp),
				zap.Error(err))
		}
	}

	if st.position != nil && !st.halted {
		last := bars[len(bars)-1]
		st.closePosition(last.Timestamp, last.Close, domain.ExitReasonBacktestEnd, false)
	}

	result := buildResult(st, bars[0].Timestamp, name, params, processed)

	status := "completed"
	if result.Partial {
		status = "partial"
	}
	observability.RecordBacktest(status, processed, len(result.Trades), time.Since(started).Seconds())
	e.logger.Debug("backtest run finished",
		zap.String("strategy", name),
		zap.Int("bars", processed),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("return_pct", result.TotalReturnPct),
		zap.Bool("partial", result.Partial))

	return result, nil
}

// applySignal advances the position state machine with the bar's signal.
func (e *Engine) applySignal(st *runState, bar domain.Bar, sig domain.SignalPoint) error {
	if sig.Direction == 0 {
		if st.position != nil {
			st.closePosition(bar.Timestamp, bar.Close, domain.ExitReasonSignal, false)
		}
		return nil
	}

	side := domain.SideForDirection(sig.Direction)
	if st.position != nil {
		if st.position.Side == side {
			return nil
		}
		st.closePosition(bar.Timestamp, bar.Close, domain.ExitReasonSignalChange, false)
	}
	return st.openPosition(bar, side, sig)
}

func boundBars(bars []domain.Bar, start, end int64) []domain.Bar {
	if end <= 0 {
		if len(bars) > 0 {
			end = bars[len(bars)-1].Timestamp + 1
		}
	} else {
		end++ // inclusive bound
	}
	return lookup.SliceByTime(bars, start, end)
}

func buildResult(st *runState, startTime int64, name string, params map[string]float64, processed int) *domain.BacktestResult {
	res := &domain.BacktestResult{
		RunID:          uuid.NewString(),
		StrategyName:   name,
		Params:         params,
		StartTime:      startTime,
		InitialCapital: st.cfg.InitialCapital,
		FinalCapital:   st.capital,
		PeakCapital:    st.peakEquity,
		Trades:         st.trades,
		EquityCurve:    st.equity,
		DrawdownCurve:  st.drawdown,
		TotalFees:      st.totalFees,
		TotalSlippage:  st.totalSlippage,
		TotalFunding:   st.totalFunding,
		BarsProcessed:  processed,
		NumTrades:      len(st.trades),
		Partial:        st.halted,
	}
	if st.halted {
		res.CircuitBreakerTime = st.haltTime
	}
	if len(st.equity) > 0 {
		res.EndTime = st.equity[len(st.equity)-1].Timestamp
	}
	if st.cfg.InitialCapital > 0 {
		res.TotalReturnPct = st.capital/st.cfg.InitialCapital - 1
	}

	wins := 0
	for _, t := range st.trades {
		if t.PnL > 0 {
			wins++
		}
	}
	if len(st.trades) > 0 {
		res.WinRate = float64(wins) / float64(len(st.trades))
	}

	worst := 0.0
	for _, p := range st.drawdown {
		if p.Drawdown < worst {
			worst = p.Drawdown
		}
	}
	res.MaxDrawdown = -worst

	res.RegimeBreakdown = regimeBreakdown(st.trades)
	return res
}

func regimeBreakdown(trades []domain.Trade) map[domain.Regime]*domain.RegimeStats {
	breakdown := make(map[domain.Regime]*domain.RegimeStats)
	for _, t := range trades {
		stats, ok := breakdown[t.Regime]
		if !ok {
			stats = &domain.RegimeStats{Regime: t.Regime}
			breakdown[t.Regime] = stats
		}
		stats.Trades++
		if t.PnL > 0 {
			stats.Wins++
		}
		stats.NetPnL += t.PnL
	}
	for _, stats := range breakdown {
		stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
	}
	return breakdown
}
