package backtest

import (
	"errors"
	"math"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/execution"
)

// Recoverable per-bar errors. These are logged and the simulation continues
// flat; they never abort a run.
var (
	// ErrInsufficientCapital is returned when available capital cannot
	// cover the position value plus fees and slippage.
	ErrInsufficientCapital = errors.New("insufficient capital to open position")

	// ErrUnsupportedPosition is returned when a short entry is requested
	// with AllowShort disabled.
	ErrUnsupportedPosition = errors.New("unsupported position side")
)

// Regime classification thresholds over the trailing window.
const (
	regimeTrendThreshold = 0.03  // cumulative window return
	regimeVolThreshold   = 0.025 // per-bar return stddev
)

// runState is the mutable simulation state of a single run. A fresh value is
// constructed per Run call; nothing is shared across runs or workers.
type runState struct {
	cfg   domain.BacktestConfig
	costs execution.CostModel

	capital  float64
	position *domain.Position

	trades   []domain.Trade
	equity   []domain.EquityPoint
	drawdown []domain.DrawdownPoint

	peakEquity float64

	totalFees     float64
	totalSlippage float64
	totalFunding  float64

	halted   bool
	haltTime int64

	// Trailing close window for volatility and regime classification.
	closes []float64
	vol    float64
	regime domain.Regime
}

func newRunState(cfg domain.BacktestConfig, costs execution.CostModel) *runState {
	return &runState{
		cfg:        cfg,
		costs:      costs,
		capital:    cfg.InitialCapital,
		peakEquity: cfg.InitialCapital,
		regime:     domain.RegimeUnknown,
	}
}

// observe pushes the bar close into the trailing window and refreshes the
// rolling volatility and regime classification.
func (st *runState) observe(bar domain.Bar) {
	window := st.cfg.RegimeWindow
	if window <= 0 {
		return
	}

	st.closes = append(st.closes, bar.Close)
	if len(st.closes) > window+1 {
		st.closes = st.closes[1:]
	}
	if len(st.closes) < window+1 {
		return
	}

	rets := make([]float64, 0, window)
	for i := 1; i < len(st.closes); i++ {
		prev := st.closes[i-1]
		if prev > 0 {
			rets = append(rets, st.closes[i]/prev-1)
		}
	}
	st.vol = sampleStddev(rets)

	first, last := st.closes[0], st.closes[len(st.closes)-1]
	cum := 0.0
	if first > 0 {
		cum = last/first - 1
	}

	switch {
	case st.vol >= regimeVolThreshold:
		st.regime = domain.RegimeHighVolatility
	case cum >= regimeTrendThreshold:
		st.regime = domain.RegimeTrendingUp
	case cum <= -regimeTrendThreshold:
		st.regime = domain.RegimeTrendingDown
	default:
		st.regime = domain.RegimeRanging
	}
}

// markToMarket appends an equity and drawdown sample for the bar and returns
// the current equity: cash + position value + unrealized PnL - accrued funding.
func (st *runState) markToMarket(bar domain.Bar) float64 {
	eq := st.capital
	if st.position != nil {
		eq += st.position.Value + st.position.UnrealizedPnL(bar.Close) - st.position.FundingAccrued
	}

	if eq > st.peakEquity {
		st.peakEquity = eq
	}

	dd := 0.0
	if st.peakEquity > 0 && eq < st.peakEquity {
		dd = -(st.peakEquity - eq) / st.peakEquity
	}

	st.equity = append(st.equity, domain.EquityPoint{Timestamp: bar.Timestamp, Equity: eq})
	st.drawdown = append(st.drawdown, domain.DrawdownPoint{Timestamp: bar.Timestamp, Drawdown: dd})
	return eq
}

// updateExtremes tracks the running high/low of the open position.
func (st *runState) updateExtremes(bar domain.Bar) {
	p := st.position
	if bar.High > p.HighestPrice {
		p.HighestPrice = bar.High
	}
	if bar.Low < p.LowestPrice {
		p.LowestPrice = bar.Low
	}
}

// checkStopTarget closes the position when the bar's range touches the
// stop-loss or take-profit level. Returns true if the position was closed.
// When both levels fall inside one bar the stop is assumed to fill first.
func (st *runState) checkStopTarget(bar domain.Bar) bool {
	p := st.position
	switch p.Side {
	case domain.SideLong:
		if p.StopLoss > 0 && bar.Low <= p.StopLoss {
			st.closePosition(bar.Timestamp, p.StopLoss, domain.ExitReasonStopOrTarget, true)
			return true
		}
		if p.TakeProfit > 0 && bar.High >= p.TakeProfit {
			st.closePosition(bar.Timestamp, p.TakeProfit, domain.ExitReasonStopOrTarget, false)
			return true
		}
	case domain.SideShort:
		if p.StopLoss > 0 && bar.High >= p.StopLoss {
			st.closePosition(bar.Timestamp, p.StopLoss, domain.ExitReasonStopOrTarget, true)
			return true
		}
		if p.TakeProfit > 0 && bar.Low <= p.TakeProfit {
			st.closePosition(bar.Timestamp, p.TakeProfit, domain.ExitReasonStopOrTarget, false)
			return true
		}
	}
	return false
}

// applyFunding charges the funding fee once per elapsed interval since the
// last charge. The trigger tolerance is exactly the bar spacing: a charge
// lands on the first bar at or past each interval boundary.
func (st *runState) applyFunding(bar domain.Bar) {
	p := st.position
	interval := st.cfg.FundingIntervalMs
	if p == nil || interval <= 0 || st.cfg.FundingRate == 0 {
		return
	}
	for bar.Timestamp-p.LastFundingTime >= interval {
		p.FundingAccrued += p.Value * st.cfg.FundingRate
		p.LastFundingTime += interval
	}
}

// openPosition opens a new exposure at the bar close adjusted for slippage.
// Entry fee and position value are debited from capital immediately.
func (st *runState) openPosition(bar domain.Bar, side domain.Side, sig domain.SignalPoint) error {
	if side == domain.SideShort && !st.cfg.AllowShort {
		return ErrUnsupportedPosition
	}

	available := st.capital * st.cfg.MaxPositionSize
	if available <= 0 {
		return ErrInsufficientCapital
	}

	// Size the order so value plus taker fee fits inside the allocation,
	// then re-price it with the slippage the order itself causes.
	qty := available / (bar.Close * (1 + st.costs.TakerRate))
	slip := st.costs.Slippage(bar.Close, qty, st.vol, false)

	entryPrice := bar.Close + slip
	if side == domain.SideShort {
		entryPrice = bar.Close - slip
	}
	if entryPrice <= 0 {
		return ErrInsufficientCapital
	}

	qty = available / (entryPrice * (1 + st.costs.TakerRate))
	if qty <= 0 {
		return ErrInsufficientCapital
	}

	value := entryPrice * qty
	fee := st.costs.Fee(value, false)
	if value+fee > st.capital {
		return ErrInsufficientCapital
	}

	capitalBefore := st.capital
	st.capital -= value + fee
	st.totalFees += fee
	st.totalSlippage += slip * qty

	pos := &domain.Position{
		Side:            side,
		EntryTime:       bar.Timestamp,
		EntryPrice:      entryPrice,
		Quantity:        qty,
		Value:           value,
		HighestPrice:    bar.Close,
		LowestPrice:     bar.Close,
		LastFundingTime: bar.Timestamp,
		EntryFee:        fee,
		EntrySlippage:   slip * qty,
		EntryRegime:     st.regime,
		CapitalBefore:   capitalBefore,
	}
	if sig.StopLoss != nil {
		pos.StopLoss = *sig.StopLoss
	}
	if sig.TakeProfit != nil {
		pos.TakeProfit = *sig.TakeProfit
	}
	st.position = pos
	return nil
}

// closePosition finalizes the open position at the given price adjusted for
// slippage and credits capital with position value plus net PnL.
func (st *runState) closePosition(ts int64, price float64, reason domain.ExitReason, isStopLoss bool) {
	p := st.position

	slip := st.costs.Slippage(price, p.Quantity, st.vol, isStopLoss)
	exitPrice := price - slip
	if p.Side == domain.SideShort {
		exitPrice = price + slip
	}
	if exitPrice < 0 {
		exitPrice = 0
	}

	gross := p.Side.Sign() * (exitPrice - p.EntryPrice) * p.Quantity
	exitFee := st.costs.Fee(exitPrice*p.Quantity, false)
	netPnL := gross - exitFee - p.FundingAccrued

	st.capital += p.Value + netPnL
	st.totalFees += exitFee
	st.totalSlippage += slip * p.Quantity
	st.totalFunding += p.FundingAccrued

	trade := domain.Trade{
		Side:       p.Side,
		EntryTime:  p.EntryTime,
		ExitTime:   ts,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   p.Quantity,
		Fees:       p.EntryFee + exitFee,
		Slippage:   p.EntrySlippage + slip*p.Quantity,
		Funding:    p.FundingAccrued,
		PnL:        netPnL - p.EntryFee,
		ExitReason: reason,
		Regime:     p.EntryRegime,
	}
	if p.CapitalBefore > 0 {
		trade.ReturnPct = trade.PnL / p.CapitalBefore
	}
	trade.MAE, trade.MFE = excursions(p)

	st.trades = append(st.trades, trade)
	st.position = nil
}

// excursions returns the maximum adverse and favorable excursion of the
// position as non-negative fractions of the entry price.
func excursions(p *domain.Position) (mae, mfe float64) {
	if p.EntryPrice <= 0 {
		return 0, 0
	}
	up := (p.HighestPrice - p.EntryPrice) / p.EntryPrice
	down := (p.EntryPrice - p.LowestPrice) / p.EntryPrice
	if p.Side == domain.SideLong {
		mae, mfe = down, up
	} else {
		mae, mfe = up, down
	}
	return math.Max(mae, 0), math.Max(mfe, 0)
}

func sampleStddev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}
