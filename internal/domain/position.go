package domain

// Position is the single currently-open exposure within a backtest run.
// Created on an entry signal, mutated every bar, destroyed on close.
type Position struct {
	Side       Side
	EntryTime  int64 // unix ms
	EntryPrice float64
	Quantity   float64
	Value      float64 // EntryPrice * Quantity, fixed at open

	// Optional exit levels from the entry signal. Zero means not set.
	StopLoss   float64
	TakeProfit float64

	// Running extremes since entry, updated from bar highs/lows.
	HighestPrice float64
	LowestPrice  float64

	// Carrying cost accumulated since entry.
	FundingAccrued  float64
	LastFundingTime int64 // unix ms

	// Entry-side costs, settled when the trade finalizes.
	EntryFee      float64
	EntrySlippage float64

	// Market regime at the time of entry.
	EntryRegime Regime

	// Cash before the entry debit, used for trade-level returns.
	CapitalBefore float64
}

// UnrealizedPnL returns the mark-to-market profit at the given price,
// before fees and funding.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return p.Side.Sign() * (price - p.EntryPrice) * p.Quantity
}

// ExitReason identifies why a trade was closed.
type ExitReason string

// Terminal exit reasons of the position state machine.
const (
	ExitReasonSignal       ExitReason = "signal"
	ExitReasonSignalChange ExitReason = "signal_change"
	ExitReasonStopOrTarget ExitReason = "stop_loss_or_take_profit"
	ExitReasonBacktestEnd  ExitReason = "backtest_end"
)

// Trade is a finalized round-trip. Immutable once the exit fields are filled.
type Trade struct {
	Side       Side
	EntryTime  int64 // unix ms
	ExitTime   int64 // unix ms
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64

	// Costs over the whole round-trip.
	Fees     float64 // entry + exit commission
	Slippage float64 // entry + exit fill degradation, in quote units
	Funding  float64 // accumulated carrying cost

	PnL       float64 // net of fees, slippage and funding
	ReturnPct float64 // PnL relative to capital before entry

	// Worst and best unrealized excursion during the trade's life,
	// as non-negative fractions of the entry price.
	MAE float64
	MFE float64

	ExitReason ExitReason
	Regime     Regime // regime at entry
}
