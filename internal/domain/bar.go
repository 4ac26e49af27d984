package domain

// Bar is a single OHLCV record with a millisecond timestamp.
// Bar sequences consumed by the engine must have strictly increasing timestamps.
type Bar struct {
	Timestamp int64 // unix ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// SignalPoint is one entry of a signal series. Direction is -1 (short),
// 0 (flat) or +1 (long). StopLoss and TakeProfit are absolute price levels;
// nil means the level is not set for the position opened by this signal.
type SignalPoint struct {
	Timestamp  int64 // unix ms
	Direction  int
	StopLoss   *float64
	TakeProfit *float64
}

// Side identifies the direction of an open position.
type Side string

// Side constants.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns +1 for long and -1 for short exposure.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Opposite returns the mirrored side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// SideForDirection maps a non-zero signal direction to a position side.
func SideForDirection(direction int) Side {
	if direction < 0 {
		return SideShort
	}
	return SideLong
}

// Regime classifies market conditions at a point in time.
type Regime string

// Regime constants.
const (
	RegimeTrendingUp     Regime = "trending_up"
	RegimeTrendingDown   Regime = "trending_down"
	RegimeRanging        Regime = "ranging"
	RegimeHighVolatility Regime = "high_volatility"
	RegimeUnknown        Regime = "unknown"
)
