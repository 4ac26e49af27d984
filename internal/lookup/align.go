// Package lookup validates and aligns the in-memory input sequences
// consumed by the backtest engine.
package lookup

import (
	"errors"
	"fmt"

	"strategy-lab/internal/domain"
)

// Errors returned by alignment functions. These are the only hard failures
// of the top-level API: data-shape problems in the caller's input.
var (
	ErrEmptySeries     = errors.New("empty bar series")
	ErrUnorderedBars   = errors.New("bar timestamps are not strictly increasing")
	ErrUnorderedSignal = errors.New("signal timestamps are not non-decreasing")
)

// ValidateBars checks that the bar series is non-empty and strictly ordered.
func ValidateBars(bars []domain.Bar) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp <= bars[i-1].Timestamp {
			return fmt.Errorf("%w: index %d (%d <= %d)",
				ErrUnorderedBars, i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}
	return nil
}

// AlignSignals outer-joins a signal series onto a bar series by timestamp.
// The result is parallel to bars: one SignalPoint per bar, with missing
// signals treated as flat (direction 0). Signals whose timestamp matches no
// bar are dropped; when several signals share a bar timestamp the last wins.
func AlignSignals(bars []domain.Bar, signals []domain.SignalPoint) ([]domain.SignalPoint, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	for i := 1; i < len(signals); i++ {
		if signals[i].Timestamp < signals[i-1].Timestamp {
			return nil, fmt.Errorf("%w: index %d", ErrUnorderedSignal, i)
		}
	}

	aligned := make([]domain.SignalPoint, len(bars))
	j := 0
	for i, bar := range bars {
		aligned[i] = domain.SignalPoint{Timestamp: bar.Timestamp}
		for j < len(signals) && signals[j].Timestamp <= bar.Timestamp {
			if signals[j].Timestamp == bar.Timestamp {
				aligned[i].Direction = signals[j].Direction
				aligned[i].StopLoss = signals[j].StopLoss
				aligned[i].TakeProfit = signals[j].TakeProfit
			}
			j++
		}
	}
	return aligned, nil
}

// SliceByTime returns the sub-series of bars with from <= Timestamp < to.
// Bars must be ordered; the result shares the backing array.
func SliceByTime(bars []domain.Bar, from, to int64) []domain.Bar {
	lo := lowerBound(bars, from)
	hi := lowerBound(bars, to)
	return bars[lo:hi]
}

// lowerBound returns the first index i where bars[i].Timestamp >= target.
func lowerBound(bars []domain.Bar, target int64) int {
	lo, hi := 0, len(bars)
	for lo < hi {
		mid := (lo + hi) / 2
		if bars[mid].Timestamp < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
