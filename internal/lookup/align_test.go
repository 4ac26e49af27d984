package lookup

import (
	"errors"
	"testing"

	"strategy-lab/internal/domain"
)

func mkBars(timestamps ...int64) []domain.Bar {
	bars := make([]domain.Bar, len(timestamps))
	for i, ts := range timestamps {
		bars[i] = domain.Bar{Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	}
	return bars
}

func TestValidateBars_Empty(t *testing.T) {
	if err := ValidateBars(nil); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("expected ErrEmptySeries, got %v", err)
	}
}

func TestValidateBars_Unordered(t *testing.T) {
	bars := mkBars(1000, 2000, 2000)
	if err := ValidateBars(bars); !errors.Is(err, ErrUnorderedBars) {
		t.Errorf("expected ErrUnorderedBars for duplicate timestamp, got %v", err)
	}

	bars = mkBars(1000, 500)
	if err := ValidateBars(bars); !errors.Is(err, ErrUnorderedBars) {
		t.Errorf("expected ErrUnorderedBars for decreasing timestamp, got %v", err)
	}
}

func TestValidateBars_OK(t *testing.T) {
	if err := ValidateBars(mkBars(1000, 2000, 3000)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAlignSignals_OuterJoin(t *testing.T) {
	bars := mkBars(1000, 2000, 3000, 4000)
	signals := []domain.SignalPoint{
		{Timestamp: 2000, Direction: 1},
		{Timestamp: 4000, Direction: -1},
	}

	aligned, err := AlignSignals(bars, signals)
	if err != nil {
		t.Fatalf("AlignSignals failed: %v", err)
	}
	if len(aligned) != len(bars) {
		t.Fatalf("aligned length = %d, want %d", len(aligned), len(bars))
	}

	wantDirs := []int{0, 1, 0, -1}
	for i, want := range wantDirs {
		if aligned[i].Direction != want {
			t.Errorf("aligned[%d].Direction = %d, want %d", i, aligned[i].Direction, want)
		}
		if aligned[i].Timestamp != bars[i].Timestamp {
			t.Errorf("aligned[%d].Timestamp = %d, want %d", i, aligned[i].Timestamp, bars[i].Timestamp)
		}
	}
}

func TestAlignSignals_UnmatchedDroppedLastWins(t *testing.T) {
	bars := mkBars(1000, 2000)
	signals := []domain.SignalPoint{
		{Timestamp: 1500, Direction: 1}, // no matching bar, dropped
		{Timestamp: 2000, Direction: 1},
		{Timestamp: 2000, Direction: -1}, // same bar, last wins
	}

	aligned, err := AlignSignals(bars, signals)
	if err != nil {
		t.Fatalf("AlignSignals failed: %v", err)
	}
	if aligned[0].Direction != 0 {
		t.Errorf("unmatched signal should be dropped, got direction %d", aligned[0].Direction)
	}
	if aligned[1].Direction != -1 {
		t.Errorf("last duplicate should win, got direction %d", aligned[1].Direction)
	}
}

func TestAlignSignals_UnorderedSignals(t *testing.T) {
	bars := mkBars(1000, 2000)
	signals := []domain.SignalPoint{
		{Timestamp: 2000, Direction: 1},
		{Timestamp: 1000, Direction: -1},
	}
	if _, err := AlignSignals(bars, signals); !errors.Is(err, ErrUnorderedSignal) {
		t.Errorf("expected ErrUnorderedSignal, got %v", err)
	}
}

func TestSliceByTime(t *testing.T) {
	bars := mkBars(1000, 2000, 3000, 4000, 5000)

	got := SliceByTime(bars, 2000, 4000)
	if len(got) != 2 || got[0].Timestamp != 2000 || got[1].Timestamp != 3000 {
		t.Errorf("SliceByTime(2000, 4000) returned %d bars", len(got))
	}

	if got := SliceByTime(bars, 6000, 9000); len(got) != 0 {
		t.Errorf("out-of-range slice should be empty, got %d bars", len(got))
	}

	if got := SliceByTime(bars, 0, 10_000); len(got) != len(bars) {
		t.Errorf("covering slice should return all bars, got %d", len(got))
	}
}
