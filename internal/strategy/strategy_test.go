package strategy

import (
	"math"
	"testing"

	"strategy-lab/internal/domain"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: int64(i+1) * 60_000,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return bars
}

func TestMACross_WarmupAndDirection(t *testing.T) {
	// 10 flat bars then a steep rise: fast average crosses above slow.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
		if i >= 10 {
			closes[i] = 100 + float64(i-9)*5
		}
	}
	bars := barsFromCloses(closes...)

	s := NewMACross()
	params := map[string]float64{"fast_period": 3, "slow_period": 8}
	signals := s.Signals(bars, params)

	if len(signals) != len(bars) {
		t.Fatalf("len(signals) = %d, want %d", len(signals), len(bars))
	}
	for i := 0; i < 7; i++ {
		if signals[i].Direction != 0 {
			t.Errorf("signal %d emitted before warmup: %d", i, signals[i].Direction)
		}
	}
	if last := signals[len(signals)-1]; last.Direction != 1 {
		t.Errorf("final direction = %d, want 1 in uptrend", last.Direction)
	}
}

func TestMACross_AttachesLevels(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := barsFromCloses(closes...)

	s := NewMACross()
	signals := s.Signals(bars, map[string]float64{
		"fast_period":     3,
		"slow_period":     8,
		"stop_loss_pct":   0.05,
		"take_profit_pct": 0.10,
	})

	last := signals[len(signals)-1]
	if last.Direction != 1 {
		t.Fatalf("final direction = %d, want 1", last.Direction)
	}
	if last.StopLoss == nil || last.TakeProfit == nil {
		t.Fatal("levels not attached")
	}
	close := bars[len(bars)-1].Close
	if math.Abs(*last.StopLoss-close*0.95) > 1e-9 {
		t.Errorf("StopLoss = %v, want %v", *last.StopLoss, close*0.95)
	}
	if math.Abs(*last.TakeProfit-close*1.10) > 1e-9 {
		t.Errorf("TakeProfit = %v, want %v", *last.TakeProfit, close*1.10)
	}
}

func TestMACross_Deterministic(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/4)
	}
	bars := barsFromCloses(closes...)

	s := NewMACross()
	params := s.DefaultParams()
	a := s.Signals(bars, params)
	b := s.Signals(bars, params)

	for i := range a {
		if a[i].Direction != b[i].Direction {
			t.Fatalf("signals differ at %d: %d vs %d", i, a[i].Direction, b[i].Direction)
		}
	}
}

func TestMomentum_ThresholdCrossing(t *testing.T) {
	// Flat, then +10% over the lookback, then -10%.
	closes := []float64{100, 100, 100, 100, 100, 110, 110, 110, 110, 110, 99, 99, 99, 99, 99}
	bars := barsFromCloses(closes...)

	s := NewMomentum()
	signals := s.Signals(bars, map[string]float64{"lookback": 4, "threshold": 0.05})

	if signals[5].Direction != 1 {
		t.Errorf("signal after +10%% move = %d, want 1", signals[5].Direction)
	}
	if signals[3].Direction != 0 {
		t.Errorf("flat-period signal = %d, want 0", signals[3].Direction)
	}
	if signals[10].Direction != -1 {
		t.Errorf("signal after -10%% move = %d, want -1", signals[10].Direction)
	}
}

func TestMomentum_WarmupFlat(t *testing.T) {
	bars := barsFromCloses(100, 200, 300)
	s := NewMomentum()
	signals := s.Signals(bars, map[string]float64{"lookback": 10, "threshold": 0.01})

	for i, sig := range signals {
		if sig.Direction != 0 {
			t.Errorf("signal %d = %d before lookback warmup, want 0", i, sig.Direction)
		}
	}
}

func TestParamSpace_CoversDefaults(t *testing.T) {
	for _, s := range []Strategy{NewMACross(), NewMomentum()} {
		space := s.ParamSpace()
		for name := range s.DefaultParams() {
			if _, ok := space[name]; !ok {
				t.Errorf("%s: parameter %q missing from space", s.Name(), name)
			}
		}
	}
}

func TestLevels_ShortDirectionMirrored(t *testing.T) {
	stop, take := levels(100, -1, 0.05, 0.10)
	if stop == nil || take == nil {
		t.Fatal("levels not produced")
	}
	if *stop != 105 {
		t.Errorf("short stop = %v, want 105", *stop)
	}
	if *take != 90 {
		t.Errorf("short target = %v, want 90", *take)
	}

	if stop, take := levels(100, 0, 0.05, 0.10); stop != nil || take != nil {
		t.Error("flat direction should yield no levels")
	}
}
