package execution

import (
	"math"
	"testing"

	"strategy-lab/internal/domain"
)

func testModel() CostModel {
	return CostModel{
		BaseBps:         2,
		ImpactCoeff:     1e-8,
		VolatilityCoeff: 0.1,
		StopLossBps:     5,
		MakerRate:       0.0002,
		TakerRate:       0.0005,
	}
}

func TestSlippage_Components(t *testing.T) {
	m := testModel()
	price, qty, vol := 100.0, 10.0, 0.02

	got := m.Slippage(price, qty, vol, false)

	base := price * 2.0 / 10_000
	impact := price * 1e-8 * price * qty
	volComp := price * 0.1 * vol
	want := base + impact + volComp

	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Slippage = %v, want %v", got, want)
	}
}

func TestSlippage_StopLossSurcharge(t *testing.T) {
	m := testModel()
	price, qty, vol := 100.0, 10.0, 0.02

	normal := m.Slippage(price, qty, vol, false)
	stop := m.Slippage(price, qty, vol, true)

	surcharge := price * 5.0 / 10_000
	if math.Abs((stop-normal)-surcharge) > 1e-12 {
		t.Errorf("stop-loss surcharge = %v, want %v", stop-normal, surcharge)
	}
}

func TestSlippage_ZeroNotional(t *testing.T) {
	m := testModel()

	if got := m.Slippage(100, 0, 0.02, false); got != 0 {
		t.Errorf("zero quantity slippage = %v, want 0", got)
	}
	if got := m.Slippage(0, 10, 0.02, false); got != 0 {
		t.Errorf("zero price slippage = %v, want 0", got)
	}
}

func TestSlippage_MonotoneInSize(t *testing.T) {
	m := testModel()

	small := m.Slippage(100, 1, 0.02, false)
	large := m.Slippage(100, 1_000_000, 0.02, false)
	if large <= small {
		t.Errorf("slippage should grow with order size: small=%v large=%v", small, large)
	}
}

func TestSlippage_NegativeVolatilityClamped(t *testing.T) {
	m := testModel()

	got := m.Slippage(100, 10, -0.5, false)
	base := 100 * 2.0 / 10_000
	impact := 100 * 1e-8 * 100 * 10.0
	if math.Abs(got-(base+impact)) > 1e-12 {
		t.Errorf("negative volatility should contribute nothing, got %v", got)
	}
}

func TestFee_MakerTaker(t *testing.T) {
	m := testModel()

	if got := m.Fee(10_000, true); got != 2 {
		t.Errorf("maker fee = %v, want 2", got)
	}
	if got := m.Fee(10_000, false); got != 5 {
		t.Errorf("taker fee = %v, want 5", got)
	}
	if got := m.Fee(0, false); got != 0 {
		t.Errorf("zero notional fee = %v, want 0", got)
	}
}

func TestNewCostModel_FromConfig(t *testing.T) {
	cfg := domain.DefaultBacktestConfig()
	m := NewCostModel(cfg)

	if m.BaseBps != cfg.SlippageBps {
		t.Errorf("BaseBps = %v, want %v", m.BaseBps, cfg.SlippageBps)
	}
	if m.TakerRate != cfg.TakerFeeRate {
		t.Errorf("TakerRate = %v, want %v", m.TakerRate, cfg.TakerFeeRate)
	}
	if m.StopLossBps != cfg.StopLossSlippageBps {
		t.Errorf("StopLossBps = %v, want %v", m.StopLossBps, cfg.StopLossSlippageBps)
	}
}
