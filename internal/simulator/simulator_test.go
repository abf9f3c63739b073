package simulator

import (
	"math"
	"testing"
	"time"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/logger"
)

func testConfig() config.SimulatorConfig {
	return config.SimulatorConfig{
		MaxPositionRatio:   0.10,
		StopLossRatio:      0.05,
		RiskFreeRate:       0.03,
		TradingDaysPerYear: 252,
		LotSize:            100,
	}
}

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func buySignal(size float64) *contracts.TradingSignal {
	return &contracts.TradingSignal{
		StockCode: "600519", Type: contracts.SignalBuy,
		Strength: size, PositionSize: size, Confidence: 0.9, CompositeScore: 0.9,
	}
}

func holdSignal() *contracts.TradingSignal {
	return &contracts.TradingSignal{StockCode: "600519", Type: contracts.SignalHold, Confidence: 0.5}
}

func sellSignal() *contracts.TradingSignal {
	return &contracts.TradingSignal{
		StockCode: "600519", Type: contracts.SignalSell,
		Strength: 0.9, PositionSize: 0.9, Confidence: 0.9, CompositeScore: -0.9,
	}
}

func TestSimulator_BuyLotRounding(t *testing.T) {
	s := New(testConfig(), logger.NewNop())
	s.Initialize(1_000_000)

	// 10% of 1,000,000 = 100,000; at price 333 that is 300.3 shares,
	// floored to 3 lots of 100.
	s.Step(buySignal(1.0), 333, day(0))

	pos := s.Position("600519")
	if pos == nil {
		t.Fatal("no position opened")
	}
	if pos.Shares != 300 {
		t.Errorf("shares = %d, want 300 (lot-rounded)", pos.Shares)
	}
}

func TestSimulator_MaxPositionRatioCap(t *testing.T) {
	s := New(testConfig(), logger.NewNop())
	s.Initialize(1_000_000)

	// Requested size 1.0 must be capped at 0.10 of capital.
	s.Step(buySignal(1.0), 100, day(0))

	pos := s.Position("600519")
	if pos == nil {
		t.Fatal("no position opened")
	}
	if pos.Shares != 1000 { // 100,000 / 100 = 1000 shares
		t.Errorf("shares = %d, want 1000 (10%% of capital)", pos.Shares)
	}
}

func TestSimulator_CommissionFloor(t *testing.T) {
	// A 1-share notional of 1 yuan still pays the 5 yuan commission
	// floor, the 1 yuan transfer floor, and no stamp tax on the buy side.
	costs := CalculateCosts(1.0, contracts.SignalBuy)

	if costs.Commission != 5 {
		t.Errorf("commission = %v, want 5", costs.Commission)
	}
	if costs.TransferFee != 1 {
		t.Errorf("transfer fee = %v, want 1", costs.TransferFee)
	}
	if costs.StampTax != 0 {
		t.Errorf("stamp tax = %v, want 0 on buy", costs.StampTax)
	}
}

func TestSimulator_CostModel(t *testing.T) {
	// Large notional: proportional rates dominate the floors.
	costs := CalculateCosts(1_000_000, contracts.SignalSell)

	if got, want := costs.Commission, 300.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("commission = %v, want %v", got, want)
	}
	if got, want := costs.StampTax, 1000.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("stamp tax = %v, want %v", got, want)
	}
	if got, want := costs.TransferFee, 20.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("transfer fee = %v, want %v", got, want)
	}
	if got, want := costs.Slippage, 1000.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("slippage = %v, want %v", got, want)
	}
}

func TestSimulator_StopLossForcesSell(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionRatio = 1.0 // allow a full-size entry for the test
	s := New(cfg, logger.NewNop())
	s.Initialize(1_000_000)

	// Open at 100.
	s.Step(buySignal(0.5), 100, day(0))
	pos := s.Position("600519")
	if pos == nil {
		t.Fatal("no position opened")
	}

	// Price 90 <= avg_cost*(1-0.05): forced sell regardless of signal.
	s.Step(holdSignal(), 90, day(1))

	if s.Position("600519") != nil {
		t.Fatal("position should be fully liquidated by stop loss")
	}

	trades := s.Trades()
	last := trades[len(trades)-1]
	if last.Direction != "sell" || !last.StopLoss {
		t.Errorf("last trade = %+v, want stop-loss sell", last)
	}
	if last.Shares != pos.Shares {
		t.Errorf("stop loss sold %d shares, want full holding %d", last.Shares, pos.Shares)
	}
}

func TestSimulator_InsufficientFundsScalesDown(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionRatio = 1.0
	s := New(cfg, logger.NewNop())
	s.Initialize(20_000)

	// Full-size buy at 100 floors to 200 shares, but the fees push the
	// outlay past cash, so the order shrinks by one lot rather than fail.
	s.Step(buySignal(1.0), 100, day(0))

	pos := s.Position("600519")
	if pos == nil {
		t.Fatal("no position opened")
	}
	if pos.Shares != 100 {
		t.Errorf("shares = %d, want 100 after affordability scale-down", pos.Shares)
	}
	if s.Cash() < 0 {
		t.Errorf("cash went negative: %v", s.Cash())
	}
}

func TestSimulator_BuySkippedWhenFeesUnaffordable(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionRatio = 1.0
	s := New(cfg, logger.NewNop())
	s.Initialize(10_010)

	// One lot at 100 is 10,000 notional, but fees take the outlay to
	// 10,016. Shrinking by a lot reaches zero, so the buy is dropped
	// and cash stays intact.
	s.Step(buySignal(1.0), 100, day(0))

	if pos := s.Position("600519"); pos != nil {
		t.Fatalf("position opened with %d shares, want none", pos.Shares)
	}
	if s.Cash() != 10_010 {
		t.Errorf("cash = %v, want untouched 10010", s.Cash())
	}
}

func TestSimulator_SellIsFullLiquidation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionRatio = 1.0
	s := New(cfg, logger.NewNop())
	s.Initialize(1_000_000)

	s.Step(buySignal(0.5), 100, day(0))
	s.Step(buySignal(0.5), 110, day(1)) // add to the position

	pos := s.Position("600519")
	if pos == nil || pos.Shares == 0 {
		t.Fatal("expected an open position")
	}
	held := pos.Shares

	s.Step(sellSignal(), 120, day(2))

	if s.Position("600519") != nil {
		t.Error("sell should remove the position entirely")
	}
	trades := s.Trades()
	last := trades[len(trades)-1]
	if last.Shares != held {
		t.Errorf("sold %d shares, want %d", last.Shares, held)
	}
	if last.PnL <= 0 {
		t.Errorf("sell at a higher price should realize a profit, got PnL %v", last.PnL)
	}
}

func TestSimulator_AvgCostWeightedOnBuys(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionRatio = 1.0
	s := New(cfg, logger.NewNop())
	s.Initialize(10_000_000)

	s.Step(buySignal(0.1), 100, day(0))
	first := s.Position("600519").AvgCost

	s.Step(buySignal(0.1), 200, day(1))
	second := s.Position("600519").AvgCost

	if second <= first {
		t.Errorf("avg cost after buying higher (%v) should exceed first avg cost (%v)", second, first)
	}
	if second >= 200 {
		t.Errorf("avg cost %v should stay below the higher fill price", second)
	}
}

func TestSimulator_NavTracksEquity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionRatio = 1.0
	s := New(cfg, logger.NewNop())
	s.Initialize(1_000_000)

	s.Step(buySignal(0.5), 100, day(0))
	s.Step(holdSignal(), 110, day(1))
	s.Step(holdSignal(), 120, day(2))

	nav := s.NavSeries()
	if len(nav) != 3 {
		t.Fatalf("nav has %d points, want 3", len(nav))
	}
	if nav[2].Value <= nav[1].Value {
		t.Errorf("rising price should raise equity: %v then %v", nav[1].Value, nav[2].Value)
	}
	if nav[0].Date.After(nav[1].Date) || nav[1].Date.After(nav[2].Date) {
		t.Error("nav series out of order")
	}
}

func TestSimulator_HoldWithoutPositionIsNoop(t *testing.T) {
	s := New(testConfig(), logger.NewNop())
	s.Initialize(500_000)

	s.Step(holdSignal(), 100, day(0))
	s.Step(sellSignal(), 100, day(1)) // nothing to sell

	if len(s.Trades()) != 0 {
		t.Errorf("expected no trades, got %d", len(s.Trades()))
	}
	if s.Cash() != 500_000 {
		t.Errorf("cash = %v, want untouched 500000", s.Cash())
	}
}
