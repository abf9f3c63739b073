package simulator

import (
	"math"
	"testing"
	"time"

	"github.com/wonny/chronos/internal/contracts"
)

func navSeries(values ...float64) []contracts.NavPoint {
	nav := make([]contracts.NavPoint, len(values))
	for i, v := range values {
		nav[i] = contracts.NavPoint{
			Date:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Value: v,
		}
	}
	return nav
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"monotone up", []float64{100, 110, 120}, 0},
		{"single dip", []float64{100, 120, 90, 130}, 0.25},
		{"trough after later peak", []float64{100, 130, 120, 140, 70}, 0.5},
		{"flat", []float64{100, 100, 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(navSeries(tt.values...))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("MaxDrawdown = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaxDrawdown_MonotoneInExtension(t *testing.T) {
	// Appending points can only keep or worsen the max drawdown.
	values := []float64{100, 120, 110, 130, 90, 95, 140, 80}
	prev := 0.0
	for i := 1; i <= len(values); i++ {
		dd := MaxDrawdown(navSeries(values[:i]...))
		if dd < prev {
			t.Fatalf("drawdown shrank from %v to %v at length %d", prev, dd, i)
		}
		prev = dd
	}
}

func TestVaR95(t *testing.T) {
	// 19 returns, one clear tail loss: the 5th percentile lands on it.
	returns := make([]float64, 19)
	for i := range returns {
		returns[i] = 0.01
	}
	returns[7] = -0.08

	got := VaR95(returns)
	if math.Abs(got-0.08) > 1e-9 {
		t.Errorf("VaR95 = %v, want 0.08", got)
	}
}

func TestVaR95_AllPositive(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.005, 0.03}
	if got := VaR95(returns); got != 0 {
		t.Errorf("VaR95 = %v, want 0 when no losses", got)
	}
	if got := VaR95(nil); got != 0 {
		t.Errorf("VaR95(nil) = %v, want 0", got)
	}
}

func TestComputeReport_Basic(t *testing.T) {
	cfg := testConfig()
	nav := navSeries(1_000_000, 1_010_000, 1_005_000, 1_020_000)

	report := computeReport(1_000_000, nav, nil, cfg)

	if math.Abs(report.TotalReturn-0.02) > 1e-9 {
		t.Errorf("total return = %v, want 0.02", report.TotalReturn)
	}
	wantAnnual := 0.02 * 252 / 4
	if math.Abs(report.AnnualReturn-wantAnnual) > 1e-9 {
		t.Errorf("annual return = %v, want %v", report.AnnualReturn, wantAnnual)
	}
	if report.SharpeRatio == nil {
		t.Error("sharpe should be set when volatility is positive")
	}
	if report.SortinoRatio == nil {
		t.Error("sortino should be set when there are down days")
	}
	if report.VaR95 == nil {
		t.Error("VaR should be set when returns exist")
	}
	if report.MaxDrawdown <= 0 {
		t.Errorf("max drawdown = %v, want > 0 for a dipping series", report.MaxDrawdown)
	}
}

func TestComputeReport_ZeroVolatility(t *testing.T) {
	cfg := testConfig()
	nav := navSeries(1_000_000, 1_000_000, 1_000_000)

	report := computeReport(1_000_000, nav, nil, cfg)

	if report.SharpeRatio != nil {
		t.Error("sharpe must be nil at zero volatility")
	}
	if report.SortinoRatio != nil {
		t.Error("sortino must be nil with no negative returns")
	}
	if report.Volatility != 0 {
		t.Errorf("volatility = %v, want 0", report.Volatility)
	}
}

func TestComputeReport_EmptyInputs(t *testing.T) {
	report := computeReport(1_000_000, nil, nil, testConfig())
	if report.TotalReturn != 0 || report.SharpeRatio != nil || report.VaR95 != nil {
		t.Errorf("empty nav should yield a zero report, got %+v", report)
	}
}

func TestFillTradeStats(t *testing.T) {
	trades := []contracts.TradeRecord{
		{Direction: "buy"},
		{Direction: "sell", PnL: 300},
		{Direction: "buy"},
		{Direction: "sell", PnL: -100},
		{Direction: "sell", PnL: 150},
	}

	var report contracts.PerformanceReport
	fillTradeStats(&report, trades)

	if report.TradeCount != 5 {
		t.Errorf("trade count = %d, want 5", report.TradeCount)
	}
	if math.Abs(report.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("win rate = %v, want 2/3", report.WinRate)
	}
	if math.Abs(report.AvgWin-225) > 1e-9 {
		t.Errorf("avg win = %v, want 225", report.AvgWin)
	}
	if math.Abs(report.AvgLoss-100) > 1e-9 {
		t.Errorf("avg loss = %v, want 100", report.AvgLoss)
	}
	if math.Abs(report.ProfitLossRatio-2.25) > 1e-9 {
		t.Errorf("profit/loss ratio = %v, want 2.25", report.ProfitLossRatio)
	}
}
