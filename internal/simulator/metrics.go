package simulator

import (
	"math"
	"sort"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/config"
)

// computeReport calculates performance metrics from the NAV series and
// trade ledger. Ratios that are undefined for the observed series are
// left nil.
func computeReport(initialCapital float64, nav []contracts.NavPoint, trades []contracts.TradeRecord, cfg config.SimulatorConfig) contracts.PerformanceReport {
	report := contracts.PerformanceReport{}

	if len(nav) == 0 || initialCapital <= 0 {
		return report
	}

	finalValue := nav[len(nav)-1].Value
	report.TotalReturn = (finalValue - initialCapital) / initialCapital

	tradingDays := len(nav)
	report.AnnualReturn = report.TotalReturn * float64(cfg.TradingDaysPerYear) / float64(tradingDays)

	dailyReturns := dailyReturns(nav)

	report.Volatility = stdev(dailyReturns) * math.Sqrt(float64(cfg.TradingDaysPerYear))
	report.MaxDrawdown = MaxDrawdown(nav)

	if report.Volatility > 0 {
		sharpe := (report.AnnualReturn - cfg.RiskFreeRate) / report.Volatility
		report.SharpeRatio = &sharpe
	}

	var downside []float64
	for _, r := range dailyReturns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) > 0 {
		downsideDev := stdev(downside) * math.Sqrt(float64(cfg.TradingDaysPerYear))
		if downsideDev > 0 {
			sortino := (report.AnnualReturn - cfg.RiskFreeRate) / downsideDev
			report.SortinoRatio = &sortino
		}
	}

	if len(dailyReturns) > 0 {
		v := VaR95(dailyReturns)
		report.VaR95 = &v
	}

	fillTradeStats(&report, trades)

	return report
}

// dailyReturns derives day-over-day returns from the NAV series.
func dailyReturns(nav []contracts.NavPoint) []float64 {
	if len(nav) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(nav)-1)
	for i := 1; i < len(nav); i++ {
		prev := nav[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, (nav[i].Value-prev)/prev)
	}
	return returns
}

// MaxDrawdown computes the largest peak-to-trough decline as a fraction
// of the peak, in a single forward pass tracking the running peak.
func MaxDrawdown(nav []contracts.NavPoint) float64 {
	if len(nav) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := nav[0].Value

	for _, point := range nav {
		if point.Value > peak {
			peak = point.Value
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - point.Value) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}

// VaR95 is the magnitude of the 5th percentile of the empirical daily
// return distribution (historical simulation).
func VaR95(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor(0.05 * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	if sorted[idx] < 0 {
		return -sorted[idx]
	}
	return 0
}

// fillTradeStats derives win/loss statistics from closed (sell) trades.
func fillTradeStats(report *contracts.PerformanceReport, trades []contracts.TradeRecord) {
	report.TradeCount = len(trades)

	winning, losing := 0, 0
	winSum, lossSum := 0.0, 0.0

	for _, t := range trades {
		if t.Direction != "sell" {
			continue
		}
		if t.PnL > 0 {
			winning++
			winSum += t.PnL
		} else if t.PnL < 0 {
			losing++
			lossSum += -t.PnL
		}
	}

	closed := winning + losing
	if closed > 0 {
		report.WinRate = float64(winning) / float64(closed)
	}
	if winning > 0 {
		report.AvgWin = winSum / float64(winning)
	}
	if losing > 0 {
		report.AvgLoss = lossSum / float64(losing)
	}
	if report.AvgLoss > 0 {
		report.ProfitLossRatio = report.AvgWin / report.AvgLoss
	}
}

// stdev is the population standard deviation.
func stdev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
