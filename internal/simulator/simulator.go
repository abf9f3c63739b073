package simulator

import (
	"math"
	"time"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/logger"
)

// Simulator maintains cash and position state for one backtest run,
// applies transaction costs and risk controls per signal, and derives
// the end-of-run performance report. One simulator per run; state is
// never shared across tasks.
type Simulator struct {
	cfg    config.SimulatorConfig
	logger *logger.Logger

	initialCapital float64
	cash           float64
	positions      map[string]*contracts.PortfolioPosition
	nav            []contracts.NavPoint
	trades         []contracts.TradeRecord
}

// New creates a simulator with the given policy.
func New(cfg config.SimulatorConfig, log *logger.Logger) *Simulator {
	return &Simulator{
		cfg:       cfg,
		logger:    log,
		positions: make(map[string]*contracts.PortfolioPosition),
	}
}

// Initialize resets all state for a new run.
func (s *Simulator) Initialize(capital float64) {
	s.initialCapital = capital
	s.cash = capital
	s.positions = make(map[string]*contracts.PortfolioPosition)
	s.nav = nil
	s.trades = nil
}

// Step consumes one signal against that day's close. Risk controls,
// sizing, costs, and the state update happen atomically: a step either
// fully applies or not at all, so cooperative cancellation between
// steps never leaves partial trade state.
func (s *Simulator) Step(sig *contracts.TradingSignal, price float64, date time.Time) {
	action := sig.Type
	positionSize := sig.PositionSize
	stopLoss := false

	// Risk controls, in order: position cap, stop loss, affordability.
	if positionSize > s.cfg.MaxPositionRatio {
		positionSize = s.cfg.MaxPositionRatio
	}

	if pos, held := s.positions[sig.StockCode]; held && pos.AvgCost > 0 {
		if price <= pos.AvgCost*(1-s.cfg.StopLossRatio) {
			action = contracts.SignalSell
			positionSize = 1.0
			stopLoss = true
			s.logger.WithFields(map[string]interface{}{
				"stock":    sig.StockCode,
				"date":     date.Format("2006-01-02"),
				"price":    price,
				"avg_cost": pos.AvgCost,
			}).Debug("Stop loss triggered")
		}
	}

	switch action {
	case contracts.SignalBuy:
		s.executeBuy(sig.StockCode, price, positionSize, date)
	case contracts.SignalSell:
		s.executeSell(sig.StockCode, price, date, stopLoss)
	}

	s.markToMarket(sig.StockCode, price)
	s.appendNav(date, price)
}

// executeBuy sizes a buy in whole lots and applies it.
func (s *Simulator) executeBuy(stockCode string, price, positionSize float64, date time.Time) {
	if positionSize <= 0 || price <= 0 {
		return
	}

	lot := float64(s.cfg.LotSize)
	shares := int64(math.Floor(s.cash*positionSize/price/lot)) * s.cfg.LotSize
	if shares <= 0 {
		return
	}

	// Scale down until the order including fees fits in cash. Running
	// out of funds shrinks the order; it never fails the task.
	notional := float64(shares) * price
	costs := CalculateCosts(notional, contracts.SignalBuy)
	need := notional + costs.Total()
	for shares > 0 && notional+costs.Total() > s.cash {
		shares -= s.cfg.LotSize
		notional = float64(shares) * price
		costs = CalculateCosts(notional, contracts.SignalBuy)
	}
	if shares <= 0 {
		err := contracts.InsufficientFundsError{Need: need, Have: s.cash}
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"stock": stockCode,
			"date":  date.Format("2006-01-02"),
		}).Debug("Buy skipped, insufficient funds for one lot")
		return
	}

	totalOutlay := notional + costs.Total()
	s.cash -= totalOutlay

	pos, held := s.positions[stockCode]
	if !held {
		pos = &contracts.PortfolioPosition{StockCode: stockCode}
		s.positions[stockCode] = pos
	}

	// Average cost is weighted on buys, fees included.
	newShares := pos.Shares + shares
	pos.AvgCost = (pos.AvgCost*float64(pos.Shares) + totalOutlay) / float64(newShares)
	pos.Shares = newShares

	s.trades = append(s.trades, contracts.TradeRecord{
		Timestamp:   date,
		StockCode:   stockCode,
		Direction:   "buy",
		Shares:      shares,
		Price:       price,
		Notional:    notional,
		Commission:  costs.Commission,
		StampTax:    costs.StampTax,
		TransferFee: costs.TransferFee,
		Slippage:    costs.Slippage,
	})
}

// executeSell liquidates the full current holding. Partial selling and
// short selling are not supported.
func (s *Simulator) executeSell(stockCode string, price float64, date time.Time, stopLoss bool) {
	pos, held := s.positions[stockCode]
	if !held || pos.Shares <= 0 {
		return
	}

	shares := pos.Shares
	notional := float64(shares) * price
	costs := CalculateCosts(notional, contracts.SignalSell)

	proceeds := notional - costs.Total()
	costBasis := pos.AvgCost * float64(shares)
	pnl := proceeds - costBasis

	returnPct := 0.0
	if costBasis > 0 {
		returnPct = pnl / costBasis
	}

	s.cash += proceeds
	delete(s.positions, stockCode)

	s.trades = append(s.trades, contracts.TradeRecord{
		Timestamp:   date,
		StockCode:   stockCode,
		Direction:   "sell",
		Shares:      shares,
		Price:       price,
		Notional:    notional,
		Commission:  costs.Commission,
		StampTax:    costs.StampTax,
		TransferFee: costs.TransferFee,
		Slippage:    costs.Slippage,
		PnL:         pnl,
		ReturnPct:   returnPct,
		StopLoss:    stopLoss,
	})
}

// markToMarket refreshes the market value and unrealized P&L of the
// stock's position at the current price.
func (s *Simulator) markToMarket(stockCode string, price float64) {
	pos, held := s.positions[stockCode]
	if !held {
		return
	}
	pos.MarketValue = float64(pos.Shares) * price
	pos.UnrealizedPnL = pos.MarketValue - pos.AvgCost*float64(pos.Shares)
}

// appendNav records the day's net asset value.
func (s *Simulator) appendNav(date time.Time, _ float64) {
	value := s.Equity()
	ret := 0.0
	if s.initialCapital > 0 {
		ret = (value - s.initialCapital) / s.initialCapital
	}
	s.nav = append(s.nav, contracts.NavPoint{Date: date, Value: value, Return: ret})
}

// Equity returns cash plus marked-to-market position value.
func (s *Simulator) Equity() float64 {
	total := s.cash
	for _, pos := range s.positions {
		total += pos.MarketValue
	}
	return total
}

// Cash returns the current free cash.
func (s *Simulator) Cash() float64 { return s.cash }

// Position returns the current position for a stock, or nil.
func (s *Simulator) Position(stockCode string) *contracts.PortfolioPosition {
	return s.positions[stockCode]
}

// Trades returns the trade ledger.
func (s *Simulator) Trades() []contracts.TradeRecord { return s.trades }

// NavSeries returns the daily net-asset-value series.
func (s *Simulator) NavSeries() []contracts.NavPoint { return s.nav }

// Report derives the end-of-run performance metrics.
func (s *Simulator) Report() contracts.PerformanceReport {
	return computeReport(s.initialCapital, s.nav, s.trades, s.cfg)
}
