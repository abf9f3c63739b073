package contracts

import "time"

// TradeRecord is one executed trade in the ledger.
type TradeRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	StockCode   string    `json:"stock_code"`
	Direction   string    `json:"direction"` // "buy" or "sell"
	Shares      int64     `json:"shares"`
	Price       float64   `json:"price"`
	Notional    float64   `json:"notional"`
	Commission  float64   `json:"commission"`
	StampTax    float64   `json:"stamp_tax"`
	TransferFee float64   `json:"transfer_fee"`
	Slippage    float64   `json:"slippage"`
	PnL         float64   `json:"pnl,omitempty"`        // realized, sell side only
	ReturnPct   float64   `json:"return_pct,omitempty"` // realized, sell side only
	StopLoss    bool      `json:"stop_loss,omitempty"`
}

// TotalCost is the sum of all fee components for this trade.
func (t *TradeRecord) TotalCost() float64 {
	return t.Commission + t.StampTax + t.TransferFee + t.Slippage
}

// NavPoint is one day of the net-asset-value series.
type NavPoint struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	Return float64   `json:"return"` // cumulative return vs. initial capital
}

// PortfolioPosition is the live holding for one stock during a run.
type PortfolioPosition struct {
	StockCode     string  `json:"stock_code"`
	Shares        int64   `json:"shares"`
	AvgCost       float64 `json:"avg_cost"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// PerformanceReport holds the end-of-run metrics. Ratios that are
// undefined for the observed series (zero volatility, no losing days)
// are nil rather than zero.
type PerformanceReport struct {
	TotalReturn     float64  `json:"total_return"`
	AnnualReturn    float64  `json:"annual_return"`
	MaxDrawdown     float64  `json:"max_drawdown"`
	Volatility      float64  `json:"volatility"`
	SharpeRatio     *float64 `json:"sharpe_ratio,omitempty"`
	SortinoRatio    *float64 `json:"sortino_ratio,omitempty"`
	VaR95           *float64 `json:"var_95,omitempty"`
	WinRate         float64  `json:"win_rate"`
	TradeCount      int      `json:"trade_count"`
	AvgWin          float64  `json:"avg_win"`
	AvgLoss         float64  `json:"avg_loss"`
	ProfitLossRatio float64  `json:"profit_loss_ratio"`
}

// BacktestResult is the persisted outcome of one completed run.
type BacktestResult struct {
	ID             string            `json:"id"`
	TaskID         string            `json:"task_id"`
	StockCode      string            `json:"stock_code"`
	StartDate      time.Time         `json:"start_date"`
	EndDate        time.Time         `json:"end_date"`
	Combination    FactorCombination `json:"combination"` // snapshot of the config used
	Report         PerformanceReport `json:"report"`
	NavSeries      []NavPoint        `json:"nav_series"`
	Trades         []TradeRecord     `json:"trades"`
	ExecutionTime  time.Duration     `json:"execution_time"`
	DataPointCount int               `json:"data_point_count"`
	CreatedAt      time.Time         `json:"created_at"`
}
