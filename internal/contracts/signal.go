package contracts

import "time"

// SignalType is the trading decision for one snapshot.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// TradingSignal is the scored decision produced for one snapshot and
// consumed immediately by the portfolio simulator.
//
// Invariant: HOLD implies Strength == 0 and PositionSize == 0.
type TradingSignal struct {
	StockCode      string             `json:"stock_code"`
	Timestamp      time.Time          `json:"timestamp"`
	Type           SignalType         `json:"signal_type"`
	Strength       float64            `json:"strength"`        // [0,1]
	PositionSize   float64            `json:"position_size"`   // [0,1], fraction of capital
	Confidence     float64            `json:"confidence"`      // [0,1]
	CompositeScore float64            `json:"composite_score"` // [-1,1]
	FactorScores   map[string]float64 `json:"factor_scores"`
	Filtered       bool               `json:"filtered,omitempty"` // rewritten to HOLD by the quality filter
}

// Hold rewrites the signal to HOLD, zeroing strength and size while
// preserving confidence and scores for audit.
func (s *TradingSignal) Hold() {
	s.Type = SignalHold
	s.Strength = 0
	s.PositionSize = 0
}
