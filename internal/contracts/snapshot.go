package contracts

import (
	"fmt"
	"time"
)

// PriceBar holds one trading day's OHLCV fields.
type PriceBar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Amount float64 `json:"amount"`
}

// DataSnapshot is one trading day's price and factor data for one stock,
// containing only information knowable on that date. Never mutated after
// validation.
type DataSnapshot struct {
	Timestamp  time.Time          `json:"timestamp"`
	StockCode  string             `json:"stock_code"`
	Price      PriceBar           `json:"price"`
	FactorData map[string]float64 `json:"factor_data"`
}

// Validate rejects snapshots with impossible price bars or an empty
// factor map. Missing or NaN individual factor values are tolerated;
// the scorer excludes them per factor.
func (s *DataSnapshot) Validate() error {
	p := s.Price
	if p.Open <= 0 || p.High <= 0 || p.Low <= 0 || p.Close <= 0 {
		return fmt.Errorf("snapshot %s %s: non-positive OHLC (o=%.2f h=%.2f l=%.2f c=%.2f)",
			s.StockCode, s.Timestamp.Format("2006-01-02"), p.Open, p.High, p.Low, p.Close)
	}
	if p.Low > p.Open || p.Low > p.Close || p.Open > p.High || p.Close > p.High {
		return fmt.Errorf("snapshot %s %s: OHLC out of range (o=%.2f h=%.2f l=%.2f c=%.2f)",
			s.StockCode, s.Timestamp.Format("2006-01-02"), p.Open, p.High, p.Low, p.Close)
	}
	if len(s.FactorData) == 0 {
		return fmt.Errorf("snapshot %s %s: empty factor map",
			s.StockCode, s.Timestamp.Format("2006-01-02"))
	}
	return nil
}
