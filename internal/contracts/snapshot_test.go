package contracts

import (
	"math"
	"testing"
	"time"
)

func snapshotAt(day int, bar PriceBar) *DataSnapshot {
	return &DataSnapshot{
		Timestamp:  time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		StockCode:  "600519",
		Price:      bar,
		FactorData: map[string]float64{"rsi": 0.4},
	}
}

func TestDataSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bar     PriceBar
		wantErr bool
	}{
		{"valid bar", PriceBar{Open: 10, High: 12, Low: 9, Close: 11, Volume: 1000}, false},
		{"flat bar", PriceBar{Open: 10, High: 10, Low: 10, Close: 10, Volume: 0}, false},
		{"zero open", PriceBar{Open: 0, High: 12, Low: 9, Close: 11}, true},
		{"negative close", PriceBar{Open: 10, High: 12, Low: 9, Close: -1}, true},
		{"low above open", PriceBar{Open: 10, High: 12, Low: 11, Close: 11.5}, true},
		{"close above high", PriceBar{Open: 10, High: 12, Low: 9, Close: 13}, true},
		{"open above high", PriceBar{Open: 13, High: 12, Low: 9, Close: 11}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := snapshotAt(2, tt.bar).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDataSnapshot_Validate_FactorMap(t *testing.T) {
	s := snapshotAt(2, PriceBar{Open: 10, High: 12, Low: 9, Close: 11})

	s.FactorData = map[string]float64{}
	if err := s.Validate(); err == nil {
		t.Error("empty factor map should be rejected")
	}

	// A NaN individual value does not invalidate the snapshot; the
	// scorer skips it per factor.
	s.FactorData = map[string]float64{"rsi": math.NaN(), "pe": 0.3}
	if err := s.Validate(); err != nil {
		t.Errorf("NaN factor value should be tolerated: %v", err)
	}
}
