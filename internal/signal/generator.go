package signal

import (
	"math"

	"github.com/wonny/chronos/internal/contracts"
	"github.com/wonny/chronos/pkg/config"
	"github.com/wonny/chronos/pkg/logger"
)

// Thresholds holds the decision boundaries for signal generation.
type Thresholds struct {
	Buy             float64 // composite score at or above which to buy
	Sell            float64 // composite score at or below which to sell
	MinStrength     float64 // below this, downgrade to HOLD
	MaxPositionSize float64 // cap on emitted position size
	MinConfidence   float64 // filter floor
	MinFilterStr    float64 // filter floor for non-HOLD strength
}

// DefaultThresholds returns the standard decision boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Buy:             0.6,
		Sell:            -0.6,
		MinStrength:     0.1,
		MaxPositionSize: 1.0,
		MinConfidence:   0.3,
		MinFilterStr:    0.2,
	}
}

// ThresholdsFromConfig builds thresholds from application config.
func ThresholdsFromConfig(cfg config.SignalConfig) Thresholds {
	return Thresholds{
		Buy:             cfg.BuyThreshold,
		Sell:            cfg.SellThreshold,
		MinStrength:     cfg.MinStrength,
		MaxPositionSize: cfg.MaxPositionSize,
		MinConfidence:   cfg.MinConfidence,
		MinFilterStr:    cfg.MinFilterStr,
	}
}

// Generator converts one snapshot's factor values plus a weighted
// factor combination into a trading signal.
type Generator struct {
	thresholds Thresholds
	logger     *logger.Logger
}

// NewGenerator creates a signal generator.
func NewGenerator(thresholds Thresholds, log *logger.Logger) *Generator {
	return &Generator{
		thresholds: thresholds,
		logger:     log,
	}
}

// Score computes the composite score in [-1,1] along with the
// per-factor normalized scores. Each raw factor value is squashed with
// tanh; the composite is the weight-normalized sum over factors present
// in the snapshot. Factors absent or NaN are excluded from both
// numerator and denominator rather than treated as zero.
func (g *Generator) Score(factorData map[string]float64, combination *contracts.FactorCombination) (float64, map[string]float64) {
	factorScores := make(map[string]float64)

	weightedSum := 0.0
	weightTotal := 0.0

	for _, f := range combination.ActiveFactors() {
		raw, ok := factorData[f.Name]
		if !ok || math.IsNaN(raw) {
			continue
		}

		score := math.Tanh(raw)
		factorScores[f.Name] = score

		weightedSum += score * f.Weight
		weightTotal += f.Weight
	}

	if weightTotal == 0 {
		return 0, factorScores
	}

	composite := weightedSum / weightTotal
	// tanh keeps per-factor scores in (-1,1); the normalized blend
	// cannot escape [-1,1], but guard against float drift anyway.
	return clamp(composite, -1, 1), factorScores
}

// Generate produces the trading signal for one snapshot.
func (g *Generator) Generate(snapshot *contracts.DataSnapshot, combination *contracts.FactorCombination) *contracts.TradingSignal {
	composite, factorScores := g.Score(snapshot.FactorData, combination)

	sig := &contracts.TradingSignal{
		StockCode:      snapshot.StockCode,
		Timestamp:      snapshot.Timestamp,
		CompositeScore: composite,
		FactorScores:   factorScores,
	}

	switch {
	case composite >= g.thresholds.Buy:
		sig.Type = contracts.SignalBuy
	case composite <= g.thresholds.Sell:
		sig.Type = contracts.SignalSell
	default:
		sig.Type = contracts.SignalHold
	}

	strength := math.Min(math.Abs(composite), 1.0)
	if strength < g.thresholds.MinStrength {
		sig.Type = contracts.SignalHold
		strength = 0
	}

	if sig.Type == contracts.SignalHold {
		sig.Strength = 0
		sig.PositionSize = 0
	} else {
		sig.Strength = strength
		sig.PositionSize = math.Min(strength*g.thresholds.MaxPositionSize, g.thresholds.MaxPositionSize)
	}

	sig.Confidence = g.confidence(snapshot, combination, factorScores, composite)

	return sig
}

// confidence blends data completeness (0.3), directional consistency
// of the per-factor scores (0.4), and composite magnitude (0.3).
func (g *Generator) confidence(snapshot *contracts.DataSnapshot, combination *contracts.FactorCombination, factorScores map[string]float64, composite float64) float64 {
	expected := len(combination.ActiveFactors())

	completeness := 0.0
	if expected > 0 {
		completeness = math.Min(float64(len(factorScores))/float64(expected), 1.0)
	}

	consistency := 0.0
	if len(factorScores) > 0 {
		positive, negative := 0, 0
		for _, score := range factorScores {
			if score >= 0 {
				positive++
			} else {
				negative++
			}
		}
		majority := positive
		if negative > majority {
			majority = negative
		}
		consistency = float64(majority) / float64(len(factorScores))
	}

	magnitude := math.Min(math.Abs(composite), 1.0)

	return clamp(0.3*completeness+0.4*consistency+0.3*magnitude, 0, 1)
}

// ApplyFilters rewrites low-quality signals to HOLD while preserving
// confidence and scores for audit.
func (g *Generator) ApplyFilters(sig *contracts.TradingSignal) *contracts.TradingSignal {
	lowConfidence := sig.Confidence < g.thresholds.MinConfidence
	weakDirectional := sig.Type != contracts.SignalHold && sig.Strength < g.thresholds.MinFilterStr

	if lowConfidence || weakDirectional {
		g.logger.WithFields(map[string]interface{}{
			"stock":      sig.StockCode,
			"date":       sig.Timestamp.Format("2006-01-02"),
			"type":       sig.Type,
			"confidence": sig.Confidence,
			"strength":   sig.Strength,
		}).Debug("Signal filtered to HOLD")

		sig.Hold()
		sig.Filtered = true
	}

	return sig
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
