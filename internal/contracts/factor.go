package contracts

import (
	"fmt"
	"math"
)

// FactorType classifies the source of a factor reading.
type FactorType string

const (
	FactorTechnical   FactorType = "technical"
	FactorFundamental FactorType = "fundamental"
	FactorMarket      FactorType = "market"
	FactorSentiment   FactorType = "sentiment"
	FactorMacro       FactorType = "macro"
)

// Valid reports whether t is a known factor type.
func (t FactorType) Valid() bool {
	switch t {
	case FactorTechnical, FactorFundamental, FactorMarket, FactorSentiment, FactorMacro:
		return true
	}
	return false
}

// WeightSumTolerance is the allowed deviation of the active weight sum from 1.0.
const WeightSumTolerance = 1e-3

// FactorConfig is one weighted factor inside a combination.
type FactorConfig struct {
	Name   string     `json:"name" yaml:"name"`
	Type   FactorType `json:"type" yaml:"type"`
	Weight float64    `json:"weight" yaml:"weight"`
	Active bool       `json:"active" yaml:"active"`
}

// FactorCombination is a named, validated set of weighted factors.
// Read-only for the duration of a run.
type FactorCombination struct {
	ID      string         `json:"id" yaml:"id"`
	Name    string         `json:"name" yaml:"name"`
	Factors []FactorConfig `json:"factors" yaml:"factors"`
}

// NewFactorCombination builds and validates a combination.
func NewFactorCombination(id, name string, factors []FactorConfig) (*FactorCombination, error) {
	c := &FactorCombination{ID: id, Name: name, Factors: factors}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks factor names, types, weight ranges, and that the
// active weights sum to 1.0 within tolerance.
func (c *FactorCombination) Validate() error {
	if len(c.Factors) == 0 {
		return ValidationError{Field: "factors", Message: "at least one factor is required"}
	}

	seen := make(map[string]bool, len(c.Factors))
	for _, f := range c.Factors {
		if f.Name == "" {
			return ValidationError{Field: "factors", Message: "factor name is required"}
		}
		if seen[f.Name] {
			return ValidationError{Field: "factors", Message: fmt.Sprintf("duplicate factor name %q", f.Name)}
		}
		seen[f.Name] = true

		if !f.Type.Valid() {
			return ValidationError{Field: "factors", Message: fmt.Sprintf("factor %q: unknown type %q", f.Name, f.Type)}
		}
		if f.Weight < 0 || f.Weight > 1 {
			return ValidationError{Field: "factors", Message: fmt.Sprintf("factor %q: weight %.4f outside [0,1]", f.Name, f.Weight)}
		}
	}

	sum := c.TotalWeight()
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return ValidationError{
			Field:   "factors",
			Message: fmt.Sprintf("active weights sum to %.4f, expected 1.0 (tolerance %g)", sum, WeightSumTolerance),
		}
	}

	return nil
}

// TotalWeight returns the sum of active factor weights.
func (c *FactorCombination) TotalWeight() float64 {
	sum := 0.0
	for _, f := range c.Factors {
		if f.Active {
			sum += f.Weight
		}
	}
	return sum
}

// ActiveFactors returns the factors participating in scoring.
func (c *FactorCombination) ActiveFactors() []FactorConfig {
	active := make([]FactorConfig, 0, len(c.Factors))
	for _, f := range c.Factors {
		if f.Active {
			active = append(active, f)
		}
	}
	return active
}

// FactorNames returns the names of active factors, in declaration order.
func (c *FactorCombination) FactorNames() []string {
	names := make([]string, 0, len(c.Factors))
	for _, f := range c.Factors {
		if f.Active {
			names = append(names, f.Name)
		}
	}
	return names
}
