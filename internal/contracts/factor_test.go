package contracts

import (
	"strings"
	"testing"
)

func TestFactorCombination_Validate(t *testing.T) {
	tests := []struct {
		name    string
		factors []FactorConfig
		wantErr string // substring of the expected error, empty for valid
	}{
		{
			name: "valid single factor",
			factors: []FactorConfig{
				{Name: "rsi", Type: FactorTechnical, Weight: 1.0, Active: true},
			},
		},
		{
			name: "valid multi factor",
			factors: []FactorConfig{
				{Name: "rsi", Type: FactorTechnical, Weight: 0.4, Active: true},
				{Name: "pe_ratio", Type: FactorFundamental, Weight: 0.35, Active: true},
				{Name: "news_sentiment", Type: FactorSentiment, Weight: 0.25, Active: true},
			},
		},
		{
			name: "within tolerance",
			factors: []FactorConfig{
				{Name: "a", Type: FactorTechnical, Weight: 0.5004, Active: true},
				{Name: "b", Type: FactorMarket, Weight: 0.5, Active: true},
			},
		},
		{
			name: "weights sum to 1.1",
			factors: []FactorConfig{
				{Name: "a", Type: FactorTechnical, Weight: 0.5, Active: true},
				{Name: "b", Type: FactorMarket, Weight: 0.6, Active: true},
			},
			wantErr: "weights sum to 1.1",
		},
		{
			name: "inactive factors excluded from sum",
			factors: []FactorConfig{
				{Name: "a", Type: FactorTechnical, Weight: 0.5, Active: true},
				{Name: "b", Type: FactorMarket, Weight: 0.5, Active: true},
				{Name: "c", Type: FactorMacro, Weight: 0.9, Active: false},
			},
		},
		{
			name: "duplicate names",
			factors: []FactorConfig{
				{Name: "rsi", Type: FactorTechnical, Weight: 0.5, Active: true},
				{Name: "rsi", Type: FactorMarket, Weight: 0.5, Active: true},
			},
			wantErr: "duplicate factor name",
		},
		{
			name: "unknown type",
			factors: []FactorConfig{
				{Name: "x", Type: FactorType("quantum"), Weight: 1.0, Active: true},
			},
			wantErr: "unknown type",
		},
		{
			name: "weight out of range",
			factors: []FactorConfig{
				{Name: "x", Type: FactorTechnical, Weight: 1.2, Active: true},
			},
			wantErr: "outside [0,1]",
		},
		{
			name:    "no factors",
			factors: nil,
			wantErr: "at least one factor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactorCombination("c1", tt.name, tt.factors)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFactorCombination_ActiveFactors(t *testing.T) {
	c := &FactorCombination{
		ID:   "c1",
		Name: "mixed",
		Factors: []FactorConfig{
			{Name: "a", Type: FactorTechnical, Weight: 0.6, Active: true},
			{Name: "b", Type: FactorMarket, Weight: 0.4, Active: true},
			{Name: "c", Type: FactorMacro, Weight: 0.3, Active: false},
		},
	}

	active := c.ActiveFactors()
	if len(active) != 2 {
		t.Fatalf("ActiveFactors() returned %d factors, want 2", len(active))
	}

	names := c.FactorNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("FactorNames() = %v, want [a b]", names)
	}
}
