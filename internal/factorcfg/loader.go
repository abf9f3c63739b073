package factorcfg

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/chronos/internal/contracts"
)

// File is the YAML shape of a factor combination definition.
type File struct {
	ID      string                   `yaml:"id" json:"id"`
	Name    string                   `yaml:"name" json:"name"`
	Factors []contracts.FactorConfig `yaml:"factors" json:"factors"`
}

// Load reads a combination from a YAML file. KnownFields(true) makes a
// typo in a field name a load error instead of a silently dropped key.
func Load(path string) (*contracts.FactorCombination, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates combination YAML.
func Parse(data []byte) (*contracts.FactorCombination, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode combination yaml: %w", err)
	}

	if f.ID == "" {
		return nil, contracts.ValidationError{Field: "id", Message: "required"}
	}
	return contracts.NewFactorCombination(f.ID, f.Name, f.Factors)
}

// Hash produces a reproducible identity for a combination so two runs
// can be compared on exactly what they were configured with. Structs
// marshal with deterministic field order; maps would not.
func Hash(c *contracts.FactorCombination) (string, error) {
	jsonBytes, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
