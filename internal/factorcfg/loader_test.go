package factorcfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
id: comb_value_momentum
name: value + momentum
factors:
  - name: pe_inverse
    type: fundamental
    weight: 0.4
    active: true
  - name: momentum_20d
    type: technical
    weight: 0.6
    active: true
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "combination.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeTemp(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "comb_value_momentum", c.ID)
	require.Len(t, c.Factors, 2)
	assert.InDelta(t, 1.0, c.TotalWeight(), 1e-9)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	yaml := strings.Replace(validYAML, "name: value + momentum", "name: x\nunknown_key: 1", 1)
	_, err := Parse([]byte(yaml))
	assert.Error(t, err, "unknown field should fail the load")
}

func TestParse_InvalidWeightSum(t *testing.T) {
	yaml := strings.Replace(validYAML, "weight: 0.6", "weight: 0.7", 1)
	_, err := Parse([]byte(yaml))
	assert.Error(t, err, "weights summing to 1.1 should fail validation")
}

func TestParse_MissingID(t *testing.T) {
	yaml := strings.Replace(validYAML, "id: comb_value_momentum", `id: ""`, 1)
	_, err := Parse([]byte(yaml))
	assert.Error(t, err)
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb, "same combination must hash identically")

	b.Factors[0].Weight = 0.5
	b.Factors[1].Weight = 0.5
	hc, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc, "different weights must hash differently")
}
