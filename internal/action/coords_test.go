package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoords(t *testing.T) {
	tests := []struct {
		step string
		want [3]float64
		ok   bool
	}{
		{"go to 100 64 -20", [3]float64{100, 64, -20}, true},
		{"move to (12, 70, 8)", [3]float64{12, 70, 8}, true},
		{"head to 1.5 64 -2.25", [3]float64{1.5, 64, -2.25}, true},
		{"go home", [3]float64{}, false},
		{"mine 12 iron ore", [3]float64{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCoords(tt.step)
		require.Equal(t, tt.ok, ok, tt.step)
		if ok {
			assert.Equal(t, tt.want, *got, tt.step)
		}
	}
}

func TestCoordsFromArgs(t *testing.T) {
	got, ok := CoordsFromArgs(map[string]any{"x": 1.0, "y": 64.0, "z": -3.0})
	require.True(t, ok)
	assert.Equal(t, [3]float64{1, 64, -3}, *got)

	got, ok = CoordsFromArgs(map[string]any{"target": []any{5.0, 70.0, 5.0}})
	require.True(t, ok)
	assert.Equal(t, [3]float64{5, 70, 5}, *got)

	_, ok = CoordsFromArgs(map[string]any{"x": 1.0})
	assert.False(t, ok)

	_, ok = CoordsFromArgs(nil)
	assert.False(t, ok)
}
