package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionIncrement(t *testing.T) {
	v := Version{}
	v.Increment()
	assert.Equal(t, Version{0, 0, 1}, v)

	// repeated increments apply in sequence
	for i := 0; i < 8; i++ {
		v.Increment()
	}
	assert.Equal(t, Version{0, 0, 9}, v)
}

func TestVersionIncrementRollover(t *testing.T) {
	tests := []struct {
		name     string
		start    Version
		expected Version
	}{
		{
			name:     "patch rolls into minor",
			start:    Version{0, 0, 9},
			expected: Version{0, 1, 0},
		},
		{
			name:     "minor rolls into major",
			start:    Version{0, 9, 9},
			expected: Version{1, 0, 0},
		},
		{
			name:     "no rollover below threshold",
			start:    Version{2, 3, 4},
			expected: Version{2, 3, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.start
			v.Increment()
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "v0.0.0", Version{}.String())
	assert.Equal(t, "v1.2.3", Version{1, 2, 3}.String())
}
