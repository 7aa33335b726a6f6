package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.2", "0.2", 0},
		{"0.1", "0.2", -1},
		{"0.3", "0.2", 1},
		{"0.2", "0.2.0", 0},
		{"0.2.1", "0.2", 1},
		{"1", "0.9.9", 1},
		{"0.10", "0.9", 1},
		{"01.2", "1.2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare_Invalid(t *testing.T) {
	for _, v := range []string{"", "0.x", "1..2", "-1", "v0.2"} {
		t.Run(v, func(t *testing.T) {
			_, err := Compare(v, "0.2")
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
			assert.False(t, Valid(v))
		})
	}
}
