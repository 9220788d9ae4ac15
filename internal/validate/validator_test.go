package validate

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestValidatorRejectsBadValues(t *testing.T) {
	t.Parallel()

	v := NewValidator(zerolog.Nop())

	cases := []struct {
		name string
		raw  float64
	}{
		{"nan", math.NaN()},
		{"positive infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
		{"zero", 0},
		{"negative", -12.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(tc.raw, "alpha_vantage", "AAPL")
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidPrice))
		})
	}
}

func TestValidatorAcceptsPositiveFinite(t *testing.T) {
	t.Parallel()

	v := NewValidator(zerolog.Nop())

	price, err := v.Validate(187.42, "yahoo_finance", "AAPL")
	require.NoError(t, err)
	require.Equal(t, "187.42", price.String())
}
