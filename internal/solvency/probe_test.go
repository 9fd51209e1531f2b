package solvency

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marginScope/internal/pricemath"
)

func TestEffectiveSigma(t *testing.T) {
	cases := []struct {
		sigma string
		widen bool
		want  string
	}{
		{"0.01", false, "0.04"},
		{"-1", false, "0.04"},
		{"0.05", false, "0.1"},
		{"0.5", false, "0.3"},
	}
	for _, tc := range cases {
		got := EffectiveSigma(decimal.RequireFromString(tc.sigma), tc.widen)
		require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "sigma %s: got %s", tc.sigma, got)
	}

	widened := EffectiveSigma(MaxSigma, true)
	require.True(t, widened.GreaterThan(one), "widened max sigma %s", widened)
	require.True(t, widened.Sub(decimal.RequireFromString("1.4696938456699")).Abs().LessThan(decimal.New(1, -12)))
}

func TestSqrt24(t *testing.T) {
	diff := sqrt24.Mul(sqrt24).Sub(decimal.NewFromInt(24)).Abs()
	require.True(t, diff.LessThan(decimal.New(1, -28)), "sqrt24^2 off by %s", diff)
}

func TestProbePrices(t *testing.T) {
	a, b := ProbePrices(pricemath.Q96, decimal.RequireFromString("0.02"), false)
	require.Equal(t, 0, a.Cmp(pricemath.MulSqrt(pricemath.Q96, decimal.RequireFromString("0.96"))))
	require.Equal(t, 0, b.Cmp(pricemath.MulSqrt(pricemath.Q96, decimal.RequireFromString("1.04"))))
	require.Equal(t, -1, a.Cmp(pricemath.Q96))
	require.Equal(t, 1, b.Cmp(pricemath.Q96))
}

func TestProbePricesClamp(t *testing.T) {
	a, b := ProbePrices(pricemath.Q96, MaxSigma, true)
	require.Equal(t, 0, a.Cmp(pricemath.MinSqrtRatio), "lower probe pinned to floor")
	require.Equal(t, 1, b.Cmp(pricemath.Q96))

	top := new(big.Int).Sub(pricemath.MaxSqrtRatio, big.NewInt(1))
	_, b = ProbePrices(top, MaxSigma, false)
	require.Equal(t, 0, b.Cmp(top))

	a, _ = ProbePrices(pricemath.MinSqrtRatio, MaxSigma, false)
	require.Equal(t, 0, a.Cmp(pricemath.MinSqrtRatio))
}
