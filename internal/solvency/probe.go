package solvency

import (
	"math/big"

	"github.com/shopspring/decimal"

	"marginScope/internal/pricemath"
)

var (
	MinSigma = decimal.RequireFromString("0.02")
	MaxSigma = decimal.RequireFromString("0.15")
	SigmaB   = decimal.NewFromInt(2)

	// sqrt(24) to 30 decimal places; scales a single observation up to a day-long window.
	sqrt24 = func() decimal.Decimal {
		n := new(big.Int).Mul(big.NewInt(24), pricemath.Pow10(60))
		return decimal.NewFromBigInt(n.Sqrt(n), -30)
	}()

	one = decimal.NewFromInt(1)
)

// EffectiveSigma clamps sigma into [MinSigma, MaxSigma] and applies the stress multipliers.
func EffectiveSigma(sigma decimal.Decimal, widen bool) decimal.Decimal {
	clamped := decimal.Min(decimal.Max(sigma, MinSigma), MaxSigma)
	effective := clamped.Mul(SigmaB)
	if widen {
		effective = effective.Mul(sqrt24)
	}
	return effective
}

// ProbePrices returns the stressed sqrt prices s*sqrt(1-σ') and s*sqrt(1+σ').
// Both are clamped into the tick-convertible range; when σ' >= 1 the lower probe is MinSqrtRatio.
func ProbePrices(sqrtPriceX96 *big.Int, sigma decimal.Decimal, widen bool) (*big.Int, *big.Int) {
	effective := EffectiveSigma(sigma, widen)

	var a *big.Int
	if down := one.Sub(effective); down.Sign() > 0 {
		a = pricemath.ClampSqrtPrice(pricemath.MulSqrt(sqrtPriceX96, down))
	} else {
		a = new(big.Int).Set(pricemath.MinSqrtRatio)
	}
	b := pricemath.ClampSqrtPrice(pricemath.MulSqrt(sqrtPriceX96, one.Add(effective)))
	return a, b
}
