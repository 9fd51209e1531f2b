package pricemath

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// SignificantDigits bounds the precision of every rational-to-decimal conversion.
const SignificantDigits = 40

// Extra fractional bits kept while taking integer square roots.
const sqrtGuardBits = 64

// SqrtPriceToDecimalPrice converts sqrtPriceX96 into a token1-per-token0 price in whole-token units:
// (s / 2^96)^2 * 10^(decimals0 - decimals1).
func SqrtPriceToDecimalPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}

	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Lsh(big.NewInt(1), 192)
	shift := int(decimals0) - int(decimals1)
	if shift > 0 {
		num.Mul(num, Pow10(shift))
	} else if shift < 0 {
		den.Mul(den, Pow10(-shift))
	}
	return QuoDecimal(num, den)
}

// DecimalPriceToSqrtPrice is the inverse of SqrtPriceToDecimalPrice, rounded down.
// Non-positive prices map to zero.
func DecimalPriceToSqrtPrice(price decimal.Decimal, decimals0, decimals1 uint8) *big.Int {
	if price.Sign() <= 0 {
		return new(big.Int)
	}

	// ratio = coef * 10^exp * 2^192 / 10^(d0-d1), carried with guard bits
	num := new(big.Int).Lsh(price.Coefficient(), 192+2*sqrtGuardBits)
	scaleByPow10(num, int(price.Exponent())-(int(decimals0)-int(decimals1)))
	num.Sqrt(num)
	return num.Rsh(num, sqrtGuardBits)
}

// MulSqrt returns floor(s * sqrt(factor)) computed as floor(sqrt(s^2 * factor)).
// A non-positive factor yields zero.
func MulSqrt(sqrtPriceX96 *big.Int, factor decimal.Decimal) *big.Int {
	if sqrtPriceX96 == nil || factor.Sign() <= 0 {
		return new(big.Int)
	}
	n := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	n.Mul(n, factor.Coefficient())
	scaleByPow10(n, int(factor.Exponent()))
	return n.Sqrt(n)
}

// QuoDecimal returns num/den truncated to SignificantDigits significant digits.
// A zero denominator saturates to zero.
func QuoDecimal(num, den *big.Int) decimal.Decimal {
	if num == nil || den == nil || num.Sign() == 0 || den.Sign() == 0 {
		return decimal.Zero
	}

	shift := SignificantDigits - (digitCount(num) - digitCount(den))
	q := new(big.Int)
	if shift >= 0 {
		q.Mul(num, Pow10(shift))
		q.Quo(q, den)
	} else {
		d := new(big.Int).Mul(den, Pow10(-shift))
		q.Quo(num, d)
	}
	return decimal.NewFromBigInt(q, int32(-shift))
}

// RatToDecimal converts r with the same precision rules as QuoDecimal.
func RatToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return QuoDecimal(r.Num(), r.Denom())
}

// Pow10 returns 10^n for n >= 0.
func Pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// FromRaw converts an integer token amount into whole-token units.
func FromRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

func scaleByPow10(n *big.Int, exp int) {
	if exp > 0 {
		n.Mul(n, Pow10(exp))
	} else if exp < 0 {
		n.Quo(n, Pow10(-exp))
	}
}

func digitCount(n *big.Int) int {
	return len(new(big.Int).Abs(n).Text(10))
}
