package valuation

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"marginScope/internal/model"
	"marginScope/internal/pricemath"
)

var (
	ErrMissingBound    = errors.New("position bound is missing")
	ErrDegenerateRange = errors.New("position range has zero width")
	ErrInvalidRange    = errors.New("position range is invalid")
)

// AmountsAtTick returns the token0/token1 amounts (whole-token units) held by a position when the
// pool sits at evalTick. A zero-width range yields (0, 0) together with ErrDegenerateRange.
func AmountsAtTick(position model.UniswapPosition, evalTick int32, decimals0, decimals1 uint8) (decimal.Decimal, decimal.Decimal, error) {
	raw0, raw1, err := rawAmountsAtTick(position, evalTick)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	amount0 := pricemath.QuoDecimal(raw0.Num(), new(big.Int).Mul(raw0.Denom(), pricemath.Pow10(int(decimals0))))
	amount1 := pricemath.QuoDecimal(raw1.Num(), new(big.Int).Mul(raw1.Denom(), pricemath.Pow10(int(decimals1))))
	return amount0, amount1, nil
}

// ValueAtTick values a position in token1 using the price at evalTick.
// Any input the amount math rejects values at zero.
func ValueAtTick(position model.UniswapPosition, evalTick int32, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	amount0, amount1, err := AmountsAtTick(position, evalTick, decimals0, decimals1)
	if err != nil {
		return decimal.Zero, err
	}
	if amount0.IsZero() {
		return amount1, nil
	}
	sqrtPrice, err := pricemath.TickToSqrtPrice(evalTick)
	if err != nil {
		return decimal.Zero, err
	}
	price := pricemath.SqrtPriceToDecimalPrice(sqrtPrice, decimals0, decimals1)
	return amount0.Mul(price).Add(amount1), nil
}

// Composition returns the share of value held in token0, in [0, 1].
// A zero total saturates to zero.
func Composition(amount0, amount1, price decimal.Decimal) decimal.Decimal {
	value0 := amount0.Mul(price)
	total := value0.Add(amount1)
	if total.Sign() <= 0 {
		return decimal.Zero
	}
	return value0.DivRound(total, 18)
}

// Validate reports why a position cannot be valued. Zero liquidity is valid.
func Validate(position model.UniswapPosition) error {
	_, _, err := checkRange(position)
	return err
}

func rawAmountsAtTick(position model.UniswapPosition, evalTick int32) (*big.Rat, *big.Rat, error) {
	lower, upper, err := checkRange(position)
	if err != nil {
		return new(big.Rat), new(big.Rat), err
	}
	liquidity := position.Liquidity
	if liquidity == nil || liquidity.Sign() <= 0 {
		return new(big.Rat), new(big.Rat), nil
	}

	sqrtLower, err := pricemath.TickToSqrtPrice(lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := pricemath.TickToSqrtPrice(upper)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case evalTick < lower:
		return amount0Delta(liquidity, sqrtLower, sqrtUpper), new(big.Rat), nil
	case evalTick >= upper:
		return new(big.Rat), amount1Delta(liquidity, sqrtLower, sqrtUpper), nil
	default:
		sqrtCurrent, err := pricemath.TickToSqrtPrice(evalTick)
		if err != nil {
			return nil, nil, err
		}
		return amount0Delta(liquidity, sqrtCurrent, sqrtUpper), amount1Delta(liquidity, sqrtLower, sqrtCurrent), nil
	}
}

func checkRange(position model.UniswapPosition) (int32, int32, error) {
	if position.Lower == nil || position.Upper == nil {
		return 0, 0, ErrMissingBound
	}
	lower, upper := *position.Lower, *position.Upper
	if lower == upper {
		return 0, 0, ErrDegenerateRange
	}
	if lower > upper || lower < pricemath.MinTick || upper > pricemath.MaxTick {
		return 0, 0, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, lower, upper)
	}
	return lower, upper, nil
}

// L * Q96 * (sB - sA) / (sA * sB)
func amount0Delta(liquidity, sqrtA, sqrtB *big.Int) *big.Rat {
	num := new(big.Int).Sub(sqrtB, sqrtA)
	num.Mul(num, liquidity)
	num.Mul(num, pricemath.Q96)
	den := new(big.Int).Mul(sqrtA, sqrtB)
	return new(big.Rat).SetFrac(num, den)
}

// L * (sB - sA) / Q96
func amount1Delta(liquidity, sqrtA, sqrtB *big.Int) *big.Rat {
	num := new(big.Int).Sub(sqrtB, sqrtA)
	num.Mul(num, liquidity)
	return new(big.Rat).SetFrac(num, pricemath.Q96)
}
