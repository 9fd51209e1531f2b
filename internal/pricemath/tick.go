package pricemath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Tick bounds and the sqrt ratios they map to, as defined by Uniswap V3 TickMath.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	MinSqrtRatio = big.NewInt(4295128739)
	MaxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")

	// Q96 is the fixed-point scale of sqrtPriceX96 values.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	ErrInvalidTick      = errors.New("tick out of bounds")
	ErrInvalidSqrtRatio = errors.New("sqrt ratio out of bounds")
)

// sqrt(1.0001^-(2^i)) * 2^128 for i = 1..19; bit 0 is handled by ratioOddTick.
var sqrtRatioMultipliers = [19]*uint256.Int{
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	ratioOddTick  = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	ratioEvenTick = uint256.MustFromHex("0x100000000000000000000000000000000")
	maxUint256    = new(uint256.Int).SetAllOne()
	lowMask32     = uint256.NewInt(0xffffffff)
)

// TickToSqrtPrice returns sqrt(1.0001^tick) * 2^96, matching TickMath.getSqrtRatioAtTick bit for bit.
func TickToSqrtPrice(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrInvalidTick
	}

	absTick := uint64(tick)
	if tick < 0 {
		absTick = uint64(-int64(tick))
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(ratioOddTick)
	} else {
		ratio.Set(ratioEvenTick)
	}
	for i, multiplier := range sqrtRatioMultipliers {
		if absTick&(1<<uint(i+1)) != 0 {
			ratio.Mul(ratio, multiplier)
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the result is never below the true ratio.
	roundUp := !new(uint256.Int).And(ratio, lowMask32).IsZero()
	ratio.Rsh(ratio, 32)
	if roundUp {
		ratio.AddUint64(ratio, 1)
	}
	return ratio.ToBig(), nil
}

// SqrtPriceToTick returns the greatest tick whose sqrt ratio is <= sqrtPriceX96.
func SqrtPriceToTick(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, ErrInvalidSqrtRatio
	}

	// ratio(lo) <= x < ratio(hi)
	lo, hi := MinTick, MaxTick
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		ratio, err := TickToSqrtPrice(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// ClampSqrtPrice pins x into the tick-convertible range [MinSqrtRatio, MaxSqrtRatio-1].
func ClampSqrtPrice(x *big.Int) *big.Int {
	if x == nil || x.Cmp(MinSqrtRatio) < 0 {
		return new(big.Int).Set(MinSqrtRatio)
	}
	if x.Cmp(MaxSqrtRatio) >= 0 {
		return new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
	}
	return new(big.Int).Set(x)
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("pricemath: invalid constant " + s)
	}
	return n
}
