package pricemath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTickToSqrtPriceKnownValues(t *testing.T) {
	atZero, err := TickToSqrtPrice(0)
	require.NoError(t, err)
	require.Equal(t, 0, atZero.Cmp(Q96), "tick 0 should be 2^96, got %s", atZero)

	atMin, err := TickToSqrtPrice(MinTick)
	require.NoError(t, err)
	require.Equal(t, 0, atMin.Cmp(MinSqrtRatio), "min tick: %s", atMin)

	atMax, err := TickToSqrtPrice(MaxTick)
	require.NoError(t, err)
	require.Equal(t, 0, atMax.Cmp(MaxSqrtRatio), "max tick: %s", atMax)

	got, err := TickToSqrtPrice(-249428)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("304011615425126403287043", 10)
	require.Equal(t, 0, got.Cmp(want), "tick -249428: %s", got)
}

func TestTickToSqrtPriceOutOfRange(t *testing.T) {
	for _, tick := range []int32{MinTick - 1, MaxTick + 1} {
		if _, err := TickToSqrtPrice(tick); !errors.Is(err, ErrInvalidTick) {
			t.Fatalf("tick %d: expected ErrInvalidTick, got %v", tick, err)
		}
	}
}

func TestTickToSqrtPriceMonotonic(t *testing.T) {
	prev, err := TickToSqrtPrice(-1000)
	require.NoError(t, err)
	for tick := int32(-999); tick <= 1000; tick++ {
		cur, err := TickToSqrtPrice(tick)
		require.NoError(t, err)
		require.Equal(t, 1, cur.Cmp(prev), "tick %d not above tick %d", tick, tick-1)
		prev = cur
	}
}

func TestSqrtPriceToTickRoundTrip(t *testing.T) {
	ticks := []int32{
		MinTick, MinTick + 1, -500000, -249428, -887, -60, -1, 0, 1, 60, 887,
		123456, 500000, MaxTick - 1,
	}
	for step := MinTick; step < MaxTick; step += 17749 {
		ticks = append(ticks, step)
	}

	for _, tick := range ticks {
		ratio, err := TickToSqrtPrice(tick)
		require.NoError(t, err)

		got, err := SqrtPriceToTick(ratio)
		require.NoError(t, err)
		require.Equal(t, tick, got, "exact ratio")

		above := new(big.Int).Add(ratio, big.NewInt(1))
		got, err = SqrtPriceToTick(above)
		require.NoError(t, err)
		require.Equal(t, tick, got, "ratio+1")

		if tick > MinTick {
			below := new(big.Int).Sub(ratio, big.NewInt(1))
			got, err = SqrtPriceToTick(below)
			require.NoError(t, err)
			require.Equal(t, tick-1, got, "ratio-1")
		}
	}
}

func TestSqrtPriceToTickOutOfRange(t *testing.T) {
	cases := []*big.Int{
		nil,
		new(big.Int).Sub(MinSqrtRatio, big.NewInt(1)),
		new(big.Int).Set(MaxSqrtRatio),
	}
	for _, tc := range cases {
		if _, err := SqrtPriceToTick(tc); !errors.Is(err, ErrInvalidSqrtRatio) {
			t.Fatalf("%v: expected ErrInvalidSqrtRatio, got %v", tc, err)
		}
	}
}

func TestClampSqrtPrice(t *testing.T) {
	require.Equal(t, 0, ClampSqrtPrice(big.NewInt(1)).Cmp(MinSqrtRatio))
	require.Equal(t, 0, ClampSqrtPrice(nil).Cmp(MinSqrtRatio))

	maxInclusive := new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
	require.Equal(t, 0, ClampSqrtPrice(new(big.Int).Lsh(MaxSqrtRatio, 2)).Cmp(maxInclusive))
	require.Equal(t, 0, ClampSqrtPrice(Q96).Cmp(Q96))
}
