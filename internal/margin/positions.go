package margin

import (
	"fmt"
	"math/big"

	"marginScope/internal/dex"
)

// tickPair is one entry of a borrower's flat [lower0, upper0, lower1, upper1, ...] list.
// A trailing unpaired tick leaves Upper nil.
type tickPair struct {
	Lower *int32
	Upper *int32
}

func decodeTickPairs(raw []*big.Int) ([]tickPair, error) {
	pairs := make([]tickPair, 0, (len(raw)+1)/2)
	for i := 0; i < len(raw); i += 2 {
		lower, err := dex.Int24FromBig(raw[i])
		if err != nil {
			return nil, fmt.Errorf("position %d lower: %w", i/2, err)
		}
		pair := tickPair{Lower: &lower}
		if i+1 < len(raw) {
			upper, err := dex.Int24FromBig(raw[i+1])
			if err != nil {
				return nil, fmt.Errorf("position %d upper: %w", i/2, err)
			}
			pair.Upper = &upper
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func asTicks(value interface{}) ([]*big.Int, error) {
	switch v := value.(type) {
	case []*big.Int:
		return v, nil
	case []int32:
		out := make([]*big.Int, len(v))
		for i, tick := range v {
			out[i] = big.NewInt(int64(tick))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported tick list type %T", value)
	}
}
