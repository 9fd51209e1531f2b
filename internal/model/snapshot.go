package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"marginScope/internal/pricemath"
)

// Snapshot is the file representation of an account, its positions, and a volatility estimate.
// Big integers are carried as decimal strings.
type Snapshot struct {
	ChainID                uint64           `json:"chain_id"`
	BlockNumber            uint64           `json:"block_number"`
	Borrower               string           `json:"borrower"`
	Token0                 TokenMeta        `json:"token0"`
	Token1                 TokenMeta        `json:"token1"`
	SqrtPriceX96           string           `json:"sqrt_price_x96,omitempty"`
	Price                  *decimal.Decimal `json:"price,omitempty"`
	IncludeInterestBearing bool             `json:"include_interest_bearing"`
	Assets                 Assets           `json:"assets"`
	Liabilities            Liabilities      `json:"liabilities"`
	Positions              []PositionRecord `json:"positions"`
	Sigma                  decimal.Decimal  `json:"sigma"`
}

// PositionRecord is the file form of a UniswapPosition.
type PositionRecord struct {
	Liquidity string `json:"liquidity"`
	Lower     *int32 `json:"lower"`
	Upper     *int32 `json:"upper"`
}

// Decode converts the snapshot into evaluation inputs. When sqrt_price_x96 is absent the
// decimal price is converted instead.
func (s Snapshot) Decode() (Account, []UniswapPosition, decimal.Decimal, error) {
	var sqrtPrice *big.Int
	switch {
	case strings.TrimSpace(s.SqrtPriceX96) != "":
		parsed, err := parseBigInt(s.SqrtPriceX96)
		if err != nil {
			return Account{}, nil, decimal.Zero, fmt.Errorf("sqrt_price_x96: %w", err)
		}
		sqrtPrice = parsed
	case s.Price != nil:
		sqrtPrice = pricemath.DecimalPriceToSqrtPrice(*s.Price, s.Token0.Decimals, s.Token1.Decimals)
	default:
		return Account{}, nil, decimal.Zero, fmt.Errorf("snapshot needs sqrt_price_x96 or price")
	}

	account := Account{
		Borrower:               s.Borrower,
		Token0:                 s.Token0,
		Token1:                 s.Token1,
		Assets:                 s.Assets,
		Liabilities:            s.Liabilities,
		SqrtPriceX96:           sqrtPrice,
		IncludeInterestBearing: s.IncludeInterestBearing,
	}
	if err := account.Validate(); err != nil {
		return Account{}, nil, decimal.Zero, err
	}

	positions := make([]UniswapPosition, 0, len(s.Positions))
	for i, record := range s.Positions {
		liquidity, err := parseBigInt(record.Liquidity)
		if err != nil {
			return Account{}, nil, decimal.Zero, fmt.Errorf("position %d liquidity: %w", i, err)
		}
		positions = append(positions, UniswapPosition{
			Liquidity: liquidity,
			Lower:     record.Lower,
			Upper:     record.Upper,
		})
	}

	return account, positions, s.Sigma, nil
}

func parseBigInt(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative int: %s", value)
	}
	return parsed, nil
}
