package model

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Assets holds the balances a margin account reports, in whole-token units.
type Assets struct {
	Token0Raw      decimal.Decimal `json:"token0_raw"`
	Token1Raw      decimal.Decimal `json:"token1_raw"`
	Token0Interest decimal.Decimal `json:"token0_interest"`
	Token1Interest decimal.Decimal `json:"token1_interest"`
	Uni0           decimal.Decimal `json:"uni0"`
	Uni1           decimal.Decimal `json:"uni1"`
}

// Liabilities holds the amounts owed in each token.
type Liabilities struct {
	Amount0 decimal.Decimal `json:"amount0"`
	Amount1 decimal.Decimal `json:"amount1"`
}

// Account is an immutable snapshot of a margin account at one block.
type Account struct {
	Borrower     string
	Token0       TokenMeta
	Token1       TokenMeta
	Assets       Assets
	Liabilities  Liabilities
	SqrtPriceX96 *big.Int
	// IncludeInterestBearing counts lender shares as fixed collateral and widens the probe window.
	IncludeInterestBearing bool
}

// Validate reports account-level problems that make evaluation impossible.
func (a Account) Validate() error {
	if a.SqrtPriceX96 == nil || a.SqrtPriceX96.Sign() <= 0 {
		return fmt.Errorf("account %s: sqrt price is missing", a.Borrower)
	}
	if a.Liabilities.Amount0.IsNegative() || a.Liabilities.Amount1.IsNegative() {
		return fmt.Errorf("account %s: negative liabilities", a.Borrower)
	}
	return nil
}
