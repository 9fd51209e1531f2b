package solvency

import (
	"math/big"

	"github.com/shopspring/decimal"

	"marginScope/internal/model"
	"marginScope/internal/pricemath"
	"marginScope/internal/valuation"
)

// Iterations is the default bisection depth of each threshold search.
const Iterations = 30

var (
	// Search edges sit 5% inside the representable range so probes stay tick-convertible.
	searchFloor   = new(big.Int).Div(new(big.Int).Mul(pricemath.MinSqrtRatio, big.NewInt(105)), big.NewInt(100))
	searchCeiling = new(big.Int).Div(new(big.Int).Mul(pricemath.MaxSqrtRatio, big.NewInt(100)), big.NewInt(105))
)

// ComputeLiquidationThresholds runs the threshold search with a silent default engine.
func ComputeLiquidationThresholds(account model.Account, positions []model.UniswapPosition, sigma decimal.Decimal) (model.LiquidationThresholds, error) {
	return NewEngine(Config{}, nil).LiquidationThresholds(account, positions, sigma)
}

// LiquidationThresholds returns the prices below and above which the account stops being solvent.
// Both searches start from the account's price clamped into [MinSqrtRatio*1.05, MaxSqrtRatio/1.05].
// For a price outside that window the nearer bound is the window edge, which then lies on the
// other side of the account's own price.
func (e *Engine) LiquidationThresholds(account model.Account, positions []model.UniswapPosition, sigma decimal.Decimal) (model.LiquidationThresholds, error) {
	if err := account.Validate(); err != nil {
		return model.LiquidationThresholds{}, err
	}
	return e.thresholds(account, e.usablePositions(account, positions), sigma)
}

// Report evaluates the account at its own price and searches its thresholds.
// Chain-level fields of the result are left for the caller.
func (e *Engine) Report(account model.Account, positions []model.UniswapPosition, sigma decimal.Decimal) (model.Evaluation, error) {
	if err := account.Validate(); err != nil {
		return model.Evaluation{}, err
	}
	usable := e.usablePositions(account, positions)

	result, summary, err := e.evaluate(account, usable, account.SqrtPriceX96, sigma)
	if err != nil {
		return model.Evaluation{}, err
	}
	thresholds, err := e.thresholds(account, usable, sigma)
	if err != nil {
		return model.Evaluation{}, err
	}

	price := pricemath.SqrtPriceToDecimalPrice(account.SqrtPriceX96, account.Token0.Decimals, account.Token1.Decimals)
	held0 := summary.Fixed0.Add(summary.Fluid0AtCurrent)
	held1 := summary.Fixed1.Add(summary.Fluid1AtCurrent)

	return model.Evaluation{
		Borrower:     account.Borrower,
		Token0:       account.Token0,
		Token1:       account.Token1,
		SqrtPriceX96: account.SqrtPriceX96.String(),
		Price:        price,
		Sigma:        EffectiveSigma(sigma, account.IncludeInterestBearing),
		Positions:    len(usable),
		Assets:       summary,
		Token0Share:  valuation.Composition(held0, held1, price),
		Solvency:     result,
		Thresholds:   thresholds,
	}, nil
}

func (e *Engine) thresholds(account model.Account, positions []model.UniswapPosition, sigma decimal.Decimal) (model.LiquidationThresholds, error) {
	current := new(big.Int).Set(account.SqrtPriceX96)
	if current.Cmp(searchFloor) < 0 {
		current.Set(searchFloor)
	} else if current.Cmp(searchCeiling) > 0 {
		current.Set(searchCeiling)
	}

	solvent := func(sqrtPrice *big.Int) (bool, error) {
		result, _, err := e.evaluate(account, positions, sqrtPrice, sigma)
		if err != nil {
			return false, err
		}
		return result.Solvent(), nil
	}

	lower, err := e.searchLower(current, solvent)
	if err != nil {
		return model.LiquidationThresholds{}, err
	}
	upper, err := e.searchUpper(current, solvent)
	if err != nil {
		return model.LiquidationThresholds{}, err
	}

	decimals0, decimals1 := account.Token0.Decimals, account.Token1.Decimals
	return model.LiquidationThresholds{
		Lower: pricemath.SqrtPriceToDecimalPrice(lower, decimals0, decimals1),
		Upper: pricemath.SqrtPriceToDecimalPrice(upper, decimals0, decimals1),
	}, nil
}

// searchLower bisects [searchFloor, current] and returns the solvent end of the final bracket.
func (e *Engine) searchLower(current *big.Int, solvent func(*big.Int) (bool, error)) (*big.Int, error) {
	low := new(big.Int).Set(searchFloor)
	high := new(big.Int).Set(current)

	ok, err := solvent(low)
	if err != nil || ok {
		return low, err
	}
	for i := 0; i < e.cfg.Iterations; i++ {
		mid := new(big.Int).Add(low, high)
		mid.Rsh(mid, 1)
		ok, err := solvent(mid)
		if err != nil {
			return nil, err
		}
		if ok {
			high = mid
		} else {
			low = mid
		}
	}
	return high, nil
}

// searchUpper bisects [current, searchCeiling] in inverse sqrt price, mirroring searchLower for the
// token0-per-token1 price; the midpoint is the harmonic mean of the bracket.
// The bracket spans up to ~2^64 times the current price, which a linear midpoint cannot resolve
// near current within Iterations steps.
func (e *Engine) searchUpper(current *big.Int, solvent func(*big.Int) (bool, error)) (*big.Int, error) {
	low := new(big.Int).Set(current)
	high := new(big.Int).Set(searchCeiling)

	ok, err := solvent(high)
	if err != nil || ok {
		return high, err
	}
	for i := 0; i < e.cfg.Iterations; i++ {
		mid := harmonicMidpoint(low, high)
		ok, err := solvent(mid)
		if err != nil {
			return nil, err
		}
		if ok {
			low = mid
		} else {
			high = mid
		}
	}
	return low, nil
}

// 2lh / (l + h)
func harmonicMidpoint(low, high *big.Int) *big.Int {
	num := new(big.Int).Mul(low, high)
	num.Lsh(num, 1)
	return num.Quo(num, new(big.Int).Add(low, high))
}
