package solvency

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marginScope/internal/model"
	"marginScope/internal/pricemath"
	"marginScope/internal/valuation"
)

var (
	// SafetyMargin inflates both liabilities before comparison.
	SafetyMargin = decimal.RequireFromString("1.005")
	// LiquidationIncentive is the share of each shortfall a liquidator is paid.
	LiquidationIncentive = decimal.RequireFromString("0.05")
)

// Config controls the threshold search.
type Config struct {
	Iterations int
}

// Engine evaluates account solvency. It holds no state between calls and is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine builds an engine; a nil logger discards position warnings.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = Iterations
	}
	return &Engine{cfg: cfg, logger: logger}
}

// EvaluateSolvency checks an account at sqrtPriceX96 with a silent default engine.
func EvaluateSolvency(account model.Account, positions []model.UniswapPosition, sqrtPriceX96 *big.Int, sigma decimal.Decimal) (model.Solvency, error) {
	return NewEngine(Config{}, nil).Evaluate(account, positions, sqrtPriceX96, sigma)
}

// Evaluate reports solvency at the two probe prices around sqrtPriceX96.
func (e *Engine) Evaluate(account model.Account, positions []model.UniswapPosition, sqrtPriceX96 *big.Int, sigma decimal.Decimal) (model.Solvency, error) {
	result, _, err := e.evaluate(account, e.usablePositions(account, positions), sqrtPriceX96, sigma)
	return result, err
}

// Assets values fixed balances and every usable position at the probes a, b and the current price c.
func (e *Engine) Assets(account model.Account, positions []model.UniswapPosition, a, b, c *big.Int) (model.AssetSummary, error) {
	return e.assets(account, e.usablePositions(account, positions), a, b, c)
}

func (e *Engine) evaluate(account model.Account, positions []model.UniswapPosition, c *big.Int, sigma decimal.Decimal) (model.Solvency, model.AssetSummary, error) {
	if c == nil || c.Sign() <= 0 {
		return model.Solvency{}, model.AssetSummary{}, fmt.Errorf("evaluate %s: sqrt price is missing", account.Borrower)
	}
	if c.Cmp(pricemath.MinSqrtRatio) < 0 || c.Cmp(pricemath.MaxSqrtRatio) >= 0 {
		return model.Solvency{}, model.AssetSummary{}, fmt.Errorf("evaluate %s: %w", account.Borrower, pricemath.ErrInvalidSqrtRatio)
	}
	a, b := ProbePrices(c, sigma, account.IncludeInterestBearing)

	summary, err := e.assets(account, positions, a, b, c)
	if err != nil {
		return model.Solvency{}, model.AssetSummary{}, err
	}

	decimals0, decimals1 := account.Token0.Decimals, account.Token1.Decimals
	price := pricemath.SqrtPriceToDecimalPrice(c, decimals0, decimals1)

	incentive := decimal.Zero
	liabilities0 := account.Liabilities.Amount0
	liabilities1 := account.Liabilities.Amount1
	if held0 := summary.Fixed0.Add(summary.Fluid0AtCurrent); liabilities0.GreaterThan(held0) {
		incentive = incentive.Add(LiquidationIncentive.Mul(liabilities0.Sub(held0)).Mul(price))
	}
	if held1 := summary.Fixed1.Add(summary.Fluid1AtCurrent); liabilities1.GreaterThan(held1) {
		incentive = incentive.Add(LiquidationIncentive.Mul(liabilities1.Sub(held1)))
	}
	liabilities0 = liabilities0.Mul(SafetyMargin)
	liabilities1 = liabilities1.Mul(SafetyMargin).Add(incentive)

	solventAt := func(probe *big.Int, fluid1 decimal.Decimal) bool {
		probePrice := pricemath.SqrtPriceToDecimalPrice(probe, decimals0, decimals1)
		assets := fluid1.Add(summary.Fixed1).Add(summary.Fixed0.Mul(probePrice))
		owed := liabilities1.Add(liabilities0.Mul(probePrice))
		return assets.GreaterThanOrEqual(owed)
	}

	return model.Solvency{
		SolventAtLower: solventAt(a, summary.Fluid1AtLowerProbe),
		SolventAtUpper: solventAt(b, summary.Fluid1AtUpperProbe),
	}, summary, nil
}

func (e *Engine) assets(account model.Account, positions []model.UniswapPosition, a, b, c *big.Int) (model.AssetSummary, error) {
	summary := model.AssetSummary{
		Fixed0:             account.Assets.Token0Raw,
		Fixed1:             account.Assets.Token1Raw,
		Fluid1AtLowerProbe: decimal.Zero,
		Fluid1AtUpperProbe: decimal.Zero,
		Fluid0AtCurrent:    decimal.Zero,
		Fluid1AtCurrent:    decimal.Zero,
	}
	if account.IncludeInterestBearing {
		summary.Fixed0 = summary.Fixed0.Add(account.Assets.Token0Interest)
		summary.Fixed1 = summary.Fixed1.Add(account.Assets.Token1Interest)
	}
	if len(positions) == 0 {
		return summary, nil
	}

	ticks := make([]int32, 0, 3)
	for _, sqrtPrice := range []*big.Int{a, b, c} {
		tick, err := pricemath.SqrtPriceToTick(sqrtPrice)
		if err != nil {
			return model.AssetSummary{}, fmt.Errorf("evaluate %s: %w", account.Borrower, err)
		}
		ticks = append(ticks, tick)
	}
	tickA, tickB, tickC := ticks[0], ticks[1], ticks[2]

	decimals0, decimals1 := account.Token0.Decimals, account.Token1.Decimals
	for _, position := range positions {
		valueA, err := valuation.ValueAtTick(position, tickA, decimals0, decimals1)
		if err != nil {
			return model.AssetSummary{}, err
		}
		valueB, err := valuation.ValueAtTick(position, tickB, decimals0, decimals1)
		if err != nil {
			return model.AssetSummary{}, err
		}
		amount0, amount1, err := valuation.AmountsAtTick(position, tickC, decimals0, decimals1)
		if err != nil {
			return model.AssetSummary{}, err
		}
		summary.Fluid1AtLowerProbe = summary.Fluid1AtLowerProbe.Add(valueA)
		summary.Fluid1AtUpperProbe = summary.Fluid1AtUpperProbe.Add(valueB)
		summary.Fluid0AtCurrent = summary.Fluid0AtCurrent.Add(amount0)
		summary.Fluid1AtCurrent = summary.Fluid1AtCurrent.Add(amount1)
	}
	return summary, nil
}

// usablePositions drops positions that cannot be valued, logging each one.
func (e *Engine) usablePositions(account model.Account, positions []model.UniswapPosition) []model.UniswapPosition {
	usable := make([]model.UniswapPosition, 0, len(positions))
	for i, position := range positions {
		if err := valuation.Validate(position); err != nil {
			e.logger.Warn("skip position",
				zap.String("borrower", account.Borrower),
				zap.Int("index", i),
				zap.String("reason", err.Error()),
			)
			continue
		}
		usable = append(usable, position)
	}
	return usable
}
