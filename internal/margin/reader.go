package margin

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marginScope/internal/chain"
	"marginScope/internal/dex"
	"marginScope/internal/model"
	"marginScope/internal/pricemath"
	"marginScope/internal/valuation"
)

// Target identifies a margin account and the contracts it is valued against.
// Zero lender addresses mean the account has no debt or lender shares in that token.
type Target struct {
	Borrower               common.Address
	Pool                   common.Address
	Lender0                common.Address
	Lender1                common.Address
	IncludeInterestBearing bool
}

// Config controls RPC retries.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// State is an account and its positions read at a single block.
type State struct {
	BlockNumber uint64
	Account     model.Account
	Positions   []model.UniswapPosition
}

// Reader loads account snapshots from chain. Token metadata is cached; balances are re-read every time.
type Reader struct {
	cfg     Config
	backend chain.Backend
	tokens  *dex.TokenMetaCache
	logger  *zap.Logger
}

func NewReader(cfg Config, backend chain.Backend, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		cfg:     cfg,
		backend: backend,
		tokens:  dex.NewTokenMetaCache(),
		logger:  logger,
	}
}

// Snapshot reads every input of a solvency evaluation, pinned to the latest block.
func (r *Reader) Snapshot(ctx context.Context, target Target) (State, error) {
	if r.backend == nil {
		return State{}, fmt.Errorf("chain client is nil")
	}

	blockNumber, err := retryValue(ctx, r.cfg, r.backend.LatestBlockNumber)
	if err != nil {
		return State{}, fmt.Errorf("latest block: %w", err)
	}
	block := new(big.Int).SetUint64(blockNumber)

	pool, err := retryValue(ctx, r.cfg, func(ctx context.Context) (dex.PoolState, error) {
		return dex.FetchPoolState(ctx, r.backend, target.Pool, block)
	})
	if err != nil {
		return State{}, fmt.Errorf("pool %s: %w", target.Pool.Hex(), err)
	}

	token0, err := r.tokenMeta(ctx, pool.Token0)
	if err != nil {
		return State{}, fmt.Errorf("token0 %s: %w", pool.Token0.Hex(), err)
	}
	token1, err := r.tokenMeta(ctx, pool.Token1)
	if err != nil {
		return State{}, fmt.Errorf("token1 %s: %w", pool.Token1.Hex(), err)
	}

	assets := model.Assets{
		Token0Interest: decimal.Zero,
		Token1Interest: decimal.Zero,
	}
	liabilities := model.Liabilities{Amount0: decimal.Zero, Amount1: decimal.Zero}

	raw0, err := r.balance(ctx, pool.Token0, target.Borrower, block)
	if err != nil {
		return State{}, fmt.Errorf("token0 balance: %w", err)
	}
	raw1, err := r.balance(ctx, pool.Token1, target.Borrower, block)
	if err != nil {
		return State{}, fmt.Errorf("token1 balance: %w", err)
	}
	assets.Token0Raw = pricemath.FromRaw(raw0, token0.Decimals)
	assets.Token1Raw = pricemath.FromRaw(raw1, token1.Decimals)

	if target.Lender0 != (common.Address{}) {
		liabilities.Amount0, assets.Token0Interest, err = r.lenderPosition(ctx, target.Lender0, target.Borrower, token0.Decimals, block)
		if err != nil {
			return State{}, err
		}
	}
	if target.Lender1 != (common.Address{}) {
		liabilities.Amount1, assets.Token1Interest, err = r.lenderPosition(ctx, target.Lender1, target.Borrower, token1.Decimals, block)
		if err != nil {
			return State{}, err
		}
	}

	positions, err := r.positions(ctx, target, block)
	if err != nil {
		return State{}, err
	}
	assets.Uni0, assets.Uni1 = exposure(positions, pool.Tick, token0.Decimals, token1.Decimals)

	r.logger.Debug("account snapshot",
		zap.String("borrower", target.Borrower.Hex()),
		zap.Uint64("block_number", blockNumber),
		zap.Int("positions", len(positions)),
	)

	return State{
		BlockNumber: blockNumber,
		Account: model.Account{
			Borrower:               target.Borrower.Hex(),
			Token0:                 token0,
			Token1:                 token1,
			Assets:                 assets,
			Liabilities:            liabilities,
			SqrtPriceX96:           pool.SqrtPriceX96,
			IncludeInterestBearing: target.IncludeInterestBearing,
		},
		Positions: positions,
	}, nil
}

func (r *Reader) tokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	return retryValue(ctx, r.cfg, func(ctx context.Context) (model.TokenMeta, error) {
		return dex.CachedTokenMeta(ctx, r.backend, r.tokens, token, r.logger)
	})
}

func (r *Reader) balance(ctx context.Context, token, holder common.Address, block *big.Int) (*big.Int, error) {
	return retryValue(ctx, r.cfg, func(ctx context.Context) (*big.Int, error) {
		return dex.FetchBalance(ctx, r.backend, token, holder, block)
	})
}

// lenderPosition returns the borrower's debt and lender-share value in whole-token units.
func (r *Reader) lenderPosition(ctx context.Context, lender, borrower common.Address, decimals uint8, block *big.Int) (decimal.Decimal, decimal.Decimal, error) {
	parsed, err := lenderABI.Get()
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("parse lender abi: %w", err)
	}
	read := func(method string) (decimal.Decimal, error) {
		raw, err := retryValue(ctx, r.cfg, func(ctx context.Context) (*big.Int, error) {
			values, err := dex.Call(ctx, r.backend, lender, parsed, block, method, borrower)
			if err != nil {
				return nil, err
			}
			return dex.AsBigInt(values[0])
		})
		if err != nil {
			return decimal.Zero, fmt.Errorf("lender %s: %w", lender.Hex(), err)
		}
		return pricemath.FromRaw(raw, decimals), nil
	}

	debt, err := read("borrowBalanceStored")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	shares, err := read("underlyingBalanceStored")
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debt, shares, nil
}

func (r *Reader) positions(ctx context.Context, target Target, block *big.Int) ([]model.UniswapPosition, error) {
	parsed, err := borrowerABI.Get()
	if err != nil {
		return nil, fmt.Errorf("parse borrower abi: %w", err)
	}
	raw, err := retryValue(ctx, r.cfg, func(ctx context.Context) ([]*big.Int, error) {
		values, err := dex.Call(ctx, r.backend, target.Borrower, parsed, block, "getUniswapPositions")
		if err != nil {
			return nil, err
		}
		return asTicks(values[0])
	})
	if err != nil {
		return nil, fmt.Errorf("borrower %s positions: %w", target.Borrower.Hex(), err)
	}

	pairs, err := decodeTickPairs(raw)
	if err != nil {
		return nil, fmt.Errorf("borrower %s positions: %w", target.Borrower.Hex(), err)
	}

	positions := make([]model.UniswapPosition, 0, len(pairs))
	for _, pair := range pairs {
		position := model.UniswapPosition{Liquidity: new(big.Int), Lower: pair.Lower, Upper: pair.Upper}
		if pair.Upper != nil {
			lower, upper := *pair.Lower, *pair.Upper
			liquidity, err := retryValue(ctx, r.cfg, func(ctx context.Context) (*big.Int, error) {
				return dex.FetchPositionLiquidity(ctx, r.backend, target.Pool, target.Borrower, lower, upper, block)
			})
			if err != nil {
				return nil, fmt.Errorf("position [%d, %d]: %w", lower, upper, err)
			}
			position.Liquidity = liquidity
		}
		positions = append(positions, position)
	}
	return positions, nil
}

// exposure sums the token amounts of all valuable positions at the pool tick.
func exposure(positions []model.UniswapPosition, tick int32, decimals0, decimals1 uint8) (decimal.Decimal, decimal.Decimal) {
	total0, total1 := decimal.Zero, decimal.Zero
	for _, position := range positions {
		amount0, amount1, err := valuation.AmountsAtTick(position, tick, decimals0, decimals1)
		if err != nil {
			continue
		}
		total0 = total0.Add(amount0)
		total1 = total1.Add(amount1)
	}
	return total0, total1
}
