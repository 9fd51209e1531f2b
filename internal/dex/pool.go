package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolState is the part of a V3 pool an account valuation needs.
type PoolState struct {
	Token0       common.Address
	Token1       common.Address
	SqrtPriceX96 *big.Int
	Tick         int32
}

// FetchPoolState reads the pool tokens and slot0 at block.
func FetchPoolState(ctx context.Context, caller ethereum.ContractCaller, pool common.Address, block *big.Int) (PoolState, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var state PoolState
	values, err := Call(ctx, caller, pool, poolABI, block, "token0")
	if err != nil {
		return PoolState{}, err
	}
	if state.Token0, err = asAddress(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = Call(ctx, caller, pool, poolABI, block, "token1")
	if err != nil {
		return PoolState{}, err
	}
	if state.Token1, err = asAddress(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = Call(ctx, caller, pool, poolABI, block, "slot0")
	if err != nil {
		return PoolState{}, err
	}
	if len(values) < 2 {
		return PoolState{}, fmt.Errorf("slot0: short result")
	}
	if state.SqrtPriceX96, err = AsBigInt(values[0]); err != nil {
		return PoolState{}, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tick, err := AsBigInt(values[1])
	if err != nil {
		return PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	if state.Tick, err = Int24FromBig(tick); err != nil {
		return PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	return state, nil
}

// PositionKey is keccak256(abi.encodePacked(owner, int24 lower, int24 upper)), the pool's position slot.
func PositionKey(owner common.Address, lower, upper int32) common.Hash {
	packed := make([]byte, 0, common.AddressLength+6)
	packed = append(packed, owner.Bytes()...)
	packed = appendInt24(packed, lower)
	packed = appendInt24(packed, upper)
	return crypto.Keccak256Hash(packed)
}

// FetchPositionLiquidity reads the liquidity of owner's position in [lower, upper).
func FetchPositionLiquidity(ctx context.Context, caller ethereum.ContractCaller, pool, owner common.Address, lower, upper int32, block *big.Int) (*big.Int, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := Call(ctx, caller, pool, poolABI, block, "positions", [32]byte(PositionKey(owner, lower, upper)))
	if err != nil {
		return nil, err
	}
	return AsBigInt(values[0])
}

// appendInt24 appends the 3-byte big-endian two's complement encoding of v.
func appendInt24(dst []byte, v int32) []byte {
	u := uint32(v)
	return append(dst, byte(u>>16), byte(u>>8), byte(u))
}
