package model

import "math/big"

// UniswapPosition is a concentrated-liquidity position owned by a margin account.
// Bounds are pointers because on-chain reads can return a malformed, half-filled entry.
type UniswapPosition struct {
	Liquidity *big.Int
	Lower     *int32
	Upper     *int32
}

// NewUniswapPosition builds a fully specified position.
func NewUniswapPosition(liquidity *big.Int, lower, upper int32) UniswapPosition {
	return UniswapPosition{Liquidity: liquidity, Lower: &lower, Upper: &upper}
}
