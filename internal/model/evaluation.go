package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Evaluation is the published result of one solvency computation.
type Evaluation struct {
	ChainID      uint64                `json:"chain_id"`
	BlockNumber  uint64                `json:"block_number"`
	Borrower     string                `json:"borrower"`
	Token0       TokenMeta             `json:"token0"`
	Token1       TokenMeta             `json:"token1"`
	SqrtPriceX96 string                `json:"sqrt_price_x96"`
	Price        decimal.Decimal       `json:"price"`
	Sigma        decimal.Decimal       `json:"sigma"`
	Positions    int                   `json:"positions"`
	Assets       AssetSummary          `json:"assets"`
	Token0Share  decimal.Decimal       `json:"token0_share"`
	Solvency     Solvency              `json:"solvency"`
	Thresholds   LiquidationThresholds `json:"thresholds"`
	ComputedAt   time.Time             `json:"computed_at"`
}
