package model

import "github.com/shopspring/decimal"

// AssetSummary splits account holdings into price-independent and position-derived parts.
type AssetSummary struct {
	Fixed0             decimal.Decimal `json:"fixed0"`
	Fixed1             decimal.Decimal `json:"fixed1"`
	Fluid1AtLowerProbe decimal.Decimal `json:"fluid1_at_lower_probe"`
	Fluid1AtUpperProbe decimal.Decimal `json:"fluid1_at_upper_probe"`
	Fluid0AtCurrent    decimal.Decimal `json:"fluid0_at_current"`
	Fluid1AtCurrent    decimal.Decimal `json:"fluid1_at_current"`
}

// Solvency is the verdict at the two probe prices.
type Solvency struct {
	SolventAtLower bool `json:"solvent_at_lower"`
	SolventAtUpper bool `json:"solvent_at_upper"`
}

// Solvent is true only when both probes hold.
func (s Solvency) Solvent() bool {
	return s.SolventAtLower && s.SolventAtUpper
}

// LiquidationThresholds brackets the prices at which the account stays solvent.
type LiquidationThresholds struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}
