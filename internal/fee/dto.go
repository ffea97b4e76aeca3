// AngelaMos | 2026
// dto.go

package fee

import (
	"time"
)

// Resolution is what a trading client needs before submitting a trade:
// the percent to charge, where it goes, and which rung decided it.
type Resolution struct {
	FeePercent   float64 `json:"fee_percent"`
	FeeRecipient string  `json:"fee_recipient"`
	Source       string  `json:"source"`
}

type RecordTradeRequest struct {
	TradeSignature string `json:"trade_signature" validate:"required,min=16,max=128"`
	LicenseKey     string `json:"license_key"     validate:"omitempty,max=64"`
}

type RecordTradeResponse struct {
	TradeSignature string  `json:"trade_signature"`
	FeePercent     float64 `json:"fee_percent"`
	FeeRecipient   string  `json:"fee_recipient"`
	Source         string  `json:"source"`
	// Duplicate is true when the signature was already recorded; the
	// stored row is returned unchanged.
	Duplicate bool `json:"duplicate"`
}

type Summary struct {
	TotalTrades     int64     `db:"total_trades"     json:"total_trades"`
	AvgFeePercent   float64   `db:"avg_fee_percent"  json:"avg_fee_percent"`
	UserOverrides   int64     `db:"user_overrides"   json:"user_overrides"`
	TierOverrides   int64     `db:"tier_overrides"   json:"tier_overrides"`
	SystemDefaults  int64     `db:"system_defaults"  json:"system_defaults"`
	Since           time.Time `db:"-"                json:"since"`
}
