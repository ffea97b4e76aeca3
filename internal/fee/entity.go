// AngelaMos | 2026
// entity.go

package fee

import (
	"time"
)

// Source identifies which rung of the cascade produced a fee.
const (
	SourceUserOverride  = "user_override"
	SourceTierOverride  = "tier_override"
	SourceSystemDefault = "system_default"
)

type TradeFee struct {
	ID             string    `db:"id"              json:"id"`
	TradeSignature string    `db:"trade_signature" json:"trade_signature"`
	LicenseKey     string    `db:"license_key"     json:"license_key,omitempty"`
	UserID         *string   `db:"user_id"         json:"user_id,omitempty"`
	FeePercent     float64   `db:"fee_percent"     json:"fee_percent"`
	FeeRecipient   string    `db:"fee_recipient"   json:"fee_recipient"`
	Source         string    `db:"source"          json:"source"`
	RecordedAt     time.Time `db:"recorded_at"     json:"recorded_at"`
}
