// AngelaMos | 2026
// entity.go

package license

import (
	"time"
)

const (
	StatusActive      = "active"
	StatusExpired     = "expired"
	StatusRevoked     = "revoked"
	StatusDeactivated = "deactivated"
)

type License struct {
	ID              string     `db:"id"`
	LicenseKey      string     `db:"license_key"`
	OwnerUserID     *string    `db:"owner_user_id"`
	OwnerEmail      string     `db:"owner_email"`
	TierName        string     `db:"tier_name"`
	Status          string     `db:"status"`
	HardwareID      *string    `db:"hardware_id"`
	IssuedAt        time.Time  `db:"issued_at"`
	ActivatedAt     *time.Time `db:"activated_at"`
	ExpiresAt       *time.Time `db:"expires_at"`
	LastValidatedAt *time.Time `db:"last_validated_at"`
	ValidationCount int64      `db:"validation_count"`
}

// IsExpired is computed on read; the stored status column is never
// trusted for expiry.
func (l *License) IsExpired() bool {
	return l.ExpiresAt != nil && time.Now().After(*l.ExpiresAt)
}

func (l *License) IsTerminated() bool {
	return l.Status == StatusRevoked || l.Status == StatusDeactivated
}

func (l *License) IsBoundTo(hardwareID string) bool {
	return l.HardwareID != nil && *l.HardwareID == hardwareID
}

type Tier struct {
	TierName                string    `db:"tier_name"                 json:"tier_name"`
	DisplayName             string    `db:"display_name"              json:"display_name"`
	Description             string    `db:"description"               json:"description"`
	MaxConcurrentStrategies int       `db:"max_concurrent_strategies" json:"max_concurrent_strategies"`
	MaxWallets              int       `db:"max_wallets"               json:"max_wallets"`
	MaxDailyTrades          int       `db:"max_daily_trades"          json:"max_daily_trades"`
	TradeFeePercent         *float64  `db:"trade_fee_percent"         json:"trade_fee_percent,omitempty"`
	FeeRecipientAddress     string    `db:"fee_recipient_address"     json:"fee_recipient_address"`
	AdvancedStrategies      bool      `db:"advanced_strategies"       json:"advanced_strategies"`
	CloudSync               bool      `db:"cloud_sync"                json:"cloud_sync"`
	CreatedAt               time.Time `db:"created_at"                json:"created_at"`
	UpdatedAt               time.Time `db:"updated_at"                json:"updated_at"`
}
