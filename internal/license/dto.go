// AngelaMos | 2026
// dto.go

package license

import (
	"time"
)

type GenerateRequest struct {
	TierName   string `json:"tier_name"   validate:"required,max=50"`
	OwnerEmail string `json:"owner_email" validate:"omitempty,email,max=255"`
	// DurationDays = 0 issues a perpetual license.
	DurationDays int `json:"duration_days" validate:"min=0,max=3650"`
}

type ActivateRequest struct {
	LicenseKey string `json:"license_key" validate:"required,max=64"`
	HardwareID string `json:"hardware_id" validate:"required,min=8,max=128"`
	Email      string `json:"email"       validate:"omitempty,email,max=255"`
}

type ValidateRequest struct {
	LicenseKey string `json:"license_key" validate:"required,max=64"`
	HardwareID string `json:"hardware_id" validate:"required,min=8,max=128"`
}

type LicenseResponse struct {
	LicenseKey      string     `json:"license_key"`
	TierName        string     `json:"tier_name"`
	Status          string     `json:"status"`
	HardwareID      *string    `json:"hardware_id,omitempty"`
	IssuedAt        time.Time  `json:"issued_at"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	ValidationCount int64      `json:"validation_count"`
}

type ValidationSummary struct {
	LicenseKey string     `json:"license_key"`
	TierName   string     `json:"tier_name"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Valid      bool       `json:"valid"`
}

type LicenseListResponse struct {
	Licenses []LicenseResponse `json:"licenses"`
	Total    int               `json:"total"`
}

type ListParams struct {
	Status   string
	TierName string
	OwnerID  string
	Page     int
	PageSize int
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type TierRequest struct {
	TierName                string   `json:"tier_name"                 validate:"required,min=1,max=50"`
	DisplayName             string   `json:"display_name"              validate:"max=100"`
	Description             string   `json:"description"               validate:"max=500"`
	MaxConcurrentStrategies int      `json:"max_concurrent_strategies" validate:"min=0"`
	MaxWallets              int      `json:"max_wallets"               validate:"min=0"`
	MaxDailyTrades          int      `json:"max_daily_trades"          validate:"min=0"`
	TradeFeePercent         *float64 `json:"trade_fee_percent,omitempty"`
	FeeRecipientAddress     string   `json:"fee_recipient_address"     validate:"max=128"`
	AdvancedStrategies      bool     `json:"advanced_strategies"`
	CloudSync               bool     `json:"cloud_sync"`
}

func ToLicenseResponse(l *License) LicenseResponse {
	return LicenseResponse{
		LicenseKey:      l.LicenseKey,
		TierName:        l.TierName,
		Status:          l.Status,
		HardwareID:      l.HardwareID,
		IssuedAt:        l.IssuedAt,
		ActivatedAt:     l.ActivatedAt,
		ExpiresAt:       l.ExpiresAt,
		LastValidatedAt: l.LastValidatedAt,
		ValidationCount: l.ValidationCount,
	}
}
