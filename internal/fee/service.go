// AngelaMos | 2026
// service.go

package fee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/core"
)

// OverrideProvider yields a per-user fee override when one is set.
type OverrideProvider interface {
	FeeOverrideFor(ctx context.Context, userID string) (float64, bool, error)
}

// TierFeeProvider yields the fee-relevant attributes of a license: its
// owner and its tier's override terms. A missing license or tier
// surfaces as core.ErrNotFound.
type TierFeeProvider interface {
	FeeTermsForLicense(
		ctx context.Context,
		licenseKey string,
	) (ownerUserID string, feePercent *float64, recipient string, err error)
}

// SystemDefaults yields the system-wide fallback terms.
type SystemDefaults interface {
	DefaultTradeFeePercent(ctx context.Context) (float64, error)
	FeeRecipientAddress(ctx context.Context) (string, error)
}

type Service struct {
	repo      Repository
	overrides OverrideProvider
	tiers     TierFeeProvider
	defaults  SystemDefaults
	auditor   audit.Recorder
}

func NewService(
	repo Repository,
	overrides OverrideProvider,
	tiers TierFeeProvider,
	defaults SystemDefaults,
	auditor audit.Recorder,
) *Service {
	return &Service{
		repo:      repo,
		overrides: overrides,
		tiers:     tiers,
		defaults:  defaults,
		auditor:   auditor,
	}
}

// Resolve walks the cascade: the license owner's override, then the
// license tier's override, then the system default. The override step
// belongs to whoever owns the license; the caller's own override only
// applies when no license is supplied or the license has no owner. A
// missing or unknown license is never fatal here; fee resolution must
// not block trading, so the cascade falls through to the system
// default instead.
func (s *Service) Resolve(
	ctx context.Context,
	userID, licenseKey string,
) (*Resolution, error) {
	systemRecipient, err := s.defaults.FeeRecipientAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fee: %w", err)
	}

	var (
		ownerUserID   string
		tierPercent   *float64
		tierRecipient string
	)
	if licenseKey != "" {
		owner, percent, recipient, err := s.tiers.FeeTermsForLicense(
			ctx, licenseKey,
		)
		switch {
		case err == nil:
			ownerUserID = owner
			tierPercent = percent
			tierRecipient = recipient
		case errors.Is(err, core.ErrNotFound):
			slog.Debug("fee resolution fell through unknown license",
				"license_key", licenseKey,
			)
		default:
			return nil, fmt.Errorf("resolve fee: %w", err)
		}
	}

	overrideUserID := userID
	if ownerUserID != "" {
		overrideUserID = ownerUserID
	}

	if overrideUserID != "" {
		percent, ok, err := s.overrides.FeeOverrideFor(ctx, overrideUserID)
		if err != nil {
			return nil, fmt.Errorf("resolve fee: %w", err)
		}
		if ok {
			recipient := tierRecipient
			if recipient == "" {
				recipient = systemRecipient
			}
			return &Resolution{
				FeePercent:   percent,
				FeeRecipient: recipient,
				Source:       SourceUserOverride,
			}, nil
		}
	}

	if tierPercent != nil {
		recipient := tierRecipient
		if recipient == "" {
			recipient = systemRecipient
		}
		return &Resolution{
			FeePercent:   *tierPercent,
			FeeRecipient: recipient,
			Source:       SourceTierOverride,
		}, nil
	}

	percent, err := s.defaults.DefaultTradeFeePercent(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fee: %w", err)
	}

	return &Resolution{
		FeePercent:   percent,
		FeeRecipient: systemRecipient,
		Source:       SourceSystemDefault,
	}, nil
}

// RecordTrade resolves the fee at record time and persists it keyed by
// the trade signature. Replaying a signature returns the originally
// stored terms, so clients can retry safely.
func (s *Service) RecordTrade(
	ctx context.Context,
	userID string,
	req RecordTradeRequest,
) (*RecordTradeResponse, error) {
	resolution, err := s.Resolve(ctx, userID, req.LicenseKey)
	if err != nil {
		return nil, err
	}

	tradeFee := &TradeFee{
		ID:             uuid.New().String(),
		TradeSignature: req.TradeSignature,
		LicenseKey:     req.LicenseKey,
		UserID:         userIDPtr(userID),
		FeePercent:     resolution.FeePercent,
		FeeRecipient:   resolution.FeeRecipient,
		Source:         resolution.Source,
	}

	inserted, err := s.repo.Record(ctx, tradeFee)
	if err != nil {
		return nil, err
	}

	if !inserted {
		existing, err := s.repo.GetBySignature(ctx, req.TradeSignature)
		if err != nil {
			return nil, err
		}
		return &RecordTradeResponse{
			TradeSignature: existing.TradeSignature,
			FeePercent:     existing.FeePercent,
			FeeRecipient:   existing.FeeRecipient,
			Source:         existing.Source,
			Duplicate:      true,
		}, nil
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  userIDPtr(userID),
		Action:       audit.ActionTradeRecorded,
		ResourceType: "trade",
		ResourceID:   req.TradeSignature,
		Details: fmt.Sprintf(
			`{"fee_percent":%g,"source":%q}`,
			resolution.FeePercent, resolution.Source,
		),
	})

	return &RecordTradeResponse{
		TradeSignature: req.TradeSignature,
		FeePercent:     resolution.FeePercent,
		FeeRecipient:   resolution.FeeRecipient,
		Source:         resolution.Source,
	}, nil
}

func (s *Service) Summary(
	ctx context.Context,
	since time.Time,
) (*Summary, error) {
	if since.IsZero() {
		since = time.Now().AddDate(0, 0, -30)
	}
	return s.repo.Summary(ctx, since)
}

func userIDPtr(userID string) *string {
	if userID == "" {
		return nil
	}
	return &userID
}
