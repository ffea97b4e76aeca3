// AngelaMos | 2026
// service.go

package license

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/config"
	"github.com/carterperez-dev/licensegate/internal/core"
)

var (
	ErrLicenseNotFound    = errors.New("license not found")
	ErrLicenseRevoked     = errors.New("license revoked")
	ErrLicenseDeactivated = errors.New("license deactivated")
	ErrLicenseExpired     = errors.New("license expired")
	ErrHardwareMismatch   = errors.New("license bound to different hardware")
)

type Service struct {
	repo    Repository
	auditor audit.Recorder
	cfg     config.LicenseConfig
}

func NewService(
	repo Repository,
	auditor audit.Recorder,
	cfg config.LicenseConfig,
) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		cfg:     cfg,
	}
}

// Generate issues a fresh license key for a tier. A zero duration in
// the request falls back to the configured default; a negative default
// means perpetual.
func (s *Service) Generate(
	ctx context.Context,
	req GenerateRequest,
	actorID string,
) (*License, error) {
	if _, err := s.repo.GetTier(ctx, req.TierName); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError("tier")
		}
		return nil, fmt.Errorf("generate license: %w", err)
	}

	key, err := s.generateKey()
	if err != nil {
		return nil, fmt.Errorf("generate license: %w", err)
	}

	var expiresAt *time.Time
	duration := time.Duration(req.DurationDays) * 24 * time.Hour
	if req.DurationDays == 0 {
		duration = s.cfg.DefaultDuration
	}
	if duration > 0 {
		t := time.Now().Add(duration)
		expiresAt = &t
	}

	lic := &License{
		ID:         uuid.New().String(),
		LicenseKey: key,
		OwnerEmail: req.OwnerEmail,
		TierName:   req.TierName,
		Status:     StatusActive,
		ExpiresAt:  expiresAt,
	}

	if err := s.repo.Create(ctx, lic); err != nil {
		return nil, fmt.Errorf("generate license: %w", err)
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionLicenseGenerate,
		ResourceType: "license",
		ResourceID:   lic.LicenseKey,
		Details:      auditDetails(map[string]any{"tier": req.TierName}),
	})

	slog.Info("license generated",
		"license_key", lic.LicenseKey,
		"tier", req.TierName,
	)

	return lic, nil
}

// Activate binds a license to a hardware id. The bind itself is a
// single conditional update so two racing activations cannot both win;
// the loser gets the current row back and a classified rejection.
// Re-activating from the already bound hardware succeeds.
func (s *Service) Activate(
	ctx context.Context,
	req ActivateRequest,
	userID string,
	ipAddress string,
) (*License, error) {
	lic, err := s.repo.BindAndStamp(ctx, req.LicenseKey, req.HardwareID)
	if err == nil {
		if userID != "" {
			//nolint:errcheck // best-effort owner claim, bind already succeeded
			s.repo.ClaimOwner(ctx, req.LicenseKey, userID)
		}

		s.auditor.Record(ctx, audit.Entry{
			ActorUserID:  actorPtr(userID),
			Action:       audit.ActionLicenseActivate,
			ResourceType: "license",
			ResourceID:   lic.LicenseKey,
			Details:      auditDetails(map[string]any{"hardware_id": req.HardwareID}),
			IPAddress:    ipAddress,
		})

		return lic, nil
	}

	if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("activate license: %w", err)
	}

	reason, classified := s.classifyRejection(ctx, req.LicenseKey, req.HardwareID)

	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  actorPtr(userID),
		Action:       audit.ActionLicenseRejected,
		ResourceType: "license",
		ResourceID:   req.LicenseKey,
		Details:      auditDetails(map[string]any{"reason": reason.Error()}),
		IPAddress:    ipAddress,
	})

	return nil, classified
}

// Validate is the hot path a bound client calls on startup. It stamps
// the validation counter but never mutates the binding.
func (s *Service) Validate(
	ctx context.Context,
	req ValidateRequest,
) (*ValidationSummary, error) {
	lic, err := s.repo.StampValidation(ctx, req.LicenseKey, req.HardwareID)
	if err == nil {
		return &ValidationSummary{
			LicenseKey: lic.LicenseKey,
			TierName:   lic.TierName,
			Status:     lic.Status,
			ExpiresAt:  lic.ExpiresAt,
			Valid:      true,
		}, nil
	}

	if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("validate license: %w", err)
	}

	_, classified := s.classifyRejection(ctx, req.LicenseKey, req.HardwareID)
	return nil, classified
}

// classifyRejection explains why a conditional bind or validation
// matched no row. The read happens after the failed write, so the
// explanation reflects the state that caused the miss.
func (s *Service) classifyRejection(
	ctx context.Context,
	licenseKey, hardwareID string,
) (reason error, classified error) {
	lic, err := s.repo.GetByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrLicenseNotFound, core.NotFoundError("license")
		}
		return err, fmt.Errorf("classify rejection: %w", err)
	}

	switch {
	case lic.Status == StatusRevoked:
		return ErrLicenseRevoked,
			core.ForbiddenError("license has been revoked")
	case lic.Status == StatusDeactivated:
		return ErrLicenseDeactivated,
			core.ForbiddenError("license has been deactivated")
	case lic.IsExpired():
		return ErrLicenseExpired,
			core.ForbiddenError("license has expired")
	case lic.HardwareID != nil && !lic.IsBoundTo(hardwareID):
		return ErrHardwareMismatch,
			core.ForbiddenError("license is bound to different hardware")
	case lic.HardwareID == nil:
		// Validation against an unbound license: activation required.
		return ErrHardwareMismatch,
			core.ForbiddenError("license has not been activated")
	default:
		return ErrLicenseNotFound, core.NotFoundError("license")
	}
}

func (s *Service) GetByKey(
	ctx context.Context,
	licenseKey string,
) (*License, error) {
	lic, err := s.repo.GetByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError("license")
		}
		return nil, fmt.Errorf("get license: %w", err)
	}
	return lic, nil
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]License, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Revoke(
	ctx context.Context,
	licenseKey, actorID, reason string,
) error {
	if err := s.setTerminalStatus(ctx, licenseKey, StatusRevoked); err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionLicenseRevoke,
		ResourceType: "license",
		ResourceID:   licenseKey,
		Details:      auditDetails(map[string]any{"reason": reason}),
	})

	return nil
}

func (s *Service) Deactivate(
	ctx context.Context,
	licenseKey, actorID, reason string,
) error {
	if err := s.setTerminalStatus(ctx, licenseKey, StatusDeactivated); err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Entry{
		ActorUserID:  &actorID,
		Action:       audit.ActionLicenseDeactivate,
		ResourceType: "license",
		ResourceID:   licenseKey,
		Details:      auditDetails(map[string]any{"reason": reason}),
	})

	return nil
}

func (s *Service) setTerminalStatus(
	ctx context.Context,
	licenseKey, status string,
) error {
	if err := s.repo.SetStatus(ctx, licenseKey, status); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError("license")
		}
		return fmt.Errorf("set license status: %w", err)
	}
	return nil
}

func (s *Service) CreateTier(ctx context.Context, req TierRequest) (*Tier, error) {
	tier := &Tier{
		TierName:                req.TierName,
		DisplayName:             req.DisplayName,
		Description:             req.Description,
		MaxConcurrentStrategies: req.MaxConcurrentStrategies,
		MaxWallets:              req.MaxWallets,
		MaxDailyTrades:          req.MaxDailyTrades,
		TradeFeePercent:         req.TradeFeePercent,
		FeeRecipientAddress:     req.FeeRecipientAddress,
		AdvancedStrategies:      req.AdvancedStrategies,
		CloudSync:               req.CloudSync,
	}

	if err := s.repo.CreateTier(ctx, tier); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("tier_name")
		}
		return nil, fmt.Errorf("create tier: %w", err)
	}

	return tier, nil
}

func (s *Service) UpdateTier(ctx context.Context, req TierRequest) (*Tier, error) {
	tier := &Tier{
		TierName:                req.TierName,
		DisplayName:             req.DisplayName,
		Description:             req.Description,
		MaxConcurrentStrategies: req.MaxConcurrentStrategies,
		MaxWallets:              req.MaxWallets,
		MaxDailyTrades:          req.MaxDailyTrades,
		TradeFeePercent:         req.TradeFeePercent,
		FeeRecipientAddress:     req.FeeRecipientAddress,
		AdvancedStrategies:      req.AdvancedStrategies,
		CloudSync:               req.CloudSync,
	}

	if err := s.repo.UpdateTier(ctx, tier); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError("tier")
		}
		return nil, fmt.Errorf("update tier: %w", err)
	}

	return tier, nil
}

func (s *Service) GetTier(ctx context.Context, tierName string) (*Tier, error) {
	tier, err := s.repo.GetTier(ctx, tierName)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError("tier")
		}
		return nil, fmt.Errorf("get tier: %w", err)
	}
	return tier, nil
}

func (s *Service) ListTiers(ctx context.Context) ([]Tier, error) {
	return s.repo.ListTiers(ctx)
}

// CheckUsable verifies a license is activated and presently valid
// without stamping a validation or touching the binding. Used to gate
// license-scoped subsystems.
func (s *Service) CheckUsable(ctx context.Context, licenseKey string) error {
	lic, err := s.repo.GetByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError("license")
		}
		return fmt.Errorf("check license: %w", err)
	}

	switch {
	case lic.Status == StatusRevoked:
		return core.ForbiddenError("license has been revoked")
	case lic.Status == StatusDeactivated:
		return core.ForbiddenError("license has been deactivated")
	case lic.IsExpired():
		return core.ForbiddenError("license has expired")
	case lic.HardwareID == nil:
		return core.ForbiddenError("license has not been activated")
	}

	return nil
}

// FeeTermsForLicense resolves the fee-relevant attributes of a
// license: its owner and its tier's override terms. Returns
// core.ErrNotFound when the license or its tier does not exist;
// callers decide whether that is fatal.
func (s *Service) FeeTermsForLicense(
	ctx context.Context,
	licenseKey string,
) (ownerUserID string, feePercent *float64, recipient string, err error) {
	lic, err := s.repo.GetByKey(ctx, licenseKey)
	if err != nil {
		return "", nil, "", err
	}

	tier, err := s.repo.GetTier(ctx, lic.TierName)
	if err != nil {
		return "", nil, "", err
	}

	if lic.OwnerUserID != nil {
		ownerUserID = *lic.OwnerUserID
	}

	return ownerUserID, tier.TradeFeePercent, tier.FeeRecipientAddress, nil
}

const keyCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateKey produces keys like PREFIX-XXXX-XXXX-XXXX-XXXX from an
// unambiguous charset.
func (s *Service) generateKey() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	var b strings.Builder
	b.WriteString(s.cfg.KeyPrefix)
	for i, c := range raw {
		if i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyCharset[int(c)%len(keyCharset)])
	}

	return b.String(), nil
}

func auditDetails(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func actorPtr(userID string) *string {
	if userID == "" {
		return nil
	}
	return &userID
}
