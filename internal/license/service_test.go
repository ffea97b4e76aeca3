// AngelaMos | 2026
// service_test.go

package license

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/config"
	"github.com/carterperez-dev/licensegate/internal/core"
)

// fakeRepo mirrors the conditional-write semantics of the SQL layer:
// BindAndStamp and StampValidation mutate only when the row satisfies
// the same predicates the real UPDATE carries.
type fakeRepo struct {
	mu       sync.Mutex
	licenses map[string]*License
	tiers    map[string]*Tier
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		licenses: make(map[string]*License),
		tiers:    make(map[string]*Tier),
	}
}

func (r *fakeRepo) Create(_ context.Context, lic *License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.licenses[lic.LicenseKey]; exists {
		return fmt.Errorf("create license: %w", core.ErrDuplicateKey)
	}
	lic.IssuedAt = time.Now()
	stored := *lic
	r.licenses[lic.LicenseKey] = &stored
	return nil
}

func (r *fakeRepo) GetByKey(
	_ context.Context,
	licenseKey string,
) (*License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[licenseKey]
	if !ok {
		return nil, fmt.Errorf("get license: %w", core.ErrNotFound)
	}
	copied := *lic
	return &copied, nil
}

func (r *fakeRepo) BindAndStamp(
	_ context.Context,
	licenseKey, hardwareID string,
) (*License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[licenseKey]
	if !ok || lic.IsTerminated() || lic.IsExpired() ||
		(lic.HardwareID != nil && *lic.HardwareID != hardwareID) {
		return nil, fmt.Errorf("bind license: %w", core.ErrNotFound)
	}

	now := time.Now()
	lic.HardwareID = &hardwareID
	if lic.ActivatedAt == nil {
		lic.ActivatedAt = &now
	}
	lic.LastValidatedAt = &now
	lic.ValidationCount++
	lic.Status = StatusActive

	copied := *lic
	return &copied, nil
}

func (r *fakeRepo) StampValidation(
	_ context.Context,
	licenseKey, hardwareID string,
) (*License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[licenseKey]
	if !ok || lic.IsTerminated() || lic.IsExpired() ||
		lic.HardwareID == nil || *lic.HardwareID != hardwareID {
		return nil, fmt.Errorf("stamp validation: %w", core.ErrNotFound)
	}

	now := time.Now()
	lic.LastValidatedAt = &now
	lic.ValidationCount++

	copied := *lic
	return &copied, nil
}

func (r *fakeRepo) ClaimOwner(
	_ context.Context,
	licenseKey, userID string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lic, ok := r.licenses[licenseKey]; ok && lic.OwnerUserID == nil {
		lic.OwnerUserID = &userID
	}
	return nil
}

func (r *fakeRepo) SetStatus(
	_ context.Context,
	licenseKey, status string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lic, ok := r.licenses[licenseKey]
	if !ok {
		return fmt.Errorf("set license status: %w", core.ErrNotFound)
	}
	lic.Status = status
	return nil
}

func (r *fakeRepo) List(
	_ context.Context,
	_ ListParams,
) ([]License, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var licenses []License
	for _, lic := range r.licenses {
		licenses = append(licenses, *lic)
	}
	return licenses, len(licenses), nil
}

func (r *fakeRepo) CreateTier(_ context.Context, tier *Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tiers[tier.TierName]; exists {
		return fmt.Errorf("create tier: %w", core.ErrDuplicateKey)
	}
	stored := *tier
	r.tiers[tier.TierName] = &stored
	return nil
}

func (r *fakeRepo) GetTier(
	_ context.Context,
	tierName string,
) (*Tier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tier, ok := r.tiers[tierName]
	if !ok {
		return nil, fmt.Errorf("get tier: %w", core.ErrNotFound)
	}
	copied := *tier
	return &copied, nil
}

func (r *fakeRepo) UpdateTier(_ context.Context, tier *Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tiers[tier.TierName]; !ok {
		return fmt.Errorf("update tier: %w", core.ErrNotFound)
	}
	stored := *tier
	r.tiers[tier.TierName] = &stored
	return nil
}

func (r *fakeRepo) ListTiers(_ context.Context) ([]Tier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tiers []Tier
	for _, tier := range r.tiers {
		tiers = append(tiers, *tier)
	}
	return tiers, nil
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, audit.Entry) {}

func newTestLicenseService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()

	repo := newFakeRepo()
	repo.tiers["pro"] = &Tier{TierName: "pro", DisplayName: "Pro"}

	svc := NewService(repo, nopRecorder{}, config.LicenseConfig{
		KeyPrefix:       "TR",
		DefaultDuration: 365 * 24 * time.Hour,
	})
	return svc, repo
}

func seedLicense(repo *fakeRepo, key string, mutate func(*License)) {
	lic := &License{
		ID:         "lic-" + key,
		LicenseKey: key,
		TierName:   "pro",
		Status:     StatusActive,
		IssuedAt:   time.Now(),
	}
	if mutate != nil {
		mutate(lic)
	}
	repo.licenses[key] = lic
}

func requireForbidden(t *testing.T, err error) {
	t.Helper()

	appErr, ok := core.AsAppError(err)
	require.True(t, ok, "expected app error, got %v", err)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
}

func TestService_Generate(t *testing.T) {
	svc, repo := newTestLicenseService(t)

	lic, err := svc.Generate(context.Background(), GenerateRequest{
		TierName: "pro",
	}, "operator-1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(lic.LicenseKey, "TR-"))
	assert.Equal(t, StatusActive, lic.Status)
	require.NotNil(t, lic.ExpiresAt)
	assert.WithinDuration(
		t,
		time.Now().Add(365*24*time.Hour),
		*lic.ExpiresAt,
		time.Minute,
	)

	_, ok := repo.licenses[lic.LicenseKey]
	assert.True(t, ok)
}

func TestService_Generate_UnknownTier(t *testing.T) {
	svc, _ := newTestLicenseService(t)

	_, err := svc.Generate(context.Background(), GenerateRequest{
		TierName: "nonexistent",
	}, "operator-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestService_Generate_KeysAreUnique(t *testing.T) {
	svc, _ := newTestLicenseService(t)
	seen := make(map[string]bool)

	for range 50 {
		lic, err := svc.Generate(context.Background(), GenerateRequest{
			TierName: "pro",
		}, "operator-1")
		require.NoError(t, err)
		require.False(t, seen[lic.LicenseKey])
		seen[lic.LicenseKey] = true
	}
}

func TestService_Activate_FirstBindWins(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	seedLicense(repo, "TR-TEST-KEY-1", nil)
	ctx := context.Background()

	winner, err := svc.Activate(ctx, ActivateRequest{
		LicenseKey: "TR-TEST-KEY-1",
		HardwareID: "machine-alpha",
	}, "user-1", "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, winner.HardwareID)
	assert.Equal(t, "machine-alpha", *winner.HardwareID)
	assert.NotNil(t, winner.ActivatedAt)

	// the loser presents a different hardware id and is rejected
	_, err = svc.Activate(ctx, ActivateRequest{
		LicenseKey: "TR-TEST-KEY-1",
		HardwareID: "machine-beta",
	}, "user-2", "127.0.0.2")
	requireForbidden(t, err)

	// binding is unchanged
	lic, err := svc.GetByKey(ctx, "TR-TEST-KEY-1")
	require.NoError(t, err)
	assert.Equal(t, "machine-alpha", *lic.HardwareID)
}

func TestService_Activate_SameHardwareIdempotent(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	seedLicense(repo, "TR-TEST-KEY-1", nil)
	ctx := context.Background()

	first, err := svc.Activate(ctx, ActivateRequest{
		LicenseKey: "TR-TEST-KEY-1",
		HardwareID: "machine-alpha",
	}, "", "")
	require.NoError(t, err)

	second, err := svc.Activate(ctx, ActivateRequest{
		LicenseKey: "TR-TEST-KEY-1",
		HardwareID: "machine-alpha",
	}, "", "")
	require.NoError(t, err)

	assert.Equal(t, *first.ActivatedAt, *second.ActivatedAt)
	assert.Equal(t, first.ValidationCount+1, second.ValidationCount)
}

func TestService_Activate_UnknownKey(t *testing.T) {
	svc, _ := newTestLicenseService(t)

	_, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: "TR-NO-SUCH-KEY",
		HardwareID: "machine-alpha",
	}, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestService_Activate_TerminalStates(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	seedLicense(repo, "TR-REVOKED", func(l *License) {
		l.Status = StatusRevoked
	})
	seedLicense(repo, "TR-DEACTIVATED", func(l *License) {
		l.Status = StatusDeactivated
	})
	ctx := context.Background()

	_, err := svc.Activate(ctx, ActivateRequest{
		LicenseKey: "TR-REVOKED",
		HardwareID: "machine-alpha",
	}, "", "")
	requireForbidden(t, err)

	_, err = svc.Activate(ctx, ActivateRequest{
		LicenseKey: "TR-DEACTIVATED",
		HardwareID: "machine-alpha",
	}, "", "")
	requireForbidden(t, err)
}

func TestService_Activate_Expired(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	past := time.Now().Add(-time.Hour)
	seedLicense(repo, "TR-EXPIRED", func(l *License) {
		l.ExpiresAt = &past
	})

	// stored status still says active; expiry is computed on read
	_, err := svc.Activate(context.Background(), ActivateRequest{
		LicenseKey: "TR-EXPIRED",
		HardwareID: "machine-alpha",
	}, "", "")
	requireForbidden(t, err)
}

func TestService_Validate_DoesNotMutateBinding(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	hw := "machine-alpha"
	seedLicense(repo, "TR-BOUND", func(l *License) {
		l.HardwareID = &hw
	})
	ctx := context.Background()

	summary, err := svc.Validate(ctx, ValidateRequest{
		LicenseKey: "TR-BOUND",
		HardwareID: "machine-alpha",
	})
	require.NoError(t, err)
	assert.True(t, summary.Valid)
	assert.Equal(t, "pro", summary.TierName)

	lic, err := svc.GetByKey(ctx, "TR-BOUND")
	require.NoError(t, err)
	assert.Equal(t, "machine-alpha", *lic.HardwareID)
	assert.Equal(t, int64(1), lic.ValidationCount)
	assert.NotNil(t, lic.LastValidatedAt)
}

func TestService_Validate_HardwareMismatch(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	hw := "machine-alpha"
	seedLicense(repo, "TR-BOUND", func(l *License) {
		l.HardwareID = &hw
	})

	_, err := svc.Validate(context.Background(), ValidateRequest{
		LicenseKey: "TR-BOUND",
		HardwareID: "machine-beta",
	})
	requireForbidden(t, err)
}

func TestService_Validate_UnboundLicense(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	seedLicense(repo, "TR-FRESH", nil)

	_, err := svc.Validate(context.Background(), ValidateRequest{
		LicenseKey: "TR-FRESH",
		HardwareID: "machine-alpha",
	})
	requireForbidden(t, err)
}

func TestService_RevokeBlocksValidation(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	hw := "machine-alpha"
	seedLicense(repo, "TR-BOUND", func(l *License) {
		l.HardwareID = &hw
	})
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, "TR-BOUND", "operator-1", "abuse"))

	_, err := svc.Validate(ctx, ValidateRequest{
		LicenseKey: "TR-BOUND",
		HardwareID: "machine-alpha",
	})
	requireForbidden(t, err)
}

func TestService_CheckUsable(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	hw := "machine-alpha"
	past := time.Now().Add(-time.Hour)

	seedLicense(repo, "TR-OK", func(l *License) { l.HardwareID = &hw })
	seedLicense(repo, "TR-UNBOUND", nil)
	seedLicense(repo, "TR-EXPIRED", func(l *License) {
		l.HardwareID = &hw
		l.ExpiresAt = &past
	})
	ctx := context.Background()

	assert.NoError(t, svc.CheckUsable(ctx, "TR-OK"))
	assert.Error(t, svc.CheckUsable(ctx, "TR-UNBOUND"))
	assert.Error(t, svc.CheckUsable(ctx, "TR-EXPIRED"))
	assert.Error(t, svc.CheckUsable(ctx, "TR-MISSING"))
}

func TestService_FeeTermsForLicense(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	feePercent := 0.25
	repo.tiers["pro"].TradeFeePercent = &feePercent
	repo.tiers["pro"].FeeRecipientAddress = "FeeWallet123"
	ownerID := "owner-1"
	seedLicense(repo, "TR-BOUND", func(lic *License) {
		lic.OwnerUserID = &ownerID
	})

	owner, percent, recipient, err := svc.FeeTermsForLicense(
		context.Background(),
		"TR-BOUND",
	)
	require.NoError(t, err)
	require.NotNil(t, percent)
	assert.Equal(t, "owner-1", owner)
	assert.Equal(t, 0.25, *percent)
	assert.Equal(t, "FeeWallet123", recipient)
}

func TestService_FeeTermsForLicense_Unowned(t *testing.T) {
	svc, repo := newTestLicenseService(t)
	seedLicense(repo, "TR-UNOWNED", nil)

	owner, _, _, err := svc.FeeTermsForLicense(
		context.Background(),
		"TR-UNOWNED",
	)
	require.NoError(t, err)
	assert.Empty(t, owner)
}
