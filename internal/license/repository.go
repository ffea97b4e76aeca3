// AngelaMos | 2026
// repository.go

package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carterperez-dev/licensegate/internal/core"
)

type Repository interface {
	Create(ctx context.Context, lic *License) error
	GetByKey(ctx context.Context, licenseKey string) (*License, error)
	// BindAndStamp is the single atomic conditional update for first
	// activation: the hardware id is set only when currently null or
	// already equal. Returns core.ErrNotFound when no row qualifies;
	// the caller classifies why.
	BindAndStamp(
		ctx context.Context,
		licenseKey, hardwareID string,
	) (*License, error)
	// StampValidation increments the validation counter for a license
	// that is bound to the given hardware id and currently usable.
	StampValidation(
		ctx context.Context,
		licenseKey, hardwareID string,
	) (*License, error)
	ClaimOwner(ctx context.Context, licenseKey, userID string) error
	SetStatus(ctx context.Context, licenseKey, status string) error
	List(ctx context.Context, params ListParams) ([]License, int, error)

	CreateTier(ctx context.Context, tier *Tier) error
	GetTier(ctx context.Context, tierName string) (*Tier, error)
	UpdateTier(ctx context.Context, tier *Tier) error
	ListTiers(ctx context.Context) ([]Tier, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const licenseColumns = `id, license_key, owner_user_id, owner_email,
	tier_name, status, hardware_id, issued_at, activated_at, expires_at,
	last_validated_at, validation_count`

func (r *repository) Create(ctx context.Context, lic *License) error {
	query := `
		INSERT INTO licenses (
			id, license_key, owner_user_id, owner_email, tier_name,
			status, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING issued_at, validation_count`

	err := r.db.GetContext(ctx, lic, query,
		lic.ID,
		lic.LicenseKey,
		lic.OwnerUserID,
		lic.OwnerEmail,
		lic.TierName,
		lic.Status,
		lic.ExpiresAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create license: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create license: %w", err)
	}

	return nil
}

func (r *repository) GetByKey(
	ctx context.Context,
	licenseKey string,
) (*License, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM licenses WHERE license_key = $1`,
		licenseColumns,
	)

	var lic License
	err := r.db.GetContext(ctx, &lic, query, licenseKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get license: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get license: %w", err)
	}

	return &lic, nil
}

func (r *repository) BindAndStamp(
	ctx context.Context,
	licenseKey, hardwareID string,
) (*License, error) {
	query := fmt.Sprintf(`
		UPDATE licenses
		SET hardware_id = $2,
		    activated_at = COALESCE(activated_at, NOW()),
		    last_validated_at = NOW(),
		    validation_count = validation_count + 1,
		    status = '%s'
		WHERE license_key = $1
		  AND status NOT IN ('%s', '%s')
		  AND (hardware_id IS NULL OR hardware_id = $2)
		  AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING %s`,
		StatusActive, StatusRevoked, StatusDeactivated, licenseColumns)

	var lic License
	err := r.db.GetContext(ctx, &lic, query, licenseKey, hardwareID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bind license: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("bind license: %w", err)
	}

	return &lic, nil
}

func (r *repository) StampValidation(
	ctx context.Context,
	licenseKey, hardwareID string,
) (*License, error) {
	query := fmt.Sprintf(`
		UPDATE licenses
		SET last_validated_at = NOW(),
		    validation_count = validation_count + 1
		WHERE license_key = $1
		  AND hardware_id = $2
		  AND status NOT IN ('%s', '%s')
		  AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING %s`,
		StatusRevoked, StatusDeactivated, licenseColumns)

	var lic License
	err := r.db.GetContext(ctx, &lic, query, licenseKey, hardwareID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stamp validation: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stamp validation: %w", err)
	}

	return &lic, nil
}

// ClaimOwner binds an owner once; a license that already has an owner
// is left untouched.
func (r *repository) ClaimOwner(
	ctx context.Context,
	licenseKey, userID string,
) error {
	query := `
		UPDATE licenses
		SET owner_user_id = $2
		WHERE license_key = $1 AND owner_user_id IS NULL`

	if _, err := r.db.ExecContext(ctx, query, licenseKey, userID); err != nil {
		return fmt.Errorf("claim owner: %w", err)
	}

	return nil
}

func (r *repository) SetStatus(
	ctx context.Context,
	licenseKey, status string,
) error {
	query := `
		UPDATE licenses
		SET status = $2
		WHERE license_key = $1`

	result, err := r.db.ExecContext(ctx, query, licenseKey, status)
	if err != nil {
		return fmt.Errorf("set license status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set license status: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set license status: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]License, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "TRUE")

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	if params.TierName != "" {
		conditions = append(conditions, fmt.Sprintf("tier_name = $%d", argIdx))
		args = append(args, params.TierName)
		argIdx++
	}

	if params.OwnerID != "" {
		conditions = append(
			conditions,
			fmt.Sprintf("owner_user_id = $%d", argIdx),
		)
		args = append(args, params.OwnerID)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM licenses WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count licenses: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM licenses
		WHERE %s
		ORDER BY issued_at DESC
		LIMIT $%d OFFSET $%d`,
		licenseColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var licenses []License
	if err := r.db.SelectContext(ctx, &licenses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list licenses: %w", err)
	}

	return licenses, total, nil
}

const tierColumns = `tier_name, display_name, description,
	max_concurrent_strategies, max_wallets, max_daily_trades,
	trade_fee_percent, fee_recipient_address, advanced_strategies,
	cloud_sync, created_at, updated_at`

func (r *repository) CreateTier(ctx context.Context, tier *Tier) error {
	query := `
		INSERT INTO license_tiers (
			tier_name, display_name, description,
			max_concurrent_strategies, max_wallets, max_daily_trades,
			trade_fee_percent, fee_recipient_address,
			advanced_strategies, cloud_sync
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, tier, query,
		tier.TierName,
		tier.DisplayName,
		tier.Description,
		tier.MaxConcurrentStrategies,
		tier.MaxWallets,
		tier.MaxDailyTrades,
		tier.TradeFeePercent,
		tier.FeeRecipientAddress,
		tier.AdvancedStrategies,
		tier.CloudSync,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create tier: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create tier: %w", err)
	}

	return nil
}

func (r *repository) GetTier(
	ctx context.Context,
	tierName string,
) (*Tier, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM license_tiers WHERE tier_name = $1`,
		tierColumns,
	)

	var tier Tier
	err := r.db.GetContext(ctx, &tier, query, tierName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get tier: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}

	return &tier, nil
}

func (r *repository) UpdateTier(ctx context.Context, tier *Tier) error {
	query := `
		UPDATE license_tiers
		SET display_name = $2, description = $3,
		    max_concurrent_strategies = $4, max_wallets = $5,
		    max_daily_trades = $6, trade_fee_percent = $7,
		    fee_recipient_address = $8, advanced_strategies = $9,
		    cloud_sync = $10, updated_at = NOW()
		WHERE tier_name = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &tier.UpdatedAt, query,
		tier.TierName,
		tier.DisplayName,
		tier.Description,
		tier.MaxConcurrentStrategies,
		tier.MaxWallets,
		tier.MaxDailyTrades,
		tier.TradeFeePercent,
		tier.FeeRecipientAddress,
		tier.AdvancedStrategies,
		tier.CloudSync,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update tier: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}

	return nil
}

func (r *repository) ListTiers(ctx context.Context) ([]Tier, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM license_tiers ORDER BY tier_name`,
		tierColumns,
	)

	var tiers []Tier
	if err := r.db.SelectContext(ctx, &tiers, query); err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}

	return tiers, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
