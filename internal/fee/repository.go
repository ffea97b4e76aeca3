// AngelaMos | 2026
// repository.go

package fee

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/licensegate/internal/core"
)

type Repository interface {
	// Record inserts a trade fee keyed by signature. A replayed
	// signature is not an error: the insert is dropped and the
	// original row is returned with inserted=false.
	Record(ctx context.Context, fee *TradeFee) (inserted bool, err error)
	GetBySignature(ctx context.Context, signature string) (*TradeFee, error)
	Summary(ctx context.Context, since time.Time) (*Summary, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Record(
	ctx context.Context,
	fee *TradeFee,
) (bool, error) {
	query := `
		INSERT INTO trade_fees (
			id, trade_signature, license_key, user_id, fee_percent,
			fee_recipient, source
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (trade_signature) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		fee.ID,
		fee.TradeSignature,
		fee.LicenseKey,
		fee.UserID,
		fee.FeePercent,
		fee.FeeRecipient,
		fee.Source,
	)
	if err != nil {
		return false, fmt.Errorf("record trade fee: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record trade fee: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) GetBySignature(
	ctx context.Context,
	signature string,
) (*TradeFee, error) {
	query := `
		SELECT id, trade_signature, license_key, user_id, fee_percent,
		       fee_recipient, source, recorded_at
		FROM trade_fees
		WHERE trade_signature = $1`

	var fee TradeFee
	err := r.db.GetContext(ctx, &fee, query, signature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get trade fee: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get trade fee: %w", err)
	}

	return &fee, nil
}

func (r *repository) Summary(
	ctx context.Context,
	since time.Time,
) (*Summary, error) {
	query := `
		SELECT
			COUNT(*) AS total_trades,
			COALESCE(AVG(fee_percent), 0) AS avg_fee_percent,
			COUNT(*) FILTER (WHERE source = 'user_override') AS user_overrides,
			COUNT(*) FILTER (WHERE source = 'tier_override') AS tier_overrides,
			COUNT(*) FILTER (WHERE source = 'system_default') AS system_defaults
		FROM trade_fees
		WHERE recorded_at >= $1`

	var summary Summary
	if err := r.db.GetContext(ctx, &summary, query, since); err != nil {
		return nil, fmt.Errorf("fee summary: %w", err)
	}

	summary.Since = since
	return &summary, nil
}
