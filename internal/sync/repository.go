// AngelaMos | 2026
// repository.go

package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/licensegate/internal/core"
)

type Repository interface {
	// Upsert is a single atomic conditional write: a new key lands at
	// version 1, an existing key has its version incremented by
	// exactly one. The resulting version is always returned so the
	// caller can detect lost updates.
	Upsert(ctx context.Context, item *Item) (int64, error)
	List(ctx context.Context, userID, dataType string) ([]Item, error)
	Get(ctx context.Context, userID, dataType, dataKey string) (*Item, error)
	// Delete removes the row outright; no tombstone is kept, so a
	// later upsert on the same key restarts at version 1.
	Delete(ctx context.Context, userID, dataType, dataKey string) error
	CountByType(ctx context.Context, userID string) ([]TypeCount, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, item *Item) (int64, error) {
	query := `
		INSERT INTO sync_items (
			user_id, data_type, data_key, value, version, device_id, synced_at
		) VALUES (
			$1, $2, $3, $4, 1, $5, NOW()
		)
		ON CONFLICT (user_id, data_type, data_key) DO UPDATE
		SET value = EXCLUDED.value,
		    version = sync_items.version + 1,
		    device_id = EXCLUDED.device_id,
		    synced_at = NOW()
		RETURNING version`

	var version int64
	err := r.db.GetContext(ctx, &version, query,
		item.UserID,
		item.DataType,
		item.DataKey,
		item.Value,
		item.DeviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert sync item: %w", err)
	}

	return version, nil
}

func (r *repository) List(
	ctx context.Context,
	userID, dataType string,
) ([]Item, error) {
	query := `
		SELECT user_id, data_type, data_key, value, version, device_id, synced_at
		FROM sync_items
		WHERE user_id = $1`
	args := []any{userID}

	if dataType != "" {
		query += ` AND data_type = $2`
		args = append(args, dataType)
	}

	query += ` ORDER BY synced_at DESC`

	var items []Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list sync items: %w", err)
	}

	return items, nil
}

func (r *repository) Get(
	ctx context.Context,
	userID, dataType, dataKey string,
) (*Item, error) {
	query := `
		SELECT user_id, data_type, data_key, value, version, device_id, synced_at
		FROM sync_items
		WHERE user_id = $1 AND data_type = $2 AND data_key = $3`

	var item Item
	err := r.db.GetContext(ctx, &item, query, userID, dataType, dataKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get sync item: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get sync item: %w", err)
	}

	return &item, nil
}

func (r *repository) Delete(
	ctx context.Context,
	userID, dataType, dataKey string,
) error {
	query := `
		DELETE FROM sync_items
		WHERE user_id = $1 AND data_type = $2 AND data_key = $3`

	result, err := r.db.ExecContext(ctx, query, userID, dataType, dataKey)
	if err != nil {
		return fmt.Errorf("delete sync item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete sync item: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete sync item: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) CountByType(
	ctx context.Context,
	userID string,
) ([]TypeCount, error) {
	query := `
		SELECT data_type, COUNT(*) AS count
		FROM sync_items
		WHERE user_id = $1
		GROUP BY data_type
		ORDER BY data_type`

	var counts []TypeCount
	if err := r.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("count sync items: %w", err)
	}

	return counts, nil
}
