// AngelaMos | 2026
// repository.go

package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/licensegate/internal/core"
)

type Setting struct {
	Key       string    `db:"key"        json:"key"`
	Value     string    `db:"value"      json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]Setting, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM system_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get setting %q: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}

	return value, nil
}

// Set only updates known keys; unknown keys are rejected so the
// settings table stays a closed registry.
func (r *repository) Set(ctx context.Context, key, value string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE system_settings
		SET value = $2, updated_at = NOW()
		WHERE key = $1`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	if rows == 0 {
		return fmt.Errorf("set setting %q: %w", key, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(ctx context.Context) ([]Setting, error) {
	var settings []Setting
	err := r.db.SelectContext(ctx, &settings,
		`SELECT key, value, updated_at FROM system_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}

	return settings, nil
}
