// AngelaMos | 2026
// repository.go

package audit

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/licensegate/internal/core"
)

type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, params ListParams) ([]Entry, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_log (
			id, actor_user_id, action, resource_type, resource_id,
			details, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &entry.CreatedAt, query,
		entry.ID,
		entry.ActorUserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Details,
		entry.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Entry, error) {
	params.Normalize()

	query := `
		SELECT id, actor_user_id, action, resource_type, resource_id,
		       details, ip_address, created_at
		FROM audit_log
		WHERE ($1 = '' OR action = $1)
		  AND ($2::uuid IS NULL OR actor_user_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	var actor *string
	if params.ActorUserID != "" {
		actor = &params.ActorUserID
	}

	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, query,
		params.Action,
		actor,
		params.PageSize,
		params.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	return entries, nil
}

type ListParams struct {
	Action      string
	ActorUserID string
	Page        int
	PageSize    int
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 50
	}
	if p.PageSize > 200 {
		p.PageSize = 200
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
