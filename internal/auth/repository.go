// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/licensegate/internal/core"
)

type Repository interface {
	Create(ctx context.Context, session *Session) error
	FindByDigest(ctx context.Context, digest string) (*Session, error)
	FindByID(ctx context.Context, id string) (*Session, error)
	DeactivateByDigest(ctx context.Context, digest string) error
	DeactivateByID(ctx context.Context, id string) error
	ListActiveForUser(ctx context.Context, userID string) ([]Session, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (
			id, user_id, token_digest, expires_at, ip_address, user_agent
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING issued_at, is_active`

	err := r.db.GetContext(ctx, session, query,
		session.ID,
		session.UserID,
		session.TokenDigest,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

func (r *repository) FindByDigest(
	ctx context.Context,
	digest string,
) (*Session, error) {
	query := `
		SELECT id, user_id, token_digest, issued_at, expires_at,
		       is_active, ip_address, user_agent
		FROM sessions
		WHERE token_digest = $1`

	var session Session
	err := r.db.GetContext(ctx, &session, query, digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	return &session, nil
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*Session, error) {
	query := `
		SELECT id, user_id, token_digest, issued_at, expires_at,
		       is_active, ip_address, user_agent
		FROM sessions
		WHERE id = $1`

	var session Session
	err := r.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	return &session, nil
}

// DeactivateByDigest is idempotent: deactivating an already-inactive or
// missing session is not an error.
func (r *repository) DeactivateByDigest(
	ctx context.Context,
	digest string,
) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE
		WHERE token_digest = $1 AND is_active = TRUE`

	if _, err := r.db.ExecContext(ctx, query, digest); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}

	return nil
}

func (r *repository) DeactivateByID(ctx context.Context, id string) error {
	query := `
		UPDATE sessions
		SET is_active = FALSE
		WHERE id = $1 AND is_active = TRUE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("deactivate session: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListActiveForUser(
	ctx context.Context,
	userID string,
) ([]Session, error) {
	query := `
		SELECT id, user_id, token_digest, issued_at, expires_at,
		       is_active, ip_address, user_agent
		FROM sessions
		WHERE user_id = $1
		  AND is_active = TRUE
		  AND expires_at > NOW()
		ORDER BY issued_at DESC`

	var sessions []Session
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	return sessions, nil
}

func (r *repository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at < $1`

	cutoff := time.Now().Add(-24 * time.Hour)

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return rows, nil
}
