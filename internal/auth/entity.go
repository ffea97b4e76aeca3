// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// Session is the server-side row backing an issued token. The raw token
// is never stored; token_digest maps to at most one row.
type Session struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	TokenDigest string    `db:"token_digest"`
	IssuedAt    time.Time `db:"issued_at"`
	ExpiresAt   time.Time `db:"expires_at"`
	IsActive    bool      `db:"is_active"`
	IPAddress   string    `db:"ip_address"`
	UserAgent   string    `db:"user_agent"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsUsable covers the session's own state; the owning user's active
// flag is checked separately on every request.
func (s *Session) IsUsable() bool {
	return s.IsActive && !s.IsExpired()
}

type UserInfo struct {
	ID           string
	Email        string
	Username     string
	FullName     string
	PasswordHash string
	Role         string
	IsActive     bool
}
