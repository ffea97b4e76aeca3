// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                 string     `db:"id"`
	Email              string     `db:"email"`
	Username           string     `db:"username"`
	PasswordHash       string     `db:"password_hash"`
	FullName           string     `db:"full_name"`
	Role               string     `db:"role"`
	IsActive           bool       `db:"is_active"`
	FeeOverridePercent *float64   `db:"fee_override_percent"`
	FeeNotes           string     `db:"fee_notes"`
	LastLoginAt        *time.Time `db:"last_login_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (u *User) HasFeeOverride() bool {
	return u.FeeOverridePercent != nil
}

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)
