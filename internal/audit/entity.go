// AngelaMos | 2026
// entity.go

package audit

import (
	"time"
)

type Entry struct {
	ID           string    `db:"id"            json:"id"`
	ActorUserID  *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action       string    `db:"action"        json:"action"`
	ResourceType string    `db:"resource_type" json:"resource_type"`
	ResourceID   string    `db:"resource_id"   json:"resource_id"`
	Details      string    `db:"details"       json:"details"`
	IPAddress    string    `db:"ip_address"    json:"ip_address"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

const (
	ActionRegister          = "auth.register"
	ActionLogin             = "auth.login"
	ActionLoginFailed       = "auth.login_failed"
	ActionLogout            = "auth.logout"
	ActionTokenRefresh      = "auth.token_refresh"
	ActionPasswordChange    = "auth.password_change"
	ActionLicenseGenerate   = "license.generate"
	ActionLicenseActivate   = "license.activate"
	ActionLicenseRejected   = "license.rejected"
	ActionLicenseRevoke     = "license.revoke"
	ActionLicenseDeactivate = "license.deactivate"
	ActionFeeOverrideSet    = "fee.override_set"
	ActionFeeOverrideClear  = "fee.override_clear"
	ActionTradeRecorded     = "fee.trade_recorded"
	ActionSettingUpdate     = "settings.update"
	ActionUserUpdate        = "user.update"
	ActionUserDeactivate    = "user.deactivate"
)
