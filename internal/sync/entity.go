// AngelaMos | 2026
// entity.go

package sync

import (
	"time"
)

type Item struct {
	UserID   string    `db:"user_id"   json:"-"`
	DataType string    `db:"data_type" json:"data_type"`
	DataKey  string    `db:"data_key"  json:"data_key"`
	Value    string    `db:"value"     json:"value"`
	Version  int64     `db:"version"   json:"version"`
	DeviceID string    `db:"device_id" json:"device_id,omitempty"`
	SyncedAt time.Time `db:"synced_at" json:"synced_at"`
}

// allowedTypes is the closed set of namespaces clients may sync under.
var allowedTypes = map[string]struct{}{
	"strategies":  {},
	"settings":    {},
	"trades":      {},
	"favorites":   {},
	"wallets":     {},
	"alerts":      {},
	"preferences": {},
}

func IsAllowedType(dataType string) bool {
	_, ok := allowedTypes[dataType]
	return ok
}
