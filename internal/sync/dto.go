// AngelaMos | 2026
// dto.go

package sync

type UpsertRequest struct {
	LicenseKey string `json:"license_key" validate:"required,max=64"`
	DataType   string `json:"data_type"   validate:"required,max=50"`
	DataKey    string `json:"data_key"    validate:"required,max=200"`
	Value      string `json:"value"       validate:"required"`
	DeviceID   string `json:"device_id"   validate:"omitempty,max=128"`
}

type UpsertResponse struct {
	DataType string `json:"data_type"`
	DataKey  string `json:"data_key"`
	Version  int64  `json:"version"`
}

type BulkUpsertRequest struct {
	LicenseKey string     `json:"license_key" validate:"required,max=64"`
	DeviceID   string     `json:"device_id"   validate:"omitempty,max=128"`
	Items      []BulkItem `json:"items"       validate:"required,min=1,dive"`
}

type BulkItem struct {
	DataType string `json:"data_type" validate:"required,max=50"`
	DataKey  string `json:"data_key"  validate:"required,max=200"`
	Value    string `json:"value"     validate:"required"`
}

// BulkItemResult reports per-item outcome; a bulk request can partially
// succeed.
type BulkItemResult struct {
	DataType string `json:"data_type"`
	DataKey  string `json:"data_key"`
	Version  int64  `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

type BulkUpsertResponse struct {
	Results   []BulkItemResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

type TypeCount struct {
	DataType string `db:"data_type" json:"data_type"`
	Count    int64  `db:"count"     json:"count"`
}

type StatusResponse struct {
	TotalItems int64       `json:"total_items"`
	ByType     []TypeCount `json:"by_type"`
}
