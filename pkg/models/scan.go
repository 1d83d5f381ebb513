package models

import "time"

// Scan statuses as recorded by the terminal.
const (
	ScanStatusOK  = "OK"
	ScanStatusNOK = "NOK"
)

// MaxScanImages is the number of photograph slots on a scan record.
const MaxScanImages = 6

// ScanRecord is one terminal-gate crossing with its container number and
// up to six photograph paths. Empty slots are empty strings. The container
// number may be a double container ("ABCD1234567/EFGH7654321") or the
// sentinel "N/A" when the terminal recorded none.
type ScanRecord struct {
	ScanID      string    `json:"scan_id" bson:"scan_id"`
	ContainerNo string    `json:"container_no" bson:"container_no"`
	TruckNo     string    `json:"truck_no" bson:"truck_no"`
	ScanTime    time.Time `json:"scan_time" bson:"scan_time"`
	Status      string    `json:"status" bson:"status"`

	ImagePaths [MaxScanImages]string `json:"image_paths" bson:"image_paths"`

	// Validated is set once a validation summary has been written back.
	Validated bool `json:"validated,omitempty" bson:"validated,omitempty"`
}

// HasImages reports whether any image slot is populated.
func (r ScanRecord) HasImages() bool {
	for _, p := range r.ImagePaths {
		if p != "" {
			return true
		}
	}
	return false
}
