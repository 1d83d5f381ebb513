package models

import "time"

// EventType identifies the variant of a classified log line.
type EventType string

const (
	EventScan       EventType = "scan"
	EventFtpUpload  EventType = "ftp_upload"
	EventConnection EventType = "connection"
	EventSystem     EventType = "system"
)

// LogEvent is one classified line from the terminal operational log.
// Fields beyond Type/Timestamp/RawLine are populated per variant.
type LogEvent struct {
	Type      EventType `json:"type" bson:"type"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	RawLine   string    `json:"raw_line" bson:"raw_line"`

	// Scan fields.
	ScanID     string                 `json:"scan_id,omitempty" bson:"scan_id,omitempty"`
	ResultCode string                 `json:"result_code,omitempty" bson:"result_code,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty" bson:"payload,omitempty"`
	// Repaired marks a payload that only parsed after the JSON repair pass.
	// Downstream consumers should treat such records with lower confidence.
	Repaired bool `json:"repaired,omitempty" bson:"repaired,omitempty"`

	// FTP upload fields.
	UploadIP   string `json:"upload_ip,omitempty" bson:"upload_ip,omitempty"`
	UploadFile string `json:"upload_file,omitempty" bson:"upload_file,omitempty"`
}

// FileState tracks the reading position of a tailed log file.
type FileState struct {
	Offset   int64     `json:"offset"`
	LastRead time.Time `json:"last_read"`
}
