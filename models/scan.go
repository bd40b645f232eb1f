package models

import "time"

// ScanEvent is one decoded barcode.
type ScanEvent struct {
	Code       string    `json:"code"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
}

const (
	ScanSourceHardware = "hardware"
	ScanSourceManual   = "manual"
)

// ScanMode selects what a scan does with the batch it finds.
type ScanMode string

const (
	ScanView   ScanMode = "view"
	ScanUpdate ScanMode = "update"
)

// ScanRequest is a single-scan lookup or update. Phase zero means "the
// operator's own phase" for floor roles.
type ScanRequest struct {
	Code   string   `json:"code"`
	Mode   ScanMode `json:"mode"`
	Role   string   `json:"role"`
	Phase  Phase    `json:"phase,omitempty"`
	Status string   `json:"status,omitempty"`
	Source string   `json:"-"`
}

type ScanResult struct {
	Event   ScanEvent    `json:"event"`
	Batch   *Batch       `json:"batch"`
	Updated bool         `json:"updated"`
	Changes *BatchUpdate `json:"changes,omitempty"`
}
