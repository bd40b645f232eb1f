package models

import "time"

// CheckRequest is sent to the store's check-and-validate endpoint.
type CheckRequest struct {
	Rows []CandidateRow `json:"rows"`
}

type CheckResponse struct {
	ValidRows         []ValidatedRecord  `json:"valid_rows"`
	ErrorRows         []RemoteRowError   `json:"error_rows"`
	DuplicateBarcodes []DuplicateBarcode `json:"duplicate_barcodes"`
}

type RemoteRowError struct {
	RowNumber int            `json:"rowNumber"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error"`
}

// DuplicateBarcode names a barcode that already exists in the store.
type DuplicateBarcode struct {
	Barcode   string `json:"barcode"`
	RowNumber int    `json:"row_number,omitempty"`
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// SubmitRecord is one batch to create.
type SubmitRecord struct {
	Barcode      string `json:"barcode"`
	BrandID      int    `json:"brand_id,omitempty"`
	ModelID      int    `json:"model_id,omitempty"`
	SizeID       int    `json:"size_id,omitempty"`
	ColorID      int    `json:"color_id,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	Size         string `json:"size,omitempty"`
	Color        string `json:"color,omitempty"`
	Quantity     int    `json:"quantity"`
	Layers       int    `json:"layers"`
	Serial       int    `json:"serial"`
	CurrentPhase Phase  `json:"current_phase"`
	Status       string `json:"status"`
}

type SubmitResponse struct {
	CreatedBatches    []Batch            `json:"created_batches"`
	DuplicateBarcodes []DuplicateBarcode `json:"duplicate_barcodes"`
	FailedRows        []FailedRow        `json:"failed_rows"`
	Message           string             `json:"message"`
}

type FailedRow struct {
	Barcode   string `json:"barcode"`
	RowNumber int    `json:"row_number,omitempty"`
	Error     string `json:"error"`
}

// Batch is a production batch as held by the store.
type Batch struct {
	BatchID       int        `json:"batch_id,omitempty"`
	Barcode       string     `json:"barcode"`
	BrandID       int        `json:"brand_id,omitempty"`
	ModelID       int        `json:"model_id,omitempty"`
	SizeID        int        `json:"size_id,omitempty"`
	ColorID       int        `json:"color_id,omitempty"`
	Brand         string     `json:"brand,omitempty"`
	Model         string     `json:"model,omitempty"`
	Size          string     `json:"size,omitempty"`
	Color         string     `json:"color,omitempty"`
	Quantity      int        `json:"quantity"`
	Layers        int        `json:"layers"`
	Serial        int        `json:"serial"`
	CurrentPhase  Phase      `json:"current_phase"`
	Status        string     `json:"status"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

// BatchUpdate carries only the fields that changed.
type BatchUpdate struct {
	CurrentPhase *Phase  `json:"current_phase,omitempty"`
	Status       *string `json:"status,omitempty"`
}

func (u BatchUpdate) Empty() bool {
	return u.CurrentPhase == nil && u.Status == nil
}

// SubmissionResult reports one submit call back to the operator.
type SubmissionResult struct {
	ImportID   string          `json:"import_id"`
	State      SubmissionState `json:"state"`
	Created    int             `json:"created"`
	Committed  []string        `json:"committed"`
	Duplicates []string        `json:"duplicates"`
	Failed     []FailedRow     `json:"failed"`
	Counts     Counts          `json:"counts"`
	Message    string          `json:"message,omitempty"`
}

// ImportEvent is published after every finished submission.
type ImportEvent struct {
	Type       string          `json:"type"`
	ImportID   string          `json:"import_id"`
	FileName   string          `json:"file_name"`
	State      SubmissionState `json:"state"`
	Committed  []string        `json:"committed"`
	Duplicates []string        `json:"duplicates"`
	Failed     []FailedRow     `json:"failed"`
	Counts     Counts          `json:"counts"`
	OccurredAt time.Time       `json:"occurred_at"`
}
