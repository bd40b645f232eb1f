package models

import "time"

// RowStatus is the classification of one imported row.
type RowStatus string

const (
	RowSuccess   RowStatus = "success"
	RowError     RowStatus = "error"
	RowDuplicate RowStatus = "duplicate"
)

// SubmissionState tracks an ImportBatch through submission.
type SubmissionState string

const (
	StateUnsubmitted     SubmissionState = "unsubmitted"
	StateSubmitting      SubmissionState = "submitting"
	StateSubmitted       SubmissionState = "submitted"
	StatePartiallyFailed SubmissionState = "partially-failed"
)

// CanTransition reports whether the submission state machine allows from -> to.
func CanTransition(from, to SubmissionState) bool {
	switch from {
	case StateUnsubmitted, StatePartiallyFailed:
		return to == StateSubmitting
	case StateSubmitting:
		return to == StateSubmitted || to == StatePartiallyFailed
	}
	return false
}

// Printable reports whether labels may be printed in this state.
func (s SubmissionState) Printable() bool {
	return s == StateSubmitted || s == StatePartiallyFailed
}

type RowOutcome struct {
	Status  RowStatus    `json:"status" bson:"status"`
	Reasons []string     `json:"reasons,omitempty" bson:"reasons,omitempty"`
	Errors  []FieldError `json:"errors,omitempty" bson:"errors,omitempty"`
}

// ImportRow is one non-blank sheet row together with its classification.
// Original always carries the text as typed, never the normalised values.
type ImportRow struct {
	RowNumber   int              `json:"row_number" bson:"row_number"`
	Original    CandidateRow     `json:"original" bson:"original"`
	Record      *ValidatedRecord `json:"record,omitempty" bson:"record,omitempty"`
	Outcome     RowOutcome       `json:"outcome" bson:"outcome"`
	Committed   bool             `json:"committed" bson:"committed"`
	SubmitError string           `json:"submit_error,omitempty" bson:"submit_error,omitempty"`
}

// Barcode is the store-facing barcode of the row, or the typed value when
// the row never validated.
func (r ImportRow) Barcode() string {
	if r.Record != nil {
		return r.Record.Barcode
	}
	return r.Original.Barcode
}

type Counts struct {
	Success   int `json:"success" bson:"success"`
	Error     int `json:"error" bson:"error"`
	Duplicate int `json:"duplicate" bson:"duplicate"`
	Total     int `json:"total" bson:"total"`
}

// ImportBatch is the working set of one uploaded file. It is treated as a
// value: every transition builds a new batch with Clone and replaces the
// stored one.
type ImportBatch struct {
	ID              string          `json:"id" bson:"id"`
	FileName        string          `json:"file_name" bson:"file_name"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" bson:"updated_at"`
	Rows            []ImportRow     `json:"rows" bson:"rows"`
	Counts          Counts          `json:"counts" bson:"counts"`
	State           SubmissionState `json:"state" bson:"state"`
	Committed       map[string]bool `json:"committed" bson:"committed"`
	SubmittingSince *time.Time      `json:"submitting_since,omitempty" bson:"submitting_since,omitempty"`
	Attempts        int             `json:"attempts" bson:"attempts"`
	LastError       string          `json:"last_error,omitempty" bson:"last_error,omitempty"`
}

// Clone returns a copy that can be modified without touching b. Records and
// outcome slices are shared because they are never mutated in place.
func (b *ImportBatch) Clone() *ImportBatch {
	next := *b
	next.Rows = make([]ImportRow, len(b.Rows))
	copy(next.Rows, b.Rows)
	next.Committed = make(map[string]bool, len(b.Committed))
	for k, v := range b.Committed {
		next.Committed[k] = v
	}
	if b.SubmittingSince != nil {
		t := *b.SubmittingSince
		next.SubmittingSince = &t
	}
	return &next
}

// Recount recomputes Counts from the rows.
func (b *ImportBatch) Recount() {
	var c Counts
	for _, r := range b.Rows {
		switch r.Outcome.Status {
		case RowSuccess:
			c.Success++
		case RowError:
			c.Error++
		case RowDuplicate:
			c.Duplicate++
		}
	}
	c.Total = len(b.Rows)
	b.Counts = c
}

// Partition splits the rows by status, keeping file order inside each slice.
func (b *ImportBatch) Partition() (success, errs, duplicates []ImportRow) {
	success, errs, duplicates = []ImportRow{}, []ImportRow{}, []ImportRow{}
	for _, r := range b.Rows {
		switch r.Outcome.Status {
		case RowSuccess:
			success = append(success, r)
		case RowError:
			errs = append(errs, r)
		case RowDuplicate:
			duplicates = append(duplicates, r)
		}
	}
	return success, errs, duplicates
}

// Pending returns the success rows that have not been committed yet.
func (b *ImportBatch) Pending() []ImportRow {
	var out []ImportRow
	for _, r := range b.Rows {
		if r.Outcome.Status == RowSuccess && r.Record != nil && !b.Committed[r.Record.Barcode] {
			out = append(out, r)
		}
	}
	return out
}

// PrintReady reports whether labels may be printed. A retry in flight keeps
// the labels of the earlier attempts printable.
func (b *ImportBatch) PrintReady() bool {
	return b.State.Printable() || (b.State == StateSubmitting && b.Attempts > 1)
}

// Labels returns the printable rows: duplicates plus committed successes.
func (b *ImportBatch) Labels() []LabelRecord {
	var out []LabelRecord
	for _, r := range b.Rows {
		if r.Record == nil {
			continue
		}
		switch r.Outcome.Status {
		case RowDuplicate:
			out = append(out, r.Record.Label())
		case RowSuccess:
			if b.Committed[r.Record.Barcode] {
				out = append(out, r.Record.Label())
			}
		}
	}
	return out
}

// ImportView is the operator-facing rendering of a batch.
type ImportView struct {
	ID         string          `json:"id"`
	FileName   string          `json:"file_name"`
	State      SubmissionState `json:"state"`
	Counts     Counts          `json:"counts"`
	Success    []ImportRow     `json:"success"`
	Errors     []ImportRow     `json:"errors"`
	Duplicates []ImportRow     `json:"duplicates"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (b *ImportBatch) View() ImportView {
	success, errs, dups := b.Partition()
	return ImportView{
		ID:         b.ID,
		FileName:   b.FileName,
		State:      b.State,
		Counts:     b.Counts,
		Success:    success,
		Errors:     errs,
		Duplicates: dups,
		LastError:  b.LastError,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}
