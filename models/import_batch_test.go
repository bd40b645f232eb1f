package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to SubmissionState
		want     bool
	}{
		{StateUnsubmitted, StateSubmitting, true},
		{StatePartiallyFailed, StateSubmitting, true},
		{StateSubmitting, StateSubmitted, true},
		{StateSubmitting, StatePartiallyFailed, true},
		{StateUnsubmitted, StateSubmitted, false},
		{StateSubmitted, StateSubmitting, false},
		{StateSubmitting, StateSubmitting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func batchWith(rows ...ImportRow) *ImportBatch {
	b := &ImportBatch{ID: "b", Rows: rows, Committed: map[string]bool{}}
	b.Recount()
	return b
}

func row(n int, status RowStatus, barcode string) ImportRow {
	r := ImportRow{RowNumber: n, Outcome: RowOutcome{Status: status}}
	if barcode != "" {
		r.Record = &ValidatedRecord{RowNumber: n, Barcode: barcode}
	}
	return r
}

func TestImportBatch_CloneIsIndependent(t *testing.T) {
	since := time.Now()
	b := batchWith(row(1, RowSuccess, "A1"))
	b.SubmittingSince = &since

	next := b.Clone()
	next.Committed["A1"] = true
	next.Rows[0].SubmitError = "rejected"
	*next.SubmittingSince = since.Add(time.Hour)

	assert.False(t, b.Committed["A1"])
	assert.Empty(t, b.Rows[0].SubmitError)
	assert.True(t, b.SubmittingSince.Equal(since))
}

func TestImportBatch_PartitionAndCounts(t *testing.T) {
	b := batchWith(row(1, RowSuccess, "A1"), row(2, RowError, ""), row(3, RowDuplicate, "C1"), row(4, RowSuccess, "D1"))

	success, errs, dups := b.Partition()

	assert.Equal(t, Counts{Success: 2, Error: 1, Duplicate: 1, Total: 4}, b.Counts)
	require.Len(t, success, 2)
	assert.Equal(t, 4, success[1].RowNumber)
	assert.Len(t, errs, 1)
	assert.Len(t, dups, 1)

	success, errs, dups = batchWith().Partition()
	assert.NotNil(t, success)
	assert.NotNil(t, errs)
	assert.NotNil(t, dups)
}

func TestImportBatch_PendingAndLabels(t *testing.T) {
	b := batchWith(row(1, RowSuccess, "A1"), row(2, RowError, ""), row(3, RowDuplicate, "C1"), row(4, RowSuccess, "D1"))
	b.Committed["A1"] = true

	pending := b.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "D1", pending[0].Barcode())

	var barcodes []string
	for _, l := range b.Labels() {
		barcodes = append(barcodes, l.Barcode)
	}
	assert.Equal(t, []string{"A1", "C1"}, barcodes)
}

func TestSubmissionState_Printable(t *testing.T) {
	assert.False(t, StateUnsubmitted.Printable())
	assert.False(t, StateSubmitting.Printable())
	assert.True(t, StateSubmitted.Printable())
	assert.True(t, StatePartiallyFailed.Printable())
}

func TestImportBatch_PrintReady(t *testing.T) {
	tests := []struct {
		state    SubmissionState
		attempts int
		want     bool
	}{
		{StateUnsubmitted, 0, false},
		{StateSubmitting, 1, false},
		{StateSubmitting, 2, true},
		{StatePartiallyFailed, 1, true},
		{StateSubmitted, 1, true},
	}
	for _, tt := range tests {
		b := &ImportBatch{State: tt.state, Attempts: tt.attempts}
		assert.Equal(t, tt.want, b.PrintReady(), "%s after %d attempts", tt.state, tt.attempts)
	}
}

func TestPhaseForRole(t *testing.T) {
	p, ok := PhaseForRole(RoleSewing)
	assert.True(t, ok)
	assert.Equal(t, PhaseSewing, p)

	_, ok = PhaseForRole(RoleAdmin)
	assert.False(t, ok)
	assert.True(t, KnownRole(RoleAdmin))
	assert.False(t, KnownRole("Dyeing"))
}
