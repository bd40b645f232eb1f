package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/common/metrics"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	awspkg "github.com/yousufaayman/barcode-manage-cpc-sub000/pkg/aws"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/repository"
	"go.uber.org/zap"
)

const (
	DefaultNetworkTimeout = 10 * time.Second
	DefaultMaxPrintCopies = 100
	EventImportSubmitted  = "import.submitted"
)

var (
	ErrSubmissionInProgress = apperrors.Conflict("A submission for this import is already in progress")
	ErrAlreadySubmitted     = apperrors.Conflict("This import has already been submitted")
	ErrNothingToSubmit      = apperrors.Conflict("There are no valid rows left to submit")
	ErrImportDiscarded      = apperrors.Conflict("The import was discarded before the submission finished")
	ErrSubmissionSuperseded = apperrors.Conflict("The submission was superseded before it finished")
	ErrPrintBeforeSubmit    = apperrors.Conflict("Labels can only be printed after the import has been submitted")
	ErrNothingToPrint       = apperrors.Conflict("There are no printable rows in this import")
	ErrPrintersUnavailable  = apperrors.Unavailable("Printer discovery is not configured")
)

type CoordinatorConfig struct {
	NetworkTimeout time.Duration
	MaxPrintCopies int
	EventsTopicARN string
}

// SubmissionCoordinator commits the success partition of an import to the
// store and drives printing once the import has been submitted.
type SubmissionCoordinator struct {
	submitter BatchSubmitter
	printer   PrintDispatcher
	printers  PrinterDirectory
	sessions  repository.SessionRepository
	locks     *SessionLocks
	events    awspkg.SNSPublisher
	cfg       CoordinatorConfig
	logger    *zap.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

// NewSubmissionCoordinator wires the coordinator. printers and events may be
// nil: printer names are then not validated and no events are published.
func NewSubmissionCoordinator(
	submitter BatchSubmitter,
	printer PrintDispatcher,
	printers PrinterDirectory,
	sessions repository.SessionRepository,
	locks *SessionLocks,
	events awspkg.SNSPublisher,
	cfg CoordinatorConfig,
	logger *zap.Logger,
	rec *metrics.Recorder,
) *SubmissionCoordinator {
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = DefaultNetworkTimeout
	}
	if cfg.MaxPrintCopies <= 0 {
		cfg.MaxPrintCopies = DefaultMaxPrintCopies
	}
	return &SubmissionCoordinator{
		submitter: submitter,
		printer:   printer,
		printers:  printers,
		sessions:  sessions,
		locks:     locks,
		events:    events,
		cfg:       cfg,
		logger:    logger,
		metrics:   rec,
		now:       time.Now,
	}
}

// staleAfter is how long a submission may stay in flight before another
// caller may treat it as dead.
func (c *SubmissionCoordinator) staleAfter() time.Duration {
	return 2 * c.cfg.NetworkTimeout
}

// Submit sends every uncommitted success row in one store call and merges
// the store's answer back into the import. The call is not cancelled when
// the caller goes away; its result is dropped if the import was discarded
// in the meantime.
func (c *SubmissionCoordinator) Submit(ctx context.Context, id string) (*models.SubmissionResult, error) {
	started, sent, err := c.beginSubmission(ctx, id)
	if err != nil {
		return nil, err
	}

	records := make([]models.SubmitRecord, len(sent))
	for i, r := range sent {
		records[i] = r.Record.Submission()
	}

	detached := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(detached, c.cfg.NetworkTimeout)
	defer cancel()

	callStart := time.Now()
	resp, callErr := c.submitter.SubmitBatches(callCtx, records)
	c.metrics.StoreCall("submit", time.Since(callStart))

	return c.finishSubmission(detached, started, sent, resp, callErr)
}

func (c *SubmissionCoordinator) beginSubmission(ctx context.Context, id string) (*models.ImportBatch, []models.ImportRow, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	batch, err := loadSession(ctx, c.sessions, id, c.now(), c.staleAfter(), c.logger)
	if err != nil {
		return nil, nil, err
	}

	switch batch.State {
	case models.StateSubmitting:
		return nil, nil, ErrSubmissionInProgress
	case models.StateSubmitted:
		return nil, nil, ErrAlreadySubmitted
	}
	if !models.CanTransition(batch.State, models.StateSubmitting) {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("Cannot submit an import in state %q", batch.State))
	}

	pending := batch.Pending()
	if len(pending) == 0 {
		return nil, nil, ErrNothingToSubmit
	}

	now := c.now().UTC()
	next := batch.Clone()
	next.State = models.StateSubmitting
	next.SubmittingSince = &now
	next.Attempts++
	next.LastError = ""
	next.UpdatedAt = now
	// Another replica may have claimed the session since it was read.
	if err := c.sessions.SaveIfState(ctx, next, batch.State); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, nil, ErrSubmissionInProgress
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrImportNotFound
		}
		return nil, nil, apperrors.Internal("Failed to save import", err)
	}

	c.logger.Info("submission started", zap.String("import_id", id), zap.Int("rows", len(pending)))
	return next, pending, nil
}

func (c *SubmissionCoordinator) finishSubmission(ctx context.Context, started *models.ImportBatch, sent []models.ImportRow, resp *models.SubmitResponse, callErr error) (*models.SubmissionResult, error) {
	unlock := c.locks.Lock(started.ID)
	defer unlock()

	current, err := c.sessions.Get(ctx, started.ID)
	if errors.Is(err, repository.ErrNotFound) {
		c.logger.Warn("dropping submission result for discarded import", zap.String("import_id", started.ID), zap.Error(callErr))
		return nil, ErrImportDiscarded
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load import", err)
	}
	if current.State != models.StateSubmitting || current.SubmittingSince == nil || !current.SubmittingSince.Equal(*started.SubmittingSince) {
		c.logger.Warn("dropping superseded submission result", zap.String("import_id", started.ID), zap.String("state", string(current.State)))
		return nil, ErrSubmissionSuperseded
	}

	if callErr != nil {
		next := current.Clone()
		next.State = models.StatePartiallyFailed
		next.SubmittingSince = nil
		next.LastError = callErr.Error()
		next.UpdatedAt = c.now().UTC()
		if err := c.sessions.Save(ctx, next); err != nil {
			c.logger.Error("failed to record submission failure", zap.String("import_id", started.ID), zap.Error(err))
		}
		c.metrics.Submission("network_failure", 0)
		c.logger.Warn("submission failed", zap.String("import_id", started.ID), zap.Error(callErr))

		if _, ok := apperrors.As(callErr); ok {
			return nil, callErr
		}
		return nil, apperrors.NetworkFailure("Submission failed", callErr)
	}

	next, result := reconcileSubmission(current, sent, resp)
	next.UpdatedAt = c.now().UTC()
	if err := c.sessions.Save(ctx, next); err != nil {
		return nil, apperrors.Internal("Failed to save import", err)
	}

	outcome := "submitted"
	if next.State == models.StatePartiallyFailed {
		outcome = "partially_failed"
	}
	c.metrics.Submission(outcome, len(result.Committed))
	c.logger.Info("submission finished",
		zap.String("import_id", next.ID),
		zap.String("state", string(next.State)),
		zap.Int("committed", len(result.Committed)),
		zap.Int("duplicates", len(result.Duplicates)),
		zap.Int("failed", len(result.Failed)),
	)
	c.publish(ctx, next, result)
	return result, nil
}

// reconcileSubmission is the second, authoritative reconciliation pass. Of
// the rows that were sent, duplicates reported now become duplicate, failed
// rows keep success with a submit error so a retry resends them, and every
// other row is committed.
func reconcileSubmission(batch *models.ImportBatch, sent []models.ImportRow, resp *models.SubmitResponse) (*models.ImportBatch, *models.SubmissionResult) {
	if resp == nil {
		resp = &models.SubmitResponse{}
	}

	sentSet := make(map[string]bool, len(sent))
	for _, r := range sent {
		sentSet[r.Record.Barcode] = true
	}
	dup := make(map[string]bool, len(resp.DuplicateBarcodes))
	for _, d := range resp.DuplicateBarcodes {
		dup[d.Barcode] = true
	}
	failed := make(map[string]string, len(resp.FailedRows))
	for _, f := range resp.FailedRows {
		failed[f.Barcode] = f.Error
	}

	result := &models.SubmissionResult{
		ImportID:   batch.ID,
		Created:    len(resp.CreatedBatches),
		Committed:  []string{},
		Duplicates: []string{},
		Failed:     []models.FailedRow{},
		Message:    resp.Message,
	}

	next := batch.Clone()
	for i, row := range next.Rows {
		if row.Record == nil || row.Outcome.Status != models.RowSuccess || !sentSet[row.Record.Barcode] {
			continue
		}
		barcode := row.Record.Barcode

		if dup[barcode] {
			row.Outcome = models.RowOutcome{
				Status:  models.RowDuplicate,
				Reasons: []string{fmt.Sprintf("Barcode '%s' already exists", barcode)},
			}
			row.SubmitError = ""
			result.Duplicates = append(result.Duplicates, barcode)
		} else if reason, ok := failed[barcode]; ok {
			if reason == "" {
				reason = "Rejected by the store"
			}
			row.SubmitError = reason
			result.Failed = append(result.Failed, models.FailedRow{Barcode: barcode, RowNumber: row.RowNumber, Error: reason})
		} else {
			row.Committed = true
			row.SubmitError = ""
			next.Committed[barcode] = true
			result.Committed = append(result.Committed, barcode)
		}
		next.Rows[i] = row
	}

	next.SubmittingSince = nil
	if len(result.Failed) > 0 {
		next.State = models.StatePartiallyFailed
		next.LastError = fmt.Sprintf("%d row(s) were not committed", len(result.Failed))
	} else {
		next.State = models.StateSubmitted
		next.LastError = ""
	}
	next.Recount()

	result.State = next.State
	result.Counts = next.Counts
	return next, result
}

func (c *SubmissionCoordinator) publish(ctx context.Context, batch *models.ImportBatch, result *models.SubmissionResult) {
	if c.events == nil || c.cfg.EventsTopicARN == "" {
		return
	}

	body, err := json.Marshal(models.ImportEvent{
		Type:       EventImportSubmitted,
		ImportID:   batch.ID,
		FileName:   batch.FileName,
		State:      batch.State,
		Committed:  result.Committed,
		Duplicates: result.Duplicates,
		Failed:     result.Failed,
		Counts:     batch.Counts,
		OccurredAt: c.now().UTC(),
	})
	if err != nil {
		c.logger.Error("failed to encode import event", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.events.Publish(pubCtx, c.cfg.EventsTopicARN, body); err != nil {
		c.logger.Warn("failed to publish import event", zap.String("import_id", batch.ID), zap.Error(err))
	}
}

// Print sends the printable rows of a submitted import to the printer. It
// reads a snapshot and takes no session lock, so it neither waits for nor
// delays a submission. Before submission it fails without any network call.
func (c *SubmissionCoordinator) Print(ctx context.Context, id string, opts models.PrintOptions) (*models.PrintResult, error) {
	batch, err := c.sessions.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load import", err)
	}
	if !batch.PrintReady() {
		return nil, ErrPrintBeforeSubmit
	}

	if opts.Count < 1 || opts.Count > c.cfg.MaxPrintCopies {
		return nil, apperrors.Validation(fmt.Sprintf("Copy count must be between 1-%d.", c.cfg.MaxPrintCopies))
	}
	printerName := strings.TrimSpace(opts.PrinterName)
	if printerName == "" {
		return nil, apperrors.Validation("A printer must be selected.")
	}

	labels, err := selectLabels(batch.Labels(), opts.Barcodes)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrNothingToPrint
	}

	if c.printers != nil {
		printers, err := c.printers.ListPrinters(ctx)
		if err != nil {
			return nil, err
		}
		if !slices.ContainsFunc(printers, func(p models.Printer) bool { return p.Name == printerName }) {
			return nil, apperrors.Validation(fmt.Sprintf("Unknown printer %q.", printerName))
		}
	}

	req := models.PrintRequest{Barcodes: labels, Count: opts.Count, PrinterName: printerName}
	if err := c.printer.Dispatch(ctx, req); err != nil {
		c.metrics.PrintJob("failed")
		c.logger.Warn("print dispatch failed", zap.String("import_id", id), zap.String("printer", printerName), zap.Error(err))
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NetworkFailure("Print dispatch failed", err)
	}

	c.metrics.PrintJob("sent")
	c.logger.Info("labels sent to printer",
		zap.String("import_id", id),
		zap.String("printer", printerName),
		zap.Int("labels", len(labels)),
		zap.Int("copies", opts.Count),
	)
	return &models.PrintResult{ImportID: id, Labels: len(labels), Count: opts.Count, PrinterName: printerName}, nil
}

// selectLabels narrows labels to the requested barcodes, rejecting any
// barcode that is not printable.
func selectLabels(labels []models.LabelRecord, barcodes []string) ([]models.LabelRecord, error) {
	if len(barcodes) == 0 {
		return labels, nil
	}

	byBarcode := make(map[string]models.LabelRecord, len(labels))
	for _, l := range labels {
		byBarcode[l.Barcode] = l
	}

	var (
		out     []models.LabelRecord
		missing []string
		seen    = make(map[string]bool, len(barcodes))
	)
	for _, b := range barcodes {
		b = strings.TrimSpace(b)
		if seen[b] {
			continue
		}
		seen[b] = true
		if l, ok := byBarcode[b]; ok {
			out = append(out, l)
		} else {
			missing = append(missing, b)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Validation("Barcode(s) not printable: " + strings.Join(missing, ", "))
	}
	return out, nil
}

// Printers lists the printers the sink reports.
func (c *SubmissionCoordinator) Printers(ctx context.Context) ([]models.Printer, error) {
	if c.printers == nil {
		return nil, ErrPrintersUnavailable
	}
	return c.printers.ListPrinters(ctx)
}
