package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/common/metrics"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxImportRows  = 1000
	DefaultCheckChunkSize = 200
	defaultCheckWorkers   = 4
)

type PipelineConfig struct {
	MaxRows        int
	CheckChunkSize int
	CheckWorkers   int
}

// ImportPipeline turns an uploaded file into a classified ImportBatch:
// parse, normalise and validate locally, then reconcile against the store.
// Only the check step talks to the network.
type ImportPipeline struct {
	checker   RowChecker
	validator *RowValidator
	cfg       PipelineConfig
	logger    *zap.Logger
	metrics   *metrics.Recorder
	now       func() time.Time
}

func NewImportPipeline(checker RowChecker, validator *RowValidator, cfg PipelineConfig, logger *zap.Logger, rec *metrics.Recorder) *ImportPipeline {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxImportRows
	}
	if cfg.CheckChunkSize <= 0 {
		cfg.CheckChunkSize = DefaultCheckChunkSize
	}
	if cfg.CheckWorkers <= 0 {
		cfg.CheckWorkers = defaultCheckWorkers
	}
	return &ImportPipeline{
		checker:   checker,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		metrics:   rec,
		now:       time.Now,
	}
}

// ImportFile classifies every non-blank row of the file into exactly one of
// success, error or duplicate, preserving file order. The returned batch has
// no id yet.
func (p *ImportPipeline) ImportFile(ctx context.Context, data []byte, fileName, mimeHint string) (*models.ImportBatch, error) {
	candidates, err := ParseSheet(data, fileName, mimeHint, p.cfg.MaxRows)
	if err != nil {
		return nil, err
	}

	local := p.classifyLocally(candidates)

	resp, err := p.check(ctx, local)
	if err != nil {
		return nil, err
	}

	batch := reconcileCheck(local, resp)
	p.metrics.RowsClassified(batch.Counts.Success, batch.Counts.Error, batch.Counts.Duplicate)
	p.logger.Info("import classified",
		zap.String("file", fileName),
		zap.Int("success", batch.Counts.Success),
		zap.Int("error", batch.Counts.Error),
		zap.Int("duplicate", batch.Counts.Duplicate),
	)
	return batch, nil
}

// classifyLocally validates every row and flags barcodes repeated inside the
// file. Rows that pass are provisionally success until the check pass.
func (p *ImportPipeline) classifyLocally(candidates []models.CandidateRow) *models.ImportBatch {
	now := p.now().UTC()
	batch := &models.ImportBatch{
		CreatedAt: now,
		UpdatedAt: now,
		Rows:      make([]models.ImportRow, 0, len(candidates)),
		State:     models.StateUnsubmitted,
		Committed: map[string]bool{},
	}

	seen := make(map[string]int)
	for _, c := range candidates {
		row := models.ImportRow{RowNumber: c.RowNumber, Original: c}

		record, errs := p.validator.Validate(c)
		if len(errs) == 0 && record.Barcode != "" {
			if first, dup := seen[record.Barcode]; dup {
				errs = append(errs, models.FieldError{
					Field:   columnBarcode,
					Code:    models.CodeDuplicateBarcodeInFile,
					Message: fmt.Sprintf("Duplicate barcode '%s' found (also in row %d)", record.Barcode, first),
				})
			} else {
				seen[record.Barcode] = c.RowNumber
			}
		}

		if len(errs) > 0 {
			row.Outcome = errorOutcome(errs...)
		} else {
			rec := record
			row.Record = &rec
			row.Outcome = models.RowOutcome{Status: models.RowSuccess}
		}
		batch.Rows = append(batch.Rows, row)
	}

	batch.Recount()
	return batch
}

// check sends the locally valid rows to the store in chunks. Chunks run
// concurrently; the merged response keeps chunk order.
func (p *ImportPipeline) check(ctx context.Context, batch *models.ImportBatch) (*models.CheckResponse, error) {
	var payload []models.CandidateRow
	for _, r := range batch.Rows {
		if r.Outcome.Status == models.RowSuccess {
			payload = append(payload, checkPayload(*r.Record))
		}
	}
	if len(payload) == 0 {
		return &models.CheckResponse{}, nil
	}

	var chunks [][]models.CandidateRow
	for start := 0; start < len(payload); start += p.cfg.CheckChunkSize {
		chunks = append(chunks, payload[start:min(start+p.cfg.CheckChunkSize, len(payload))])
	}

	responses := make([]*models.CheckResponse, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.CheckWorkers)
	for i, chunk := range chunks {
		g.Go(func() error {
			start := time.Now()
			resp, err := p.checker.CheckRows(gctx, chunk)
			p.metrics.StoreCall("check", time.Since(start))
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NetworkFailure("Duplicate check failed", err)
	}

	merged := &models.CheckResponse{}
	for _, r := range responses {
		if r == nil {
			continue
		}
		merged.ValidRows = append(merged.ValidRows, r.ValidRows...)
		merged.ErrorRows = append(merged.ErrorRows, r.ErrorRows...)
		merged.DuplicateBarcodes = append(merged.DuplicateBarcodes, r.DuplicateBarcodes...)
	}
	return merged, nil
}

// checkPayload is the canonical form of a validated row as sent to the store.
func checkPayload(r models.ValidatedRecord) models.CandidateRow {
	return models.CandidateRow{
		RowNumber: r.RowNumber,
		Barcode:   r.Barcode,
		Brand:     r.Brand,
		Model:     r.Model,
		Size:      r.Size,
		Color:     r.Color,
		Quantity:  strconv.Itoa(r.Quantity),
		Layers:    strconv.Itoa(r.Layers),
		Serial:    strconv.Itoa(r.Serial),
	}
}

// reconcileCheck is the first reconciliation pass. It returns a new batch in
// which every provisional success row is confirmed, rejected or marked as a
// duplicate of a barcode already in the store.
func reconcileCheck(batch *models.ImportBatch, resp *models.CheckResponse) *models.ImportBatch {
	remoteErrs := make(map[int][]string)
	for _, e := range resp.ErrorRows {
		remoteErrs[e.RowNumber] = append(remoteErrs[e.RowNumber], e.Error)
	}

	dupByBarcode := make(map[string]bool)
	dupByRow := make(map[int]models.DuplicateBarcode)
	for _, d := range resp.DuplicateBarcodes {
		if d.Barcode != "" {
			dupByBarcode[d.Barcode] = true
		}
		if d.RowNumber > 0 {
			dupByRow[d.RowNumber] = d
		}
	}

	validByRow := make(map[int]models.ValidatedRecord)
	validByBarcode := make(map[string]models.ValidatedRecord)
	for _, v := range resp.ValidRows {
		if v.RowNumber > 0 {
			validByRow[v.RowNumber] = v
		} else if v.Barcode != "" {
			validByBarcode[v.Barcode] = v
		}
	}

	next := batch.Clone()
	for i, row := range next.Rows {
		if row.Outcome.Status != models.RowSuccess {
			continue
		}
		local := *row.Record

		if msgs, ok := remoteErrs[row.RowNumber]; ok {
			row.Record = nil
			row.Outcome = remoteErrorOutcome(strings.Join(msgs, "; "))
			next.Rows[i] = row
			continue
		}

		if d, ok := dupByRow[row.RowNumber]; ok || (local.Barcode != "" && dupByBarcode[local.Barcode]) {
			if local.Barcode == "" {
				local.Barcode = d.Barcode
			}
			row.Record = &local
			row.Outcome = models.RowOutcome{
				Status:  models.RowDuplicate,
				Reasons: []string{fmt.Sprintf("Barcode '%s' already exists", local.Barcode)},
			}
			next.Rows[i] = row
			continue
		}

		// Rows the store did not echo back stay success with zero catalog
		// ids; unresolved references surface as submit-time failures.
		resolved := local
		remote, ok := validByRow[row.RowNumber]
		if !ok && local.Barcode != "" {
			remote, ok = validByBarcode[local.Barcode]
		}
		if ok {
			resolved = mergeResolved(local, remote)
		}
		if resolved.Barcode == "" {
			row.Record = nil
			row.Outcome = remoteErrorOutcome("Store did not assign a barcode")
			next.Rows[i] = row
			continue
		}
		row.Record = &resolved
		next.Rows[i] = row
	}

	next.Recount()
	return next
}

// mergeResolved keeps the locally validated values and takes identity
// (catalog ids, assigned barcode) from the store.
func mergeResolved(local, remote models.ValidatedRecord) models.ValidatedRecord {
	out := local
	if out.Barcode == "" {
		out.Barcode = strings.TrimSpace(remote.Barcode)
	}
	out.BrandID = remote.BrandID
	out.ModelID = remote.ModelID
	out.SizeID = remote.SizeID
	out.ColorID = remote.ColorID
	return out
}

func errorOutcome(errs ...models.FieldError) models.RowOutcome {
	reasons := make([]string, len(errs))
	for i, e := range errs {
		reasons[i] = e.Message
	}
	return models.RowOutcome{Status: models.RowError, Reasons: reasons, Errors: errs}
}

func remoteErrorOutcome(msg string) models.RowOutcome {
	return errorOutcome(models.FieldError{Field: "row", Code: models.CodeRemoteValidation, Message: msg})
}
