package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/common/metrics"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"go.uber.org/zap"
)

// ScanService applies one decoded scan to the batch it names. Scans never
// touch import sessions.
type ScanService struct {
	store   BatchStore
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

func NewScanService(store BatchStore, timeout time.Duration, logger *zap.Logger, rec *metrics.Recorder) *ScanService {
	if timeout <= 0 {
		timeout = DefaultNetworkTimeout
	}
	return &ScanService{store: store, timeout: timeout, logger: logger, metrics: rec, now: time.Now}
}

// Apply looks the scanned batch up and, in update mode, moves it to the
// requested phase and status.
func (s *ScanService) Apply(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	source := req.Source
	if source == "" {
		source = models.ScanSourceManual
	}
	event := models.ScanEvent{Code: strings.TrimSpace(req.Code), ObservedAt: s.now().UTC(), Source: source}
	if event.Code == "" {
		s.metrics.Scan(source, "rejected")
		return nil, apperrors.Validation("Barcode is required.")
	}

	mode := req.Mode
	if mode == "" {
		mode = models.ScanView
	}
	if mode != models.ScanView && mode != models.ScanUpdate {
		s.metrics.Scan(source, "rejected")
		return nil, apperrors.Validation(fmt.Sprintf("Unknown scan mode %q.", req.Mode))
	}

	// The phase rule needs no network call, so check it before the lookup.
	var (
		targetPhase models.Phase
		err         error
	)
	if mode == models.ScanUpdate {
		targetPhase, err = phaseForScan(req.Role, req.Phase)
		if err != nil {
			s.metrics.Scan(source, "rejected")
			return nil, err
		}
		if req.Status != "" && !models.ValidStatus(req.Status) {
			s.metrics.Scan(source, "rejected")
			return nil, apperrors.Validation(fmt.Sprintf("Unknown status %q.", req.Status))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	batch, err := s.store.GetBatch(callCtx, event.Code)
	s.metrics.StoreCall("lookup", time.Since(start))
	if err != nil {
		s.metrics.Scan(source, "lookup_failed")
		return nil, err
	}

	result := &models.ScanResult{Event: event, Batch: batch}
	if mode == models.ScanView {
		s.metrics.Scan(source, "viewed")
		return result, nil
	}

	update := changedFields(batch, targetPhase, req.Status)
	if update.Empty() {
		s.metrics.Scan(source, "unchanged")
		return result, nil
	}

	start = time.Now()
	updated, err := s.store.UpdateBatch(callCtx, event.Code, update)
	s.metrics.StoreCall("update", time.Since(start))
	if err != nil {
		s.metrics.Scan(source, "update_failed")
		return nil, err
	}

	s.metrics.Scan(source, "updated")
	s.logger.Info("batch updated from scan",
		zap.String("barcode", event.Code),
		zap.String("role", req.Role),
		zap.Int("phase", int(targetPhase)),
		zap.String("source", source),
	)
	result.Batch = updated
	result.Updated = true
	result.Changes = &update
	return result, nil
}

// phaseForScan resolves the phase an operator is scanning into. Floor roles
// are bound to their own phase; Admin may pick any phase or none.
func phaseForScan(role string, requested models.Phase) (models.Phase, error) {
	if !models.KnownRole(role) {
		return 0, apperrors.Forbidden(fmt.Sprintf("Unknown role %q.", role))
	}

	if bound, ok := models.PhaseForRole(role); ok {
		if requested != 0 && requested != bound {
			return 0, apperrors.Forbidden(fmt.Sprintf("%s operators can only scan into the %s phase.", role, bound))
		}
		return bound, nil
	}

	if requested != 0 && !requested.Valid() {
		return 0, apperrors.Validation(fmt.Sprintf("Unknown phase %d.", requested))
	}
	return requested, nil
}

func changedFields(batch *models.Batch, phase models.Phase, status string) models.BatchUpdate {
	var update models.BatchUpdate
	if phase != 0 && phase != batch.CurrentPhase {
		p := phase
		update.CurrentPhase = &p
	}
	if status != "" && status != batch.Status {
		st := status
		update.Status = &st
	}
	return update
}
