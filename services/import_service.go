package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/repository"
	"go.uber.org/zap"
)

var (
	ErrAsyncDisabled   = apperrors.Unavailable("Asynchronous imports are not configured")
	ErrJobNotFound     = apperrors.NotFound("Job not found")
	ErrRecheckRejected = apperrors.Conflict("Only an unsubmitted import can be checked again")
)

// PendingImportError reports an import whose file was accepted but whose
// duplicate check failed. The upload is archived under ImportID, so the
// operator can retry it without uploading again.
type PendingImportError struct {
	ImportID string
	Err      error
}

func (e *PendingImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.ImportID, e.Err)
}

func (e *PendingImportError) Unwrap() error {
	return e.Err
}

// ImportService owns the lifecycle of import sessions: create, re-check,
// read and discard. Submission lives in SubmissionCoordinator.
type ImportService struct {
	pipeline   *ImportPipeline
	sessions   repository.SessionRepository
	archive    repository.UploadArchive
	jobs       JobStore
	locks      *SessionLocks
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewImportService(pipeline *ImportPipeline, sessions repository.SessionRepository, archive repository.UploadArchive, jobs JobStore, locks *SessionLocks, staleAfter time.Duration, logger *zap.Logger) *ImportService {
	return &ImportService{
		pipeline:   pipeline,
		sessions:   sessions,
		archive:    archive,
		jobs:       jobs,
		locks:      locks,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Import archives the upload and runs the pipeline synchronously.
func (s *ImportService) Import(ctx context.Context, data []byte, fileName, mimeHint string) (*models.ImportBatch, error) {
	id := uuid.NewString()
	upload := repository.Upload{FileName: fileName, MimeHint: mimeHint, Data: data}
	if err := s.archive.Put(ctx, id, upload); err != nil {
		return nil, apperrors.Internal("Failed to store upload", err)
	}
	return s.run(ctx, id, upload)
}

// Recheck re-runs the pipeline on the archived upload of an import that has
// not been submitted, replacing its rows.
func (s *ImportService) Recheck(ctx context.Context, id string) (*models.ImportBatch, error) {
	upload, err := s.archive.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to read upload", err)
	}
	return s.run(ctx, id, *upload)
}

func (s *ImportService) run(ctx context.Context, id string, upload repository.Upload) (*models.ImportBatch, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := loadSession(ctx, s.sessions, id, s.now(), s.staleAfter, s.logger)
	switch {
	case err == nil:
		if existing.State != models.StateUnsubmitted {
			return nil, ErrRecheckRejected
		}
	case !errors.Is(err, ErrImportNotFound):
		return nil, err
	}

	batch, err := s.pipeline.ImportFile(ctx, upload.Data, upload.FileName, upload.MimeHint)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindFileStructure) {
			// nothing to retry for a file that cannot be read
			_ = s.archive.Delete(ctx, id)
			return nil, err
		}
		s.logger.Warn("import check failed; upload kept for retry", zap.String("import_id", id), zap.Error(err))
		return nil, &PendingImportError{ImportID: id, Err: err}
	}

	batch.ID = id
	batch.FileName = upload.FileName
	if existing != nil {
		batch.CreatedAt = existing.CreatedAt
	}
	if err := s.sessions.Save(ctx, batch); err != nil {
		return nil, apperrors.Internal("Failed to save import", err)
	}
	return batch, nil
}

// Get returns the current state of an import.
func (s *ImportService) Get(ctx context.Context, id string) (*models.ImportBatch, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	return loadSession(ctx, s.sessions, id, s.now(), s.staleAfter, s.logger)
}

// Discard deletes the session and its archived upload. A submission still
// in flight finds the session gone and drops its result.
func (s *ImportService) Discard(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	sessionErr := s.sessions.Delete(ctx, id)
	if sessionErr != nil && !errors.Is(sessionErr, repository.ErrNotFound) {
		return apperrors.Internal("Failed to delete import", sessionErr)
	}
	archiveErr := s.archive.Delete(ctx, id)
	if archiveErr != nil && !errors.Is(archiveErr, repository.ErrNotFound) {
		return apperrors.Internal("Failed to delete upload", archiveErr)
	}
	if sessionErr != nil && archiveErr != nil {
		return ErrImportNotFound
	}
	return nil
}

// Enqueue archives the upload and queues it for the background worker. The
// returned job id is also the id of the import it will produce.
func (s *ImportService) Enqueue(ctx context.Context, data []byte, fileName, mimeHint string) (string, error) {
	if s.jobs == nil {
		return "", ErrAsyncDisabled
	}

	id := uuid.NewString()
	if err := s.archive.Put(ctx, id, repository.Upload{FileName: fileName, MimeHint: mimeHint, Data: data}); err != nil {
		return "", apperrors.Internal("Failed to store upload", err)
	}

	now := s.now().UTC()
	job := models.ImportJob{
		ID:        id,
		Status:    models.JobPending,
		FileName:  fileName,
		MimeHint:  mimeHint,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		_ = s.archive.Delete(ctx, id)
		return "", apperrors.Internal("Failed to queue import job", err)
	}

	s.logger.Info("import job queued", zap.String("job_id", id))
	return id, nil
}

func (s *ImportService) JobStatus(ctx context.Context, id string) (*models.ImportJob, error) {
	if s.jobs == nil {
		return nil, ErrAsyncDisabled
	}
	job, err := s.jobs.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to retrieve job status", err)
	}
	return job, nil
}

// ProcessJob runs one queued import and records the outcome on the job.
func (s *ImportService) ProcessJob(ctx context.Context, id string) error {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("read job %s: %w", id, err)
	}

	job.Status = models.JobProcessing
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.Save(ctx, *job); err != nil {
		return fmt.Errorf("mark job %s processing: %w", id, err)
	}

	batch, runErr := s.Recheck(ctx, id)

	job.UpdatedAt = s.now().UTC()
	if runErr != nil {
		job.Status = models.JobFailed
		job.Error = runErr.Error()
	} else {
		job.Status = models.JobDone
		job.Error = ""
		counts := batch.Counts
		job.Counts = &counts
	}
	if err := s.jobs.Save(ctx, *job); err != nil {
		return fmt.Errorf("record job %s result: %w", id, err)
	}
	return runErr
}
