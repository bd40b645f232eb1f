package services

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/repository"
	"go.uber.org/zap"
)

var ErrImportNotFound = apperrors.NotFound("Import not found")

// SessionLocks serialises state transitions per import id. Different ids
// never contend.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock blocks until id is free and returns the matching unlock.
func (l *SessionLocks) Lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// loadSession reads a batch and settles a submission that outlived
// staleAfter, which only happens when the replica running it died. The
// caller holds the session lock.
func loadSession(ctx context.Context, sessions repository.SessionRepository, id string, now time.Time, staleAfter time.Duration, log *zap.Logger) (*models.ImportBatch, error) {
	batch, err := sessions.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load import", err)
	}

	if batch.State != models.StateSubmitting || batch.SubmittingSince == nil || staleAfter <= 0 {
		return batch, nil
	}
	if now.Sub(*batch.SubmittingSince) < staleAfter {
		return batch, nil
	}

	next := batch.Clone()
	next.State = models.StatePartiallyFailed
	next.SubmittingSince = nil
	next.LastError = "Submission did not complete; retry to resend uncommitted rows"
	next.UpdatedAt = now
	if err := sessions.Save(ctx, next); err != nil {
		return nil, apperrors.Internal("Failed to save import", err)
	}
	log.Warn("recovered stale submission", zap.String("import_id", id), zap.Time("submitting_since", *batch.SubmittingSince))
	return next, nil
}
