package repository

import (
	"context"
	"sync"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

// MemorySessionRepository keeps sessions in process. Only suitable for a
// single replica.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.ImportBatch
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.ImportBatch)}
}

func (r *MemorySessionRepository) Save(_ context.Context, batch *models.ImportBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[batch.ID] = batch.Clone()
	return nil
}

func (r *MemorySessionRepository) SaveIfState(_ context.Context, batch *models.ImportBatch, expected models.SubmissionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[batch.ID]
	if !ok {
		return ErrNotFound
	}
	if current.State != expected {
		return ErrStateConflict
	}
	r.sessions[batch.ID] = batch.Clone()
	return nil
}

func (r *MemorySessionRepository) Get(_ context.Context, id string) (*models.ImportBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return batch.Clone(), nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}
