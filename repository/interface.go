package repository

import (
	"context"
	"errors"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStateConflict = errors.New("session state changed")
)

// SessionRepository stores import sessions. Save replaces the whole batch.
// SaveIfState replaces it only while the stored state is still expected and
// returns ErrStateConflict otherwise; it never creates a session.
type SessionRepository interface {
	Save(ctx context.Context, batch *models.ImportBatch) error
	SaveIfState(ctx context.Context, batch *models.ImportBatch, expected models.SubmissionState) error
	Get(ctx context.Context, id string) (*models.ImportBatch, error)
	Delete(ctx context.Context, id string) error
}

// Upload is a raw file kept so an import can be re-run without the
// operator uploading it again.
type Upload struct {
	FileName string
	MimeHint string
	Data     []byte
}

// UploadArchive keeps raw uploads keyed by import id.
type UploadArchive interface {
	Put(ctx context.Context, id string, upload Upload) error
	Get(ctx context.Context, id string) (*Upload, error)
	Delete(ctx context.Context, id string) error
}
