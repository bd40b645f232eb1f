package controllers

import (
	"context"
	"time"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

// DefaultContextTimeout bounds request work that is not a store call with
// its own timeout.
const DefaultContextTimeout = 30 * time.Second

// ImportServiceAPI is the import session lifecycle the handlers drive.
type ImportServiceAPI interface {
	Import(ctx context.Context, data []byte, fileName, mimeHint string) (*models.ImportBatch, error)
	Recheck(ctx context.Context, id string) (*models.ImportBatch, error)
	Get(ctx context.Context, id string) (*models.ImportBatch, error)
	Discard(ctx context.Context, id string) error
	Enqueue(ctx context.Context, data []byte, fileName, mimeHint string) (string, error)
	JobStatus(ctx context.Context, id string) (*models.ImportJob, error)
}

// SubmissionAPI commits and prints import sessions.
type SubmissionAPI interface {
	Submit(ctx context.Context, id string) (*models.SubmissionResult, error)
	Print(ctx context.Context, id string, opts models.PrintOptions) (*models.PrintResult, error)
	Printers(ctx context.Context) ([]models.Printer, error)
}

// ScanAPI applies single scans.
type ScanAPI interface {
	Apply(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error)
}
