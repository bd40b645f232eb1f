package services

import (
	"context"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

// RowChecker is the store's check-and-validate endpoint. It resolves catalog
// references, assigns missing barcodes and reports existing ones.
type RowChecker interface {
	CheckRows(ctx context.Context, rows []models.CandidateRow) (*models.CheckResponse, error)
}

// BatchSubmitter creates batches in the store in one call.
type BatchSubmitter interface {
	SubmitBatches(ctx context.Context, records []models.SubmitRecord) (*models.SubmitResponse, error)
}

// BatchStore is the single-batch lookup and update used by scanning.
type BatchStore interface {
	GetBatch(ctx context.Context, barcode string) (*models.Batch, error)
	UpdateBatch(ctx context.Context, barcode string, update models.BatchUpdate) (*models.Batch, error)
}

// PrintDispatcher hands a label job to the printing sink.
type PrintDispatcher interface {
	Dispatch(ctx context.Context, req models.PrintRequest) error
}

// PrinterDirectory lists the printers the sink can reach.
type PrinterDirectory interface {
	ListPrinters(ctx context.Context) ([]models.Printer, error)
}

// JobStore persists asynchronous import jobs and queues their ids.
type JobStore interface {
	Create(ctx context.Context, job models.ImportJob) error
	Get(ctx context.Context, id string) (*models.ImportJob, error)
	Save(ctx context.Context, job models.ImportJob) error
	// Next blocks for the next queued job id. An empty id with a nil error
	// means the poll timed out.
	Next(ctx context.Context) (string, error)
}
