package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"go.uber.org/zap"
)

// StoreClient calls the batch store's HTTP API.
type StoreClient struct {
	http jsonClient
}

func NewStoreClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *StoreClient {
	return &StoreClient{http: newJSONClient("batch store", baseURL, token, timeout, logger)}
}

// CheckRows asks the store to resolve catalog references, assign missing
// barcodes and report barcodes it already holds. Nothing is persisted.
func (s *StoreClient) CheckRows(ctx context.Context, rows []models.CandidateRow) (*models.CheckResponse, error) {
	var out models.CheckResponse
	if err := s.http.do(ctx, http.MethodPost, "/barcodes/bulk/check", models.CheckRequest{Rows: rows}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitBatches creates every record in one call.
func (s *StoreClient) SubmitBatches(ctx context.Context, records []models.SubmitRecord) (*models.SubmitResponse, error) {
	var out models.SubmitResponse
	if err := s.http.do(ctx, http.MethodPost, "/barcodes/bulk/submit", records, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StoreClient) GetBatch(ctx context.Context, barcode string) (*models.Batch, error) {
	var out models.Batch
	if err := s.http.do(ctx, http.MethodGet, "/batches/barcode/"+url.PathEscape(barcode), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBatch sends only the fields set on update.
func (s *StoreClient) UpdateBatch(ctx context.Context, barcode string, update models.BatchUpdate) (*models.Batch, error) {
	var out models.Batch
	if err := s.http.do(ctx, http.MethodPut, "/batches/barcode/"+url.PathEscape(barcode), update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
