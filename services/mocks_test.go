package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/repository"
)

// --- Mock Row Checker ---

type mockChecker struct {
	mu      sync.Mutex
	calls   [][]models.CandidateRow
	checkFn func(rows []models.CandidateRow) (*models.CheckResponse, error)
}

func (m *mockChecker) CheckRows(_ context.Context, rows []models.CandidateRow) (*models.CheckResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, rows)
	m.mu.Unlock()
	if m.checkFn != nil {
		return m.checkFn(rows)
	}
	return confirmAll(rows)
}

func (m *mockChecker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// confirmAll accepts every row and assigns BC<row> to rows without a barcode.
func confirmAll(rows []models.CandidateRow) (*models.CheckResponse, error) {
	resp := &models.CheckResponse{}
	for _, r := range rows {
		barcode := r.Barcode
		if barcode == "" {
			barcode = fmt.Sprintf("BC%d", r.RowNumber)
		}
		resp.ValidRows = append(resp.ValidRows, models.ValidatedRecord{
			RowNumber: r.RowNumber,
			Barcode:   barcode,
			BrandID:   1,
			ModelID:   2,
			SizeID:    3,
			ColorID:   4,
		})
	}
	return resp, nil
}

// --- Mock Submitter ---

type mockSubmitter struct {
	mu       sync.Mutex
	calls    [][]models.SubmitRecord
	submitFn func(ctx context.Context, records []models.SubmitRecord) (*models.SubmitResponse, error)
}

func (m *mockSubmitter) SubmitBatches(ctx context.Context, records []models.SubmitRecord) (*models.SubmitResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, records)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, records)
	}
	return createAll(records), nil
}

func (m *mockSubmitter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockSubmitter) sentBarcodes(call int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls[call]))
	for _, r := range m.calls[call] {
		out = append(out, r.Barcode)
	}
	return out
}

func createAll(records []models.SubmitRecord) *models.SubmitResponse {
	resp := &models.SubmitResponse{Message: fmt.Sprintf("Created %d batches", len(records))}
	for _, r := range records {
		resp.CreatedBatches = append(resp.CreatedBatches, models.Batch{Barcode: r.Barcode, Quantity: r.Quantity})
	}
	return resp
}

// --- Mock Printer ---

type mockPrinter struct {
	mu         sync.Mutex
	dispatched []models.PrintRequest
	err        error
}

func (m *mockPrinter) Dispatch(_ context.Context, req models.PrintRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.dispatched = append(m.dispatched, req)
	return nil
}

type mockDirectory struct {
	printers []models.Printer
	err      error
	calls    int
}

func (m *mockDirectory) ListPrinters(context.Context) ([]models.Printer, error) {
	m.calls++
	return m.printers, m.err
}

// --- Mock SNS Publisher ---

type mockSNSPublisher struct {
	mu        sync.Mutex
	published []string
}

func (m *mockSNSPublisher) Publish(_ context.Context, topicArn string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, topicArn+" "+string(message))
	return nil
}

// --- Mock Job Store ---

type mockJobStore struct {
	mu    sync.Mutex
	jobs  map[string]models.ImportJob
	queue chan string
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[string]models.ImportJob), queue: make(chan string, 16)}
}

func (m *mockJobStore) Create(_ context.Context, job models.ImportJob) error {
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	m.queue <- job.ID
	return nil
}

func (m *mockJobStore) Get(_ context.Context, id string) (*models.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &job, nil
}

func (m *mockJobStore) Save(_ context.Context, job models.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobStore) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case id := <-m.queue:
		return id, nil
	}
}

// --- Fixtures ---

const sheetHeader = "barcode,brand,model,size,color,quantity,layers,serial\n"

func csvSheet(lines ...string) []byte {
	return []byte(sheetHeader + strings.Join(lines, "\n") + "\n")
}

func successRow(n int, barcode string) models.ImportRow {
	return models.ImportRow{
		RowNumber: n,
		Original:  models.CandidateRow{RowNumber: n, Barcode: barcode, Brand: "Nike", Model: "AM90", Size: "42", Color: "Red", Quantity: "10", Layers: "2", Serial: "1"},
		Record: &models.ValidatedRecord{
			RowNumber: n, Barcode: barcode, Brand: "Nike", Model: "AM90", Size: "42", Color: "Red",
			Quantity: 10, Layers: 2, Serial: 1, BrandID: 1, ModelID: 2, SizeID: 3, ColorID: 4,
		},
		Outcome: models.RowOutcome{Status: models.RowSuccess},
	}
}

func duplicateRow(n int, barcode string) models.ImportRow {
	row := successRow(n, barcode)
	row.Outcome = models.RowOutcome{Status: models.RowDuplicate, Reasons: []string{fmt.Sprintf("Barcode '%s' already exists", barcode)}}
	return row
}

func errorRow(n int) models.ImportRow {
	return models.ImportRow{
		RowNumber: n,
		Original:  models.CandidateRow{RowNumber: n, Brand: "Nike", Model: "AM90", Quantity: "0"},
		Outcome: models.RowOutcome{
			Status:  models.RowError,
			Reasons: []string{"Quantity must be between 1-999."},
		},
	}
}

func newBatch(id string, rows ...models.ImportRow) *models.ImportBatch {
	b := &models.ImportBatch{
		ID:        id,
		FileName:  "batches.csv",
		Rows:      rows,
		State:     models.StateUnsubmitted,
		Committed: map[string]bool{},
	}
	b.Recount()
	return b
}
