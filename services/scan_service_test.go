package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/services"
	"go.uber.org/zap"
)

// --- Mock Batch Store ---

type mockBatchStore struct {
	batches map[string]models.Batch
	gets    int
	updates []models.BatchUpdate
}

func newMockBatchStore(batches ...models.Batch) *mockBatchStore {
	m := &mockBatchStore{batches: make(map[string]models.Batch)}
	for _, b := range batches {
		m.batches[b.Barcode] = b
	}
	return m
}

func (m *mockBatchStore) GetBatch(_ context.Context, barcode string) (*models.Batch, error) {
	m.gets++
	b, ok := m.batches[barcode]
	if !ok {
		return nil, apperrors.NotFound("Batch not found")
	}
	return &b, nil
}

func (m *mockBatchStore) UpdateBatch(_ context.Context, barcode string, update models.BatchUpdate) (*models.Batch, error) {
	m.updates = append(m.updates, update)
	b := m.batches[barcode]
	if update.CurrentPhase != nil {
		b.CurrentPhase = *update.CurrentPhase
	}
	if update.Status != nil {
		b.Status = *update.Status
	}
	m.batches[barcode] = b
	return &b, nil
}

func cuttingBatch() models.Batch {
	return models.Batch{BatchID: 7, Barcode: "100200", Brand: "Nike", Quantity: 10, CurrentPhase: models.PhaseCutting, Status: models.StatusPending}
}

func newScanService(store services.BatchStore) *services.ScanService {
	return services.NewScanService(store, 0, zap.NewNop(), nil)
}

func TestApply_View(t *testing.T) {
	store := newMockBatchStore(cuttingBatch())
	svc := newScanService(store)

	result, err := svc.Apply(context.Background(), models.ScanRequest{Code: " 100200 ", Source: models.ScanSourceHardware})

	require.NoError(t, err)
	assert.Equal(t, "100200", result.Event.Code)
	assert.Equal(t, models.ScanSourceHardware, result.Event.Source)
	assert.Equal(t, 7, result.Batch.BatchID)
	assert.False(t, result.Updated)
	assert.Empty(t, store.updates)
}

func TestApply_EmptyCode(t *testing.T) {
	store := newMockBatchStore()
	svc := newScanService(store)

	_, err := svc.Apply(context.Background(), models.ScanRequest{Code: "  "})

	assert.True(t, apperrors.IsKind(err, apperrors.KindFieldValidation))
	assert.Equal(t, 0, store.gets)
}

func TestApply_UnknownBarcode(t *testing.T) {
	svc := newScanService(newMockBatchStore())

	_, err := svc.Apply(context.Background(), models.ScanRequest{Code: "404"})

	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestApply_FloorRoleMovesToOwnPhase(t *testing.T) {
	store := newMockBatchStore(cuttingBatch())
	svc := newScanService(store)

	result, err := svc.Apply(context.Background(), models.ScanRequest{
		Code:   "100200",
		Mode:   models.ScanUpdate,
		Role:   models.RoleSewing,
		Status: models.StatusInProgress,
	})

	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, models.PhaseSewing, result.Batch.CurrentPhase)
	assert.Equal(t, models.StatusInProgress, result.Batch.Status)
	require.Len(t, store.updates, 1)
	require.NotNil(t, result.Changes.CurrentPhase)
	assert.Equal(t, models.PhaseSewing, *result.Changes.CurrentPhase)
}

func TestApply_NoChangeSkipsUpdate(t *testing.T) {
	store := newMockBatchStore(cuttingBatch())
	svc := newScanService(store)

	result, err := svc.Apply(context.Background(), models.ScanRequest{
		Code:   "100200",
		Mode:   models.ScanUpdate,
		Role:   models.RoleCutting,
		Status: models.StatusPending,
	})

	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Nil(t, result.Changes)
	assert.Empty(t, store.updates)
}

func TestApply_OnlyChangedFieldsAreSent(t *testing.T) {
	store := newMockBatchStore(cuttingBatch())
	svc := newScanService(store)

	_, err := svc.Apply(context.Background(), models.ScanRequest{
		Code:   "100200",
		Mode:   models.ScanUpdate,
		Role:   models.RoleCutting,
		Status: models.StatusCompleted,
	})

	require.NoError(t, err)
	require.Len(t, store.updates, 1)
	assert.Nil(t, store.updates[0].CurrentPhase)
	require.NotNil(t, store.updates[0].Status)
	assert.Equal(t, models.StatusCompleted, *store.updates[0].Status)
}

func TestApply_FloorRoleCannotPickOtherPhase(t *testing.T) {
	store := newMockBatchStore(cuttingBatch())
	svc := newScanService(store)

	_, err := svc.Apply(context.Background(), models.ScanRequest{
		Code:  "100200",
		Mode:  models.ScanUpdate,
		Role:  models.RoleSewing,
		Phase: models.PhasePackaging,
	})

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindForbidden, appErr.Kind)
	assert.Equal(t, "Sewing operators can only scan into the Sewing phase.", appErr.Message)
	assert.Equal(t, 0, store.gets)
}

func TestApply_AdminPicksAnyPhase(t *testing.T) {
	store := newMockBatchStore(cuttingBatch())
	svc := newScanService(store)

	result, err := svc.Apply(context.Background(), models.ScanRequest{
		Code:   "100200",
		Mode:   models.ScanUpdate,
		Role:   models.RoleAdmin,
		Phase:  models.PhasePackaging,
		Status: models.StatusCompleted,
	})

	require.NoError(t, err)
	assert.Equal(t, models.PhasePackaging, result.Batch.CurrentPhase)
	assert.Equal(t, models.StatusCompleted, result.Batch.Status)
}

func TestApply_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  models.ScanRequest
		kind apperrors.Kind
	}{
		{"unknown role", models.ScanRequest{Code: "100200", Mode: models.ScanUpdate, Role: "Intern"}, apperrors.KindForbidden},
		{"missing role", models.ScanRequest{Code: "100200", Mode: models.ScanUpdate}, apperrors.KindForbidden},
		{"admin bad phase", models.ScanRequest{Code: "100200", Mode: models.ScanUpdate, Role: models.RoleAdmin, Phase: 4}, apperrors.KindFieldValidation},
		{"bad status", models.ScanRequest{Code: "100200", Mode: models.ScanUpdate, Role: models.RoleAdmin, Status: "Lost"}, apperrors.KindFieldValidation},
		{"bad mode", models.ScanRequest{Code: "100200", Mode: "delete"}, apperrors.KindFieldValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockBatchStore(cuttingBatch())
			svc := newScanService(store)

			_, err := svc.Apply(context.Background(), tt.req)

			assert.True(t, apperrors.IsKind(err, tt.kind), "got %v", err)
			assert.Equal(t, 0, store.gets)
		})
	}
}
