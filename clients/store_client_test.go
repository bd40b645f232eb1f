package clients_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/clients"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"go.uber.org/zap"
)

func TestCheckRows_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/barcodes/bulk/check", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.CheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Rows, 1)
		assert.Equal(t, "AM90", req.Rows[0].Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"valid_rows": [{"row_number": 1, "barcode": "100200", "brand_id": 3}],
			"error_rows": [{"rowNumber": 2, "error": "Unknown color"}],
			"duplicate_barcodes": [{"barcode": "555", "row_number": 3}]
		}`)
	}))
	defer srv.Close()

	c := clients.NewStoreClient(srv.URL+"/", "secret", time.Second, zap.NewNop())
	resp, err := c.CheckRows(context.Background(), []models.CandidateRow{{RowNumber: 1, Model: "AM90"}})

	require.NoError(t, err)
	require.Len(t, resp.ValidRows, 1)
	assert.Equal(t, "100200", resp.ValidRows[0].Barcode)
	assert.Equal(t, 3, resp.ValidRows[0].BrandID)
	assert.Equal(t, 2, resp.ErrorRows[0].RowNumber)
	assert.Equal(t, "Unknown color", resp.ErrorRows[0].Error)
	assert.Equal(t, "555", resp.DuplicateBarcodes[0].Barcode)
}

func TestSubmitBatches_SendsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/barcodes/bulk/submit", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var records []models.SubmitRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&records))
		require.Len(t, records, 2)
		assert.Equal(t, models.PhaseCutting, records[0].CurrentPhase)

		_, _ = io.WriteString(w, `{"created_batches":[{"barcode":"A1"}],"failed_rows":[{"barcode":"B1","error":"bad serial"}],"message":"1 created"}`)
	}))
	defer srv.Close()

	c := clients.NewStoreClient(srv.URL, "", time.Second, nil)
	resp, err := c.SubmitBatches(context.Background(), []models.SubmitRecord{
		{Barcode: "A1", CurrentPhase: models.PhaseCutting, Status: models.StatusPending},
		{Barcode: "B1", CurrentPhase: models.PhaseCutting, Status: models.StatusPending},
	})

	require.NoError(t, err)
	assert.Len(t, resp.CreatedBatches, 1)
	assert.Equal(t, "bad serial", resp.FailedRows[0].Error)
	assert.Equal(t, "1 created", resp.Message)
}

func TestGetBatch_EscapesBarcode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batches/barcode/A%2FB", r.URL.EscapedPath())
		_, _ = io.WriteString(w, `{"batch_id": 9, "barcode": "A/B", "current_phase": 2, "status": "In Progress"}`)
	}))
	defer srv.Close()

	c := clients.NewStoreClient(srv.URL, "", time.Second, zap.NewNop())
	batch, err := c.GetBatch(context.Background(), "A/B")

	require.NoError(t, err)
	assert.Equal(t, 9, batch.BatchID)
	assert.Equal(t, models.PhaseSewing, batch.CurrentPhase)
}

func TestUpdateBatch_OnlyChangedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"status":"Completed"}`, string(body))
		_, _ = io.WriteString(w, `{"barcode": "100200", "status": "Completed", "current_phase": 3}`)
	}))
	defer srv.Close()

	status := models.StatusCompleted
	c := clients.NewStoreClient(srv.URL, "", time.Second, zap.NewNop())
	batch, err := c.UpdateBatch(context.Background(), "100200", models.BatchUpdate{Status: &status})

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, batch.Status)
}

func TestStoreClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    apperrors.Kind
		message string
	}{
		{"not found", http.StatusNotFound, `{"error":"Batch not found"}`, apperrors.KindNotFound, "Batch not found"},
		{"conflict", http.StatusConflict, `{"message":"Barcode exists"}`, apperrors.KindConflict, "Barcode exists"},
		{"bad request", http.StatusBadRequest, `{"detail":"serial is required"}`, apperrors.KindRemoteValidation, "serial is required"},
		{"unprocessable", http.StatusUnprocessableEntity, `plain text reason`, apperrors.KindRemoteValidation, "plain text reason"},
		{"gateway timeout", http.StatusGatewayTimeout, ``, apperrors.KindNetworkTimeout, "The batch store did not answer in time"},
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, apperrors.KindNetworkFailure, "The batch store failed (status 500)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := clients.NewStoreClient(srv.URL, "", time.Second, zap.NewNop())
			_, err := c.GetBatch(context.Background(), "100200")

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, appErr.Kind)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestStoreClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := clients.NewStoreClient(srv.URL, "", 50*time.Millisecond, zap.NewNop())
	_, err := c.GetBatch(context.Background(), "100200")

	assert.True(t, apperrors.IsKind(err, apperrors.KindNetworkTimeout), "got %v", err)
}

func TestStoreClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := clients.NewStoreClient(url, "", time.Second, zap.NewNop())
	_, err := c.CheckRows(context.Background(), nil)

	assert.True(t, apperrors.IsKind(err, apperrors.KindNetworkFailure), "got %v", err)
}

func TestStoreClient_UnreadableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>`)
	}))
	defer srv.Close()

	c := clients.NewStoreClient(srv.URL, "", time.Second, zap.NewNop())
	_, err := c.GetBatch(context.Background(), "100200")

	assert.True(t, apperrors.IsKind(err, apperrors.KindNetworkFailure))
}
