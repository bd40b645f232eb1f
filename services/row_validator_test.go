package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/services"
)

func validCandidate() models.CandidateRow {
	return models.CandidateRow{
		RowNumber: 4,
		Barcode:   " 100200 ",
		Brand:     " Nike ",
		Model:     "AM-90",
		Size:      "42",
		Color:     "Red",
		Quantity:  "10",
		Layers:    "2",
		Serial:    "7",
	}
}

func TestValidate_Success(t *testing.T) {
	v := services.NewRowValidator()

	rec, errs := v.Validate(validCandidate())

	require.Empty(t, errs)
	assert.Equal(t, 4, rec.RowNumber)
	assert.Equal(t, "100200", rec.Barcode)
	assert.Equal(t, "Nike", rec.Brand)
	assert.Equal(t, "AM90", rec.Model)
	assert.Equal(t, 10, rec.Quantity)
	assert.Equal(t, 2, rec.Layers)
	assert.Equal(t, 7, rec.Serial)
}

func TestValidate_Boundaries(t *testing.T) {
	v := services.NewRowValidator()

	tests := []struct {
		name     string
		quantity string
		layers   string
		serial   string
		codes    []models.ErrorCode
	}{
		{"lower bounds", "1", "1", "1", nil},
		{"upper bounds", "999", "99", "999", nil},
		{"spreadsheet float", "5.0", "2.00", "1", nil},
		{"zero quantity", "0", "1", "1", []models.ErrorCode{models.CodeInvalidQuantity}},
		{"quantity over", "1000", "1", "1", []models.ErrorCode{models.CodeInvalidQuantity}},
		{"layers over", "1", "100", "1", []models.ErrorCode{models.CodeInvalidLayers}},
		{"serial over", "1", "1", "1000", []models.ErrorCode{models.CodeInvalidSerial}},
		{"negative", "-3", "1", "1", []models.ErrorCode{models.CodeInvalidQuantity}},
		{"huge", "99999999999999999999999", "1", "1", []models.ErrorCode{models.CodeInvalidQuantity}},
		{"not a number", "abc", "1", "1", []models.ErrorCode{models.CodeInvalidQuantity}},
		{"fraction", "5.5", "1", "1", []models.ErrorCode{models.CodeInvalidQuantity}},
		{"trailing text", "12abc", "3 layers", "1", []models.ErrorCode{models.CodeInvalidQuantity, models.CodeInvalidLayers}},
		{"blank", "", "1", "1", []models.ErrorCode{models.CodeInvalidQuantity}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validCandidate()
			row.Quantity, row.Layers, row.Serial = tt.quantity, tt.layers, tt.serial

			_, errs := v.Validate(row)

			var codes []models.ErrorCode
			for _, e := range errs {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestValidate_ParseAndRangeMessages(t *testing.T) {
	v := services.NewRowValidator()

	row := validCandidate()
	row.Quantity = "abc"
	_, errs := v.Validate(row)
	require.Len(t, errs, 1)
	assert.Equal(t, "Quantity must be a whole number.", errs[0].Message)
	assert.Equal(t, "quantity", errs[0].Field)

	row.Quantity = "0"
	_, errs = v.Validate(row)
	require.Len(t, errs, 1)
	assert.Equal(t, "Quantity must be between 1-999.", errs[0].Message)
}

func TestValidate_ReportsEveryErrorInOrder(t *testing.T) {
	v := services.NewRowValidator()

	row := validCandidate()
	row.Model = "--"
	row.Quantity = "0"
	row.Layers = "x"
	row.Serial = "1000"

	rec, errs := v.Validate(row)

	assert.Equal(t, models.ValidatedRecord{}, rec)
	require.Len(t, errs, 4)
	assert.Equal(t, models.CodeInvalidModel, errs[0].Code)
	assert.Equal(t, models.CodeInvalidQuantity, errs[1].Code)
	assert.Equal(t, models.CodeInvalidLayers, errs[2].Code)
	assert.Equal(t, models.CodeInvalidSerial, errs[3].Code)
	assert.Equal(t, "Model name must be at least 1 alphanumeric character.", errs[0].Message)
}

func TestValidate_NumericModelFromSpreadsheet(t *testing.T) {
	v := services.NewRowValidator()

	row := validCandidate()
	row.Model = "120.0"
	rec, errs := v.Validate(row)

	require.Empty(t, errs)
	assert.Equal(t, "120", rec.Model)
}
