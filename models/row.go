package models

import "strings"

// ErrorCode classifies a row-level failure.
type ErrorCode string

const (
	CodeInvalidModel           ErrorCode = "InvalidModel"
	CodeInvalidQuantity        ErrorCode = "InvalidQuantity"
	CodeInvalidLayers          ErrorCode = "InvalidLayers"
	CodeInvalidSerial          ErrorCode = "InvalidSerial"
	CodeDuplicateBarcodeInFile ErrorCode = "DuplicateBarcodeInFile"
	CodeRemoteValidation       ErrorCode = "RemoteValidation"
)

// CandidateRow is one data line of an uploaded sheet, exactly as typed.
type CandidateRow struct {
	RowNumber int    `json:"row_number" bson:"row_number"`
	Barcode   string `json:"barcode" bson:"barcode"`
	Brand     string `json:"brand" bson:"brand"`
	Model     string `json:"model" bson:"model"`
	Size      string `json:"size" bson:"size"`
	Color     string `json:"color" bson:"color"`
	Quantity  string `json:"quantity" bson:"quantity"`
	Layers    string `json:"layers" bson:"layers"`
	Serial    string `json:"serial" bson:"serial"`
}

// IsBlank reports whether every cell of the row is empty or whitespace.
func (r CandidateRow) IsBlank() bool {
	for _, v := range []string{r.Barcode, r.Brand, r.Model, r.Size, r.Color, r.Quantity, r.Layers, r.Serial} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// FieldError is a single rule violation attributed to one field.
type FieldError struct {
	Field   string    `json:"field" bson:"field"`
	Code    ErrorCode `json:"code" bson:"code"`
	Message string    `json:"message" bson:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// ValidatedRecord is a row that passed every local rule. Catalog ids stay
// zero until the remote store resolves them.
type ValidatedRecord struct {
	RowNumber int    `json:"row_number" bson:"row_number"`
	Barcode   string `json:"barcode" bson:"barcode"`
	Brand     string `json:"brand" bson:"brand"`
	Model     string `json:"model" bson:"model"`
	Size      string `json:"size" bson:"size"`
	Color     string `json:"color" bson:"color"`
	Quantity  int    `json:"quantity" bson:"quantity"`
	Layers    int    `json:"layers" bson:"layers"`
	Serial    int    `json:"serial" bson:"serial"`
	BrandID   int    `json:"brand_id,omitempty" bson:"brand_id,omitempty"`
	ModelID   int    `json:"model_id,omitempty" bson:"model_id,omitempty"`
	SizeID    int    `json:"size_id,omitempty" bson:"size_id,omitempty"`
	ColorID   int    `json:"color_id,omitempty" bson:"color_id,omitempty"`
}

// Label returns the printable view of the record.
func (r ValidatedRecord) Label() LabelRecord {
	return LabelRecord{
		Barcode:  r.Barcode,
		Brand:    r.Brand,
		Model:    r.Model,
		Size:     r.Size,
		Color:    r.Color,
		Quantity: r.Quantity,
		Layers:   r.Layers,
		Serial:   r.Serial,
	}
}

// Submission converts the record into the store's create payload with the
// fixed initial phase and status.
func (r ValidatedRecord) Submission() SubmitRecord {
	return SubmitRecord{
		Barcode:      r.Barcode,
		BrandID:      r.BrandID,
		ModelID:      r.ModelID,
		SizeID:       r.SizeID,
		ColorID:      r.ColorID,
		Brand:        r.Brand,
		Model:        r.Model,
		Size:         r.Size,
		Color:        r.Color,
		Quantity:     r.Quantity,
		Layers:       r.Layers,
		Serial:       r.Serial,
		CurrentPhase: PhaseCutting,
		Status:       StatusPending,
	}
}
