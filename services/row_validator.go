package services

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

// integerCell accepts whole numbers, including the "5.0" spreadsheets
// produce for numeric cells.
var integerCell = regexp.MustCompile(`^[+-]?[0-9]+(\.0+)?$`)

// recordRules holds the parsed values the rule set is evaluated against.
type recordRules struct {
	Model    string `validate:"required,alphanum"`
	Quantity int    `validate:"min=1,max=999"`
	Layers   int    `validate:"min=1,max=99"`
	Serial   int    `validate:"min=1,max=999"`
}

type fieldRule struct {
	structField string
	field       string
	code        models.ErrorCode
	rangeMsg    string
	parseMsg    string
}

// fieldRules is also the order in which errors are reported.
var fieldRules = []fieldRule{
	{"Model", "model", models.CodeInvalidModel, "Model name must be at least 1 alphanumeric character.", ""},
	{"Quantity", "quantity", models.CodeInvalidQuantity, "Quantity must be between 1-999.", "Quantity must be a whole number."},
	{"Layers", "layers", models.CodeInvalidLayers, "Layers must be between 1-99.", "Layers must be a whole number."},
	{"Serial", "serial", models.CodeInvalidSerial, "Serial must be between 1-999.", "Serial must be a whole number."},
}

// RowValidator applies the fixed row rule set. Every rule is evaluated, so a
// row reports all of its violations at once.
type RowValidator struct {
	validate *validator.Validate
}

func NewRowValidator() *RowValidator {
	return &RowValidator{validate: validator.New()}
}

// Validate returns either a record (and no errors) or the field errors.
func (v *RowValidator) Validate(row models.CandidateRow) (models.ValidatedRecord, []models.FieldError) {
	failed := make(map[string]string, len(fieldRules))

	quantity, ok := parseCount(row.Quantity)
	if !ok {
		failed["Quantity"] = fieldRules[1].parseMsg
	}
	layers, ok := parseCount(row.Layers)
	if !ok {
		failed["Layers"] = fieldRules[2].parseMsg
	}
	serial, ok := parseCount(row.Serial)
	if !ok {
		failed["Serial"] = fieldRules[3].parseMsg
	}

	rules := recordRules{
		Model:    NormalizeModel(row.Model),
		Quantity: quantity,
		Layers:   layers,
		Serial:   serial,
	}

	if err := v.validate.Struct(rules); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if _, seen := failed[fe.Field()]; seen {
					continue
				}
				for _, r := range fieldRules {
					if r.structField == fe.Field() {
						failed[fe.Field()] = r.rangeMsg
					}
				}
			}
		}
	}

	if len(failed) > 0 {
		errs := make([]models.FieldError, 0, len(failed))
		for _, r := range fieldRules {
			if msg, ok := failed[r.structField]; ok {
				errs = append(errs, models.FieldError{Field: r.field, Code: r.code, Message: msg})
			}
		}
		return models.ValidatedRecord{}, errs
	}

	return models.ValidatedRecord{
		RowNumber: row.RowNumber,
		Barcode:   strings.TrimSpace(row.Barcode),
		Brand:     strings.TrimSpace(row.Brand),
		Model:     rules.Model,
		Size:      strings.TrimSpace(row.Size),
		Color:     strings.TrimSpace(row.Color),
		Quantity:  quantity,
		Layers:    layers,
		Serial:    serial,
	}, nil
}

// parseCount parses a whole number cell. Only "n" or "n.0" is accepted;
// fractions and trailing text are rejected rather than truncated. Values too large for an int are
// clamped so they still fail the range rule instead of the parse rule.
func parseCount(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if !integerCell.MatchString(s) {
		return 0, false
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		if strings.HasPrefix(s, "-") {
			return math.MinInt32, true
		}
		return math.MaxInt32, true
	}
	return n, true
}
