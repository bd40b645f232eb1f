package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

const DefaultMaxUploadSize = 10 * 1024 * 1024 // 10MB

var (
	allowedSheetExtensions = map[string]bool{
		".csv":  true,
		".xlsx": true,
		".xls":  true,
	}

	allowedSheetTypes = map[string]bool{
		"text/csv":                 true,
		"application/csv":          true,
		"application/vnd.ms-excel": true,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	}
)

// PrintRequestBody is the body of POST /imports/:id/print.
type PrintRequestBody struct {
	Count       int      `json:"count" validate:"required,min=1"`
	PrinterName string   `json:"printer_name" validate:"required"`
	Barcodes    []string `json:"barcodes" validate:"omitempty,dive,required"`
}

// ScanRequestBody is the body of POST /scan.
type ScanRequestBody struct {
	Code   string `json:"code" validate:"required"`
	Mode   string `json:"mode" validate:"omitempty,oneof=view update"`
	Role   string `json:"role"`
	Phase  int    `json:"phase" validate:"omitempty,min=1,max=3"`
	Status string `json:"status"`
}

// RequestValidator handles all input validation
type RequestValidator struct {
	validate      *validator.Validate
	maxUploadSize int64
}

func NewRequestValidator(maxUploadSize int64) *RequestValidator {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{
		validate:      v,
		maxUploadSize: maxUploadSize,
	}
}

// IsValidSheetFile accepts CSV and Excel workbooks by extension or type.
func (rv *RequestValidator) IsValidSheetFile(file *multipart.FileHeader) bool {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if allowedSheetExtensions[ext] {
		return true
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(file.Header.Get("Content-Type"), ";")[0]))
	return allowedSheetTypes[contentType]
}

// ValidateFileSize checks if file size is within limits
func (rv *RequestValidator) ValidateFileSize(file *multipart.FileHeader) error {
	if file.Size > rv.maxUploadSize {
		return fmt.Errorf("file too large (max %dMB)", rv.maxUploadSize/(1024*1024))
	}
	return nil
}

// ParsePrintRequest binds and checks a print request. Range checks against
// the copy limit belong to the coordinator.
func (rv *RequestValidator) ParsePrintRequest(c *gin.Context) (models.PrintOptions, error) {
	var body PrintRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return models.PrintOptions{}, apperrors.Validation("Invalid request body")
	}
	if err := rv.validate.Struct(&body); err != nil {
		return models.PrintOptions{}, apperrors.Validation(describe(err))
	}
	return models.PrintOptions{
		Count:       body.Count,
		PrinterName: strings.TrimSpace(body.PrinterName),
		Barcodes:    body.Barcodes,
	}, nil
}

func (rv *RequestValidator) ParseScanRequest(c *gin.Context) (models.ScanRequest, error) {
	var body ScanRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return models.ScanRequest{}, apperrors.Validation("Invalid request body")
	}
	body.Code = strings.TrimSpace(body.Code)
	if err := rv.validate.Struct(&body); err != nil {
		return models.ScanRequest{}, apperrors.Validation(describe(err))
	}
	return models.ScanRequest{
		Code:   body.Code,
		Mode:   models.ScanMode(body.Mode),
		Role:   body.Role,
		Phase:  models.Phase(body.Phase),
		Status: body.Status,
		Source: models.ScanSourceManual,
	}, nil
}

// describe turns validator errors into one operator-readable line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s is out of range", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
