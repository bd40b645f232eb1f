package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/yousufaayman/barcode-manage-cpc-sub000/common/errors"
	"github.com/yousufaayman/barcode-manage-cpc-sub000/services"
	"go.uber.org/zap"
)

// ImportController serves the bulk import workflow: upload, review,
// submit, print.
type ImportController struct {
	imports   ImportServiceAPI
	submitter SubmissionAPI
	validator *RequestValidator
	timeout   time.Duration
}

func NewImportController(imports ImportServiceAPI, submitter SubmissionAPI, validator *RequestValidator) *ImportController {
	return &ImportController{
		imports:   imports,
		submitter: submitter,
		validator: validator,
		timeout:   DefaultContextTimeout,
	}
}

// Upload imports a spreadsheet. With ?async=true the file is queued and a
// job id is returned instead of the classified rows.
func (h *ImportController) Upload(c *gin.Context) {
	file, err := h.getAndValidateFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperrors.KindFileStructure})
		return
	}

	data, err := readUpload(file)
	if err != nil {
		zap.L().Error("Failed to read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	mimeHint := file.Header.Get("Content-Type")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if strings.ToLower(strings.TrimSpace(c.Query("async"))) == "true" {
		jobID, err := h.imports.Enqueue(ctx, data, file.Filename, mimeHint)
		if err != nil {
			zap.L().Error("Failed to enqueue async import", zap.Error(err))
			apperrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"job_id":    jobID,
			"import_id": jobID,
			"message":   "Import queued for processing",
		})
		return
	}

	batch, err := h.imports.Import(ctx, data, file.Filename, mimeHint)
	if err != nil {
		respondImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch.View())
}

func (h *ImportController) JobStatus(c *gin.Context) {
	id, ok := importID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	job, err := h.imports.JobStatus(ctx, id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *ImportController) Get(c *gin.Context) {
	id, ok := importID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	batch, err := h.imports.Get(ctx, id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, batch.View())
}

// Recheck runs the archived upload through the pipeline again, typically
// after the store was unreachable.
func (h *ImportController) Recheck(c *gin.Context) {
	id, ok := importID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	batch, err := h.imports.Recheck(ctx, id)
	if err != nil {
		respondImportError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch.View())
}

func (h *ImportController) Submit(c *gin.Context) {
	id, ok := importID(c)
	if !ok {
		return
	}

	result, err := h.submitter.Submit(c.Request.Context(), id)
	if err != nil {
		zap.L().Warn("Submission rejected or failed", zap.String("import_id", id), zap.Error(err))
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ImportController) Print(c *gin.Context) {
	id, ok := importID(c)
	if !ok {
		return
	}

	opts, err := h.validator.ParsePrintRequest(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.submitter.Print(ctx, id, opts)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ImportController) Discard(c *gin.Context) {
	id, ok := importID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.imports.Discard(ctx, id); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Template returns an empty workbook with the import columns.
func (h *ImportController) Template(c *gin.Context) {
	data, err := services.BuildTemplate()
	if err != nil {
		zap.L().Error("Failed to build import template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build template"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", services.TemplateFileName))
	c.Data(http.StatusOK, services.TemplateContentType, data)
}

func (h *ImportController) Printers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	printers, err := h.submitter.Printers(ctx)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"printers": printers})
}

// Private helper methods

func (h *ImportController) getAndValidateFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required")
	}

	if !h.validator.IsValidSheetFile(file) {
		return nil, fmt.Errorf("invalid file type. Only .xlsx, .xls and .csv files are allowed")
	}

	if err := h.validator.ValidateFileSize(file); err != nil {
		return nil, err
	}

	return file, nil
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	fh, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return io.ReadAll(fh)
}

func importID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid import ID format"})
		return "", false
	}
	return id, true
}

// respondImportError adds the import id to check failures so the client
// can retry with POST /imports/:id/recheck.
func respondImportError(c *gin.Context, err error) {
	var pending *services.PendingImportError
	if errors.As(err, &pending) {
		appErr, ok := apperrors.As(pending.Err)
		if !ok {
			appErr = apperrors.NetworkFailure("Duplicate check failed", pending.Err)
		}
		c.JSON(appErr.Code, gin.H{
			"error":     appErr.Message,
			"kind":      appErr.Kind,
			"import_id": pending.ImportID,
			"retry":     fmt.Sprintf("/imports/%s/recheck", pending.ImportID),
		})
		return
	}
	apperrors.Respond(c, err)
}
