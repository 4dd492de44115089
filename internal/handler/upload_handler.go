package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/worker"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type UploadHandler struct {
	store        repository.UploadStore
	extraction   *service.ExtractionService
	excelService *service.ExcelService
	asynqClient  *asynq.Client
	cfg          *config.Config
}

func NewUploadHandler(
	store repository.UploadStore,
	extraction *service.ExtractionService,
	excelService *service.ExcelService,
	asynqClient *asynq.Client,
	cfg *config.Config,
) *UploadHandler {
	return &UploadHandler{
		store:        store,
		extraction:   extraction,
		excelService: excelService,
		asynqClient:  asynqClient,
		cfg:          cfg,
	}
}

func (h *UploadHandler) CreateBatch(c *fiber.Ctx) error {
	batch, err := h.store.CreateBatch(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create batch", err)
	}
	return utils.CreatedResponse(c, "Batch created", batch)
}

func (h *UploadHandler) GetBatches(c *fiber.Ctx) error {
	batches, err := h.store.Batches(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list batches", err)
	}
	return utils.SuccessResponse(c, "Batches retrieved successfully", batches)
}

// UploadFiles accepts one or more images in the "files" form field.
func (h *UploadHandler) UploadFiles(c *fiber.Ctx) error {
	code := param(c, "code")

	form, err := c.MultipartForm()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Multipart form is required", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "At least one file is required", nil)
	}

	uploaded := make([]models.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		name, mimeType, data, err := readImage(fh, h.cfg.UploadMaxSize)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, fmt.Sprintf("Rejected %s", fh.Filename), err)
		}
		file, err := h.store.AddFile(c.UserContext(), code, name, mimeType, data)
		if errors.Is(err, repository.ErrBatchNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Batch not found", nil)
		}
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to store file", err)
		}
		uploaded = append(uploaded, *file)
	}

	return utils.CreatedResponse(c, "Files uploaded successfully", fiber.Map{
		"batch_code": code,
		"files":      uploaded,
	})
}

// readImage loads an uploaded image and settles its MIME type, sniffing the
// bytes when the client sent a generic content type.
func readImage(fh *multipart.FileHeader, maxSize int) (string, string, []byte, error) {
	if fh.Size > int64(maxSize) {
		return "", "", nil, errors.New("file size exceeds maximum limit")
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", "", nil, err
	}
	if len(data) == 0 {
		return "", "", nil, errors.New("file is empty")
	}

	mimeType := strings.ToLower(fh.Header.Get("Content-Type"))
	if !allowedImageTypes[mimeType] {
		sniffed, ok := llm.SniffImageType(data)
		if !ok {
			return "", "", nil, errors.New("only JPEG, PNG, WebP and GIF images are allowed")
		}
		mimeType = sniffed
	}
	return fh.Filename, mimeType, data, nil
}

func (h *UploadHandler) GetFiles(c *fiber.Ctx) error {
	files, err := h.store.Files(c.UserContext(), param(c, "code"))
	if errors.Is(err, repository.ErrBatchNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Batch not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list files", err)
	}
	return utils.SuccessResponse(c, "Files retrieved successfully", files)
}

func (h *UploadHandler) DeleteFile(c *fiber.Ctx) error {
	err := h.store.DeleteFile(c.UserContext(), param(c, "code"), param(c, "id"))
	if errors.Is(err, repository.ErrBatchNotFound) || errors.Is(err, repository.ErrFileNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete file", err)
	}
	return utils.SuccessResponse(c, "File deleted successfully", nil)
}

func (h *UploadHandler) DeleteBatch(c *fiber.Ctx) error {
	err := h.store.DeleteBatch(c.UserContext(), param(c, "code"))
	if errors.Is(err, repository.ErrBatchNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Batch not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete batch", err)
	}
	return utils.SuccessResponse(c, "Batch deleted successfully", nil)
}

// ProcessBatch runs the batch synchronously and returns the report.
func (h *UploadHandler) ProcessBatch(c *fiber.Ctx) error {
	report, err := h.extraction.ProcessBatch(c.UserContext(), param(c, "code"))
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Batch not found", nil)
	case errors.Is(err, worker.ErrEmptyBatch):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Batch has no files", nil)
	case err != nil:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process batch", err)
	}

	return utils.SuccessResponse(c, fmt.Sprintf("Processed %d receipts (%d failed)", report.Total, report.Failed), report)
}

// EnqueueBatch hands the batch to the background worker.
func (h *UploadHandler) EnqueueBatch(c *fiber.Ctx) error {
	if h.asynqClient == nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Background processing is disabled", nil)
	}
	code := param(c, "code")

	files, err := h.store.Files(c.UserContext(), code)
	if errors.Is(err, repository.ErrBatchNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Batch not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read batch", err)
	}
	if len(files) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Batch has no files", nil)
	}

	task, err := worker.NewExtractTask(code)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create task", err)
	}
	info, err := h.asynqClient.Enqueue(task, asynq.Queue("default"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to enqueue task", err)
	}

	return utils.SuccessResponse(c, "Batch queued for processing", fiber.Map{
		"batch_code": code,
		"task_id":    info.ID,
		"files":      len(files),
	})
}

func (h *UploadHandler) GetProgress(c *fiber.Ctx) error {
	progress, err := h.extraction.Progress(c.UserContext(), param(c, "code"))
	if errors.Is(err, repository.ErrReportNotFound) {
		return utils.SuccessResponse(c, "Batch has not started", models.BatchProgress{BatchCode: param(c, "code"), Status: "pending"})
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read progress", err)
	}
	return utils.SuccessResponse(c, "Progress retrieved successfully", progress)
}

func (h *UploadHandler) GetReport(c *fiber.Ctx) error {
	report, err := h.extraction.Report(c.UserContext(), param(c, "code"))
	if errors.Is(err, repository.ErrReportNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Report not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read report", err)
	}
	return utils.SuccessResponse(c, "Report retrieved successfully", report)
}

// ExportReport downloads the batch report as xlsx.
func (h *UploadHandler) ExportReport(c *fiber.Ctx) error {
	code := param(c, "code")
	report, err := h.extraction.Report(c.UserContext(), code)
	if errors.Is(err, repository.ErrReportNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Report not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read report", err)
	}

	buf, err := h.excelService.WriteReport(report)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build spreadsheet", err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipts_%s.xlsx", code))
	return c.Send(buf.Bytes())
}
