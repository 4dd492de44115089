package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

type ReceiptHandler struct {
	extraction *service.ExtractionService
	cfg        *config.Config
}

func NewReceiptHandler(extraction *service.ExtractionService, cfg *config.Config) *ReceiptHandler {
	return &ReceiptHandler{extraction: extraction, cfg: cfg}
}

// Extract processes one uploaded image immediately.
func (h *ReceiptHandler) Extract(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File is required", err)
	}
	name, mimeType, data, err := readImage(fh, h.cfg.UploadMaxSize)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid image", err)
	}

	file := models.UploadedFile{
		ID:           repository.NewFileID(),
		OriginalName: name,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		Buffer:       data,
		UploadedAt:   time.Now(),
	}

	outcome, err := h.extraction.ExtractOne(c.UserContext(), file)
	if err != nil {
		return providerErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, "Receipt extracted successfully", outcome)
}

// providerErrorResponse renders an extraction error with its message intact.
func providerErrorResponse(c *fiber.Ctx, err error) error {
	pe, ok := llm.AsProviderError(err)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Extraction failed", err)
	}

	status := fiber.StatusBadGateway
	switch pe.Kind {
	case llm.KindRateLimit:
		status = fiber.StatusTooManyRequests
	case llm.KindNetwork:
		status = fiber.StatusServiceUnavailable
	case llm.KindSafety, llm.KindRefusal, llm.KindMalformed:
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(fiber.Map{
		"success":    false,
		"message":    pe.UserMessage(),
		"error":      pe.Error(),
		"error_kind": pe.Kind,
		"retryable":  pe.Retryable(),
	})
}
