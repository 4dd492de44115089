package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

type HistoryHandler struct {
	receiptRepo  *repository.ReceiptRepository
	excelService *service.ExcelService
}

// NewHistoryHandler accepts a nil repository; every route then answers 503.
func NewHistoryHandler(receiptRepo *repository.ReceiptRepository, excelService *service.ExcelService) *HistoryHandler {
	return &HistoryHandler{receiptRepo: receiptRepo, excelService: excelService}
}

func (h *HistoryHandler) unavailable(c *fiber.Ctx) error {
	return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "History requires a database connection", nil)
}

func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	if h.receiptRepo == nil {
		return h.unavailable(c)
	}

	params := utils.GetPaginationParams(c)
	offset := utils.GetOffset(params.Page, params.Limit)

	rows, total, err := h.receiptRepo.FindAll(params.Limit, offset, params.Search)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve history", err)
	}

	pagination := utils.CalculatePagination(params.Page, params.Limit, int64(total))
	return utils.PaginatedResponseBuilder(c, "History retrieved successfully", rows, pagination)
}

func (h *HistoryHandler) GetBatchHistory(c *fiber.Ctx) error {
	if h.receiptRepo == nil {
		return h.unavailable(c)
	}
	rows, err := h.receiptRepo.FindByBatch(param(c, "code"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve history", err)
	}
	return utils.SuccessResponse(c, "History retrieved successfully", rows)
}

func (h *HistoryHandler) ExportBatchHistory(c *fiber.Ctx) error {
	if h.receiptRepo == nil {
		return h.unavailable(c)
	}
	code := param(c, "code")
	rows, err := h.receiptRepo.FindByBatch(code)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve history", err)
	}

	buf, err := h.excelService.ExportHistory(rows)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build spreadsheet", err)
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=history_%s.xlsx", code))
	return c.Send(buf.Bytes())
}
