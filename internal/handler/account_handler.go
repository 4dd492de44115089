package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

const maxClassifyDescriptions = 500

type AccountHandler struct {
	master       *repository.AccountMasterRepository
	engine       *service.ClassificationEngine
	excelService *service.ExcelService
}

func NewAccountHandler(master *repository.AccountMasterRepository, engine *service.ClassificationEngine, excelService *service.ExcelService) *AccountHandler {
	return &AccountHandler{
		master:       master,
		engine:       engine,
		excelService: excelService,
	}
}

type classifyResult struct {
	Description string `json:"description"`
	models.ClassificationTrace
}

// Classify runs the cascade for each description and reports which tier
// matched.
func (h *AccountHandler) Classify(c *fiber.Ctx) error {
	var req models.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if len(req.Descriptions) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "descriptions is required", nil)
	}
	if len(req.Descriptions) > maxClassifyDescriptions {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Too many descriptions", nil)
	}

	results := make([]classifyResult, len(req.Descriptions))
	for i, desc := range req.Descriptions {
		results[i] = classifyResult{Description: desc, ClassificationTrace: h.engine.Explain(desc)}
	}
	return utils.SuccessResponse(c, "Classified successfully", results)
}

// GetAccounts lists the master, optionally filtered by section or a search
// term matched against code and names.
func (h *AccountHandler) GetAccounts(c *fiber.Ctx) error {
	section := c.Query("section")
	search := strings.ToLower(c.Query("search"))

	var accounts []models.Account
	for _, account := range h.master.Accounts() {
		if section != "" && account.Section != section {
			continue
		}
		if search != "" && !accountMatches(account, search) {
			continue
		}
		accounts = append(accounts, account)
	}

	return utils.SuccessResponse(c, "Accounts retrieved successfully", fiber.Map{
		"sections": h.master.Sections(),
		"accounts": accounts,
	})
}

func accountMatches(account models.Account, search string) bool {
	if strings.Contains(account.Code, search) || strings.Contains(strings.ToLower(account.Name), search) {
		return true
	}
	for _, sub := range account.SubAccounts {
		if strings.Contains(strings.ToLower(sub.Name), search) {
			return true
		}
	}
	return false
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	account, err := h.master.FindByCode(param(c, "code"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Account not found", err)
	}
	return utils.SuccessResponse(c, "Account retrieved successfully", account)
}

func (h *AccountHandler) ExportAccounts(c *fiber.Ctx) error {
	buf, err := h.excelService.AccountMasterBuffer(h.master.Accounts())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export accounts", err)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename=account_master.xlsx")
	return c.Send(buf.Bytes())
}
