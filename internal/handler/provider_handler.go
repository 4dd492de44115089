package handler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

type ProviderHandler struct {
	manager   *llm.Manager
	selection repository.ProviderSelection
	logger    *logrus.Logger
}

// NewProviderHandler accepts a nil selection; switches then stay local to
// this process.
func NewProviderHandler(manager *llm.Manager, selection repository.ProviderSelection, logger *logrus.Logger) *ProviderHandler {
	return &ProviderHandler{manager: manager, selection: selection, logger: logger}
}

type providerInfo struct {
	Name         string           `json:"name"`
	Model        string           `json:"model,omitempty"`
	Active       bool             `json:"active"`
	Configured   bool             `json:"configured"`
	Capabilities llm.Capabilities `json:"capabilities"`
	Error        string           `json:"error,omitempty"`
	Healthy      *bool            `json:"healthy,omitempty"`
}

func (h *ProviderHandler) GetProviders(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, "Providers retrieved successfully", h.describe(nil))
}

// GetHealth health checks every configured provider in parallel.
func (h *ProviderHandler) GetHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()
	return utils.SuccessResponse(c, "Provider health checked", h.describe(ctx))
}

func (h *ProviderHandler) describe(healthCtx context.Context) []providerInfo {
	providers, errs := h.manager.Factory().CreateAll()
	active := h.manager.Name()
	names := h.manager.Factory().Registered()

	var wg sync.WaitGroup
	infos := make([]providerInfo, len(names))
	for i, name := range names {
		infos[i] = providerInfo{Name: name, Active: name == active}
		if err, failed := errs[name]; failed {
			infos[i].Error = err.Error()
			continue
		}

		p := providers[name]
		infos[i].Configured = true
		infos[i].Model = p.Model()
		infos[i].Capabilities = p.Capabilities()

		if healthCtx == nil {
			continue
		}
		// each goroutine owns infos[i]
		wg.Add(1)
		go func(i int, p llm.Provider) {
			defer wg.Done()
			healthy := p.HealthCheck(healthCtx)
			infos[i].Healthy = &healthy
		}(i, p)
	}
	wg.Wait()
	return infos
}

type switchRequest struct {
	Provider string `json:"provider"`
}

// Switch replaces the active provider after a successful health check.
func (h *ProviderHandler) Switch(c *fiber.Ctx) error {
	var req switchRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if req.Provider == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "provider is required", nil)
	}

	previous := h.manager.Name()
	p, err := h.manager.Switch(c.UserContext(), req.Provider)
	if err != nil {
		return providerErrorResponse(c, err)
	}

	h.logger.WithFields(logrus.Fields{
		"from":  previous,
		"to":    p.Name(),
		"model": p.Model(),
	}).Info("Switched LLM provider")

	if h.selection != nil {
		if err := h.selection.SetActiveProvider(c.UserContext(), p.Name()); err != nil {
			h.logger.WithError(err).Warn("Failed to publish provider switch to workers")
		}
	}

	return utils.SuccessResponse(c, "Provider switched", fiber.Map{
		"provider": p.Name(),
		"model":    p.Model(),
	})
}
