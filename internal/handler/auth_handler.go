package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if req.Username == "" || req.Password == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Username and password are required", nil)
	}

	resp, err := h.authService.Login(req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", err)
	}

	return utils.SuccessResponse(c, "Login successful", resp)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, "Current operator", fiber.Map{
		"username": c.Locals("username"),
		"role":     c.Locals("role"),
	})
}
