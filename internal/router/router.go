package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
)

// Dependencies are the process-level resources the routes are built from.
// DB and Redis may be nil.
type Dependencies struct {
	Cfg       *config.Config
	DB        *sqlx.DB
	Redis     *redis.Client
	Master    *repository.AccountMasterRepository
	Providers *llm.Manager
	Logger    *logrus.Logger
}

func Setup(app *fiber.App, deps Dependencies) error {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"app":      deps.Cfg.AppName,
			"provider": deps.Providers.Name(),
			"model":    deps.Providers.Model(),
			"database": deps.DB != nil,
			"redis":    deps.Redis != nil,
		})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{
			"Title":    deps.Cfg.AppName,
			"Provider": deps.Providers.Name(),
			"Model":    deps.Providers.Model(),
		})
	})

	api := app.Group("/api/v1")
	return SetupAPIRoutes(api, deps)
}
