package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/database"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/router"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLogger := utils.GetLogger()

	// Accounting master is required
	master, err := repository.LoadAccountMaster(cfg.AccountMasterPath)
	if err != nil {
		log.Fatalf("Failed to load account master %s: %v", cfg.AccountMasterPath, err)
	}
	log.Printf("Loaded %d accounts from %s", len(master.Accounts()), cfg.AccountMasterPath)

	// LLM provider
	factory := llm.NewFactory(llm.DefaultRegistry, cfg.Providers, cfg.ProviderFallbackOrder, appLogger)
	provider, err := factory.CreateWithFallback(cfg.LLMProvider)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	providers := llm.NewManager(factory, provider)
	log.Printf("Using LLM provider %s (%s)", provider.Name(), provider.Model())

	// Initialize database (optional - for receipt history)
	db, err := database.NewMySQL(cfg)
	if err != nil {
		log.Printf("Warning: Failed to connect to database: %v", err)
		log.Printf("Application will continue without database (history disabled)")
		db = nil
	} else {
		defer db.Close()
	}

	// Initialize Redis (optional - for shared uploads and background jobs)
	redisClient, err := database.NewRedis(cfg)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Printf("Application will continue without Redis (in-memory uploads, background jobs disabled)")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Initialize template engine
	engine := html.New("./views", ".html")
	engine.Reload(cfg.AppEnv == "development")

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		Views:        engine,
		BodyLimit:    cfg.UploadMaxSize * 10,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	if err := router.Setup(app, router.Dependencies{
		Cfg:       cfg,
		DB:        db,
		Redis:     redisClient,
		Master:    master,
		Providers: providers,
		Logger:    appLogger,
	}); err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\nGracefully shutting down...")
		_ = app.Shutdown()
	}()

	port := fmt.Sprintf(":%s", cfg.AppPort)
	log.Printf("Server starting on %s", port)
	if err := app.Listen(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	fmt.Println("Server exited")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if c.Accepts("application/json") != "" {
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"message": message,
			"error":   err.Error(),
		})
	}

	return c.Status(code).Render("error", fiber.Map{
		"Code":    code,
		"Message": message,
	})
}
