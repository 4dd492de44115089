package router

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/handler"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/middleware"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/worker"
)

func SetupAPIRoutes(router fiber.Router, deps Dependencies) error {
	cfg := deps.Cfg
	logger := deps.Logger

	// Initialize repositories
	var (
		store     repository.UploadStore
		results   repository.ResultStore
		selection repository.ProviderSelection
	)
	if deps.Redis != nil {
		store = repository.NewRedisUploadStore(deps.Redis, cfg.UploadTTL)
		results = repository.NewRedisResultRepository(deps.Redis, cfg.UploadTTL)
		selection = repository.NewRedisProviderSelection(deps.Redis)
		// workers follow whatever this process serves
		if err := selection.SetActiveProvider(context.Background(), deps.Providers.Name()); err != nil {
			logger.WithError(err).Warn("Failed to publish active provider")
		}
	} else {
		store = repository.NewMemoryUploadStore()
		results = repository.NewMemoryResultRepository()
	}

	var receiptRepo *repository.ReceiptRepository
	var history service.HistoryStore
	if deps.DB != nil {
		receiptRepo = repository.NewReceiptRepository(deps.DB)
		if err := receiptRepo.EnsureSchema(); err != nil {
			logger.WithError(err).Warn("Failed to ensure receipt_history table")
		}
		history = receiptRepo
	}

	// Initialize services
	runner, err := worker.NewRunner(cfg.ExtractionConcurrency, logger)
	if err != nil {
		return err
	}
	engine := service.NewClassificationEngine(deps.Master)
	reportService := service.NewReportService(engine, logger)
	excelService := service.NewExcelService(reportService)
	authService := service.NewAuthService(cfg)
	extraction := service.NewExtractionService(service.ExtractionDeps{
		Store:    store,
		Results:  results,
		History:  history,
		Provider: deps.Providers,
		Engine:   engine,
		Runner:   runner,
		RetryMax: cfg.LLMRetryMax,
		Logger:   logger,
	})

	// Initialize Asynq client (optional - only if Redis is available)
	var asynqClient *asynq.Client
	if deps.Redis != nil {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.AsynqRedisAddr,
			Password: cfg.AsynqRedisPassword,
			DB:       cfg.AsynqRedisDB,
		})
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	uploadHandler := handler.NewUploadHandler(store, extraction, excelService, asynqClient, cfg)
	receiptHandler := handler.NewReceiptHandler(extraction, cfg)
	accountHandler := handler.NewAccountHandler(deps.Master, engine, excelService)
	providerHandler := handler.NewProviderHandler(deps.Providers, selection, logger)
	historyHandler := handler.NewHistoryHandler(receiptRepo, excelService)

	// Public routes
	auth := router.Group("/auth")
	auth.Post("/login", authHandler.Login)

	// Protected routes
	protected := router.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
	protected.Get("/auth/me", authHandler.Me)

	// Batches
	batches := protected.Group("/batches")
	batches.Post("/", uploadHandler.CreateBatch)
	batches.Get("/", uploadHandler.GetBatches)
	batches.Post("/:code/files", uploadHandler.UploadFiles)
	batches.Get("/:code/files", uploadHandler.GetFiles)
	batches.Delete("/:code/files/:id", uploadHandler.DeleteFile)
	batches.Delete("/:code", uploadHandler.DeleteBatch)
	batches.Post("/:code/process", uploadHandler.ProcessBatch)
	batches.Post("/:code/enqueue", uploadHandler.EnqueueBatch)
	batches.Get("/:code/progress", uploadHandler.GetProgress)
	batches.Get("/:code/report", uploadHandler.GetReport)
	batches.Get("/:code/export", uploadHandler.ExportReport)

	// Single receipt
	protected.Post("/receipts/extract", receiptHandler.Extract)

	// Accounting master
	protected.Post("/classify", accountHandler.Classify)
	protected.Get("/accounts", accountHandler.GetAccounts)
	protected.Get("/accounts/export", accountHandler.ExportAccounts)
	protected.Get("/accounts/:code", accountHandler.GetAccount)

	// Providers
	protected.Get("/providers", providerHandler.GetProviders)
	protected.Get("/providers/health", providerHandler.GetHealth)
	protected.Post("/providers/switch", providerHandler.Switch)

	// History
	protected.Get("/history", historyHandler.GetHistory)
	protected.Get("/history/:code", historyHandler.GetBatchHistory)
	protected.Get("/history/:code/export", historyHandler.ExportBatchHistory)

	return nil
}
