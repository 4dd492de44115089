package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/config"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/database"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/service"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/utils"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLogger := utils.GetLogger()

	master, err := repository.LoadAccountMaster(cfg.AccountMasterPath)
	if err != nil {
		log.Fatalf("Failed to load account master %s: %v", cfg.AccountMasterPath, err)
	}

	factory := llm.NewFactory(llm.DefaultRegistry, cfg.Providers, cfg.ProviderFallbackOrder, appLogger)
	provider, err := factory.CreateWithFallback(cfg.LLMProvider)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	providers := llm.NewManager(factory, provider)

	// Redis is required: uploads arrive through the shared store
	redisClient, err := database.NewRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Database is optional
	var history service.HistoryStore
	db, err := database.NewMySQL(cfg)
	if err != nil {
		log.Printf("Warning: Failed to connect to database: %v (history disabled)", err)
	} else {
		defer db.Close()
		receiptRepo := repository.NewReceiptRepository(db)
		if err := receiptRepo.EnsureSchema(); err != nil {
			log.Printf("Warning: Failed to ensure receipt_history table: %v", err)
		}
		history = receiptRepo
	}

	runner, err := worker.NewRunner(cfg.ExtractionConcurrency, appLogger)
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}
	extraction := service.NewExtractionService(service.ExtractionDeps{
		Store:     repository.NewRedisUploadStore(redisClient, cfg.UploadTTL),
		Results:   repository.NewRedisResultRepository(redisClient, cfg.UploadTTL),
		History:   history,
		Provider:  providers,
		Selection: repository.NewRedisProviderSelection(redisClient),
		Syncer:    providers,
		Engine:    service.NewClassificationEngine(master),
		Runner:    runner,
		RetryMax:  cfg.LLMRetryMax,
		Logger:    appLogger,
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.AsynqRedisAddr,
			Password: cfg.AsynqRedisPassword,
			DB:       cfg.AsynqRedisDB,
		},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	structural := func(err error) bool {
		return errors.Is(err, worker.ErrEmptyBatch) || errors.Is(err, service.ErrBatchNotFound)
	}

	mux := asynq.NewServeMux()
	worker.RegisterHandlers(mux, worker.NewProcessingTaskHandler(extraction, structural, appLogger))

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\nGracefully shutting down worker...")
		srv.Shutdown()
	}()

	log.Printf("Worker starting with concurrency: %d (provider %s, %d extractions per batch)",
		cfg.WorkerConcurrency, providers.Name(), cfg.ExtractionConcurrency)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	fmt.Println("Worker exited")
}
