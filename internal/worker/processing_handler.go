package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const TypeReceiptExtract = "receipt:extract"

type ExtractTaskPayload struct {
	BatchCode string `json:"batch_code"`
}

// NewExtractTask builds the task enqueued by the web process.
func NewExtractTask(batchCode string) (*asynq.Task, error) {
	payload, err := json.Marshal(ExtractTaskPayload{BatchCode: batchCode})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReceiptExtract, payload, asynq.MaxRetry(1), asynq.Timeout(30*time.Minute)), nil
}

// BatchProcessor runs a whole batch and stores its report.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, code string) (*models.BatchReport, error)
}

// StructuralError reports whether err should stop the batch without a retry.
type StructuralError func(err error) bool

type ProcessingTaskHandler struct {
	processor  BatchProcessor
	structural StructuralError
	logger     *logrus.Logger
}

func NewProcessingTaskHandler(processor BatchProcessor, structural StructuralError, logger *logrus.Logger) *ProcessingTaskHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if structural == nil {
		structural = func(err error) bool { return errors.Is(err, ErrEmptyBatch) }
	}
	return &ProcessingTaskHandler{processor: processor, structural: structural, logger: logger}
}

// Handle runs the batch. Per-file failures are recorded in the report and
// the task succeeds; structural errors skip asynq's retry.
func (h *ProcessingTaskHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ExtractTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.BatchCode == "" {
		return fmt.Errorf("payload has no batch code: %w", asynq.SkipRetry)
	}

	log := h.logger.WithField("batch_code", payload.BatchCode)
	log.Info("Starting receipt extraction task")

	report, err := h.processor.ProcessBatch(ctx, payload.BatchCode)
	if err != nil {
		if h.structural(err) {
			log.WithError(err).Error("Batch cannot be processed")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to process batch %s: %w", payload.BatchCode, err)
	}

	log.WithFields(logrus.Fields{
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("Receipt extraction task completed")
	return nil
}
