package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/repository"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/worker"
)

var ErrBatchNotFound = repository.ErrBatchNotFound

// HistoryStore persists successful receipts. It is optional.
type HistoryStore interface {
	SaveBatch(rows []models.ReceiptHistory) error
}

// ProviderSyncer switches the active provider to a named one.
// *llm.Manager implements it.
type ProviderSyncer interface {
	Sync(ctx context.Context, name string) error
}

type ExtractionService struct {
	store     repository.UploadStore
	results   repository.ResultStore
	history   HistoryStore
	provider  llm.Provider
	selection repository.ProviderSelection
	syncer    ProviderSyncer
	engine    *ClassificationEngine
	runner    *worker.Runner
	retry     llm.RetryConfig
	logger    *logrus.Logger
}

type ExtractionDeps struct {
	Store    repository.UploadStore
	Results  repository.ResultStore
	History  HistoryStore
	Provider llm.Provider
	// Selection and Syncer are set together in processes that follow
	// provider switches made elsewhere.
	Selection repository.ProviderSelection
	Syncer    ProviderSyncer
	Engine    *ClassificationEngine
	Runner    *worker.Runner
	RetryMax  int
	Logger    *logrus.Logger
}

func NewExtractionService(deps ExtractionDeps) *ExtractionService {
	retry := llm.DefaultRetryConfig
	retry.MaxRetries = deps.RetryMax
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ExtractionService{
		store:     deps.Store,
		results:   deps.Results,
		history:   deps.History,
		provider:  deps.Provider,
		selection: deps.Selection,
		syncer:    deps.Syncer,
		engine:    deps.Engine,
		runner:    deps.Runner,
		retry:     retry,
		logger:    logger,
	}
}

// ExtractOne processes a single image with caller-level retry. The provider
// error is returned unchanged so the handler can show it verbatim.
func (s *ExtractionService) ExtractOne(ctx context.Context, file models.UploadedFile) (*models.ExtractionOutcome, error) {
	receipt, err := llm.WithRetry(ctx, s.retry, func(ctx context.Context) (*models.ReceiptRecord, error) {
		return s.provider.ProcessImage(ctx, file.Buffer, llm.ReceiptPrompt())
	})
	if err != nil {
		s.logger.WithError(err).WithField("file", file.OriginalName).Warn("Single receipt extraction failed")
		return nil, err
	}

	outcome := s.successOutcome(file.ID, file.OriginalName, receipt)
	return &outcome, nil
}

// ProcessBatch extracts every file of a batch, classifies the items and
// stores the report. Per-file failures are part of the report; only
// structural problems are returned as errors.
func (s *ExtractionService) ProcessBatch(ctx context.Context, code string) (*models.BatchReport, error) {
	files, err := s.store.Files(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, worker.ErrEmptyBatch
	}
	s.followSelection(ctx)

	log := s.logger.WithFields(logrus.Fields{
		"batch_code": code,
		"provider":   s.provider.Name(),
		"files":      len(files),
	})
	log.Info("Starting batch extraction")

	s.setProgress(ctx, models.BatchProgress{BatchCode: code, Status: "processing", Total: len(files)})

	runner := s.runner.WithProgress(func(done, failed, total int) {
		s.setProgress(ctx, models.BatchProgress{
			BatchCode: code,
			Status:    "processing",
			Total:     total,
			Done:      done,
			Failed:    failed,
			Percent:   float64(done) / float64(total) * 100,
		})
	})

	prompt := llm.ReceiptPrompt()
	results, err := runner.Run(ctx, files, func(ctx context.Context, file models.UploadedFile) (*models.ReceiptRecord, error) {
		return s.provider.ProcessImage(ctx, file.Buffer, prompt)
	})
	if err != nil {
		s.setProgress(ctx, models.BatchProgress{BatchCode: code, Status: "failed", Total: len(files)})
		return nil, err
	}

	report := &models.BatchReport{
		BatchCode:   code,
		Provider:    s.provider.Name(),
		Model:       s.provider.Model(),
		Outcomes:    make([]models.ExtractionOutcome, len(results)),
		ProcessedAt: time.Now(),
	}
	for i, res := range results {
		if res.Success {
			report.Outcomes[i] = s.successOutcome(res.ID, res.FileName, res.Receipt)
		} else {
			report.Outcomes[i] = failureOutcome(res)
		}
	}

	summary := worker.Summarize(results)
	report.Total = summary.Total
	report.Succeeded = summary.Succeeded
	report.Failed = summary.Failed
	report.Failures = summary.Failures

	if err := s.results.SaveReport(ctx, report); err != nil {
		log.WithError(err).Error("Failed to store batch report")
	}
	if s.history != nil {
		rows := repository.HistoryFromReport(report, s.outcomeAccount)
		if err := s.history.SaveBatch(rows); err != nil {
			log.WithError(err).Error("Failed to save receipt history")
		}
	}

	s.setProgress(ctx, models.BatchProgress{
		BatchCode: code,
		Status:    "completed",
		Total:     report.Total,
		Done:      report.Total,
		Failed:    report.Failed,
		Percent:   100,
	})
	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("Batch extraction completed")

	return report, nil
}

// followSelection adopts the shared provider selection before a batch. A
// failed switch keeps the current provider.
func (s *ExtractionService) followSelection(ctx context.Context) {
	if s.selection == nil || s.syncer == nil {
		return
	}
	name, err := s.selection.ActiveProvider(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read active provider")
		return
	}
	if err := s.syncer.Sync(ctx, name); err != nil {
		s.logger.WithError(err).WithField("provider", name).Warn("Failed to follow provider switch")
	}
}

func (s *ExtractionService) successOutcome(id, name string, receipt *models.ReceiptRecord) models.ExtractionOutcome {
	return models.ExtractionOutcome{
		ID:       id,
		FileName: name,
		Success:  true,
		Receipt:  receipt,
		Items:    s.engine.ClassifyReceipt(receipt),
	}
}

func failureOutcome(res worker.Result) models.ExtractionOutcome {
	outcome := models.ExtractionOutcome{ID: res.ID, FileName: res.FileName}
	if res.Err == nil {
		outcome.Error = "unknown error"
		outcome.ErrorKind = string(llm.KindUnknown)
		return outcome
	}
	outcome.Error = res.Err.Error()
	if pe, ok := llm.AsProviderError(res.Err); ok {
		outcome.ErrorKind = string(pe.Kind)
		outcome.Retryable = pe.Retryable()
	} else if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
		outcome.ErrorKind = string(llm.KindNetwork)
	} else {
		outcome.ErrorKind = string(llm.KindUnknown)
	}
	return outcome
}

func (s *ExtractionService) outcomeAccount(outcome models.ExtractionOutcome) models.ClassificationResult {
	return s.engine.ReceiptAccount(outcome.Receipt, outcome.Items)
}

func (s *ExtractionService) setProgress(ctx context.Context, progress models.BatchProgress) {
	if err := s.results.SetProgress(ctx, progress); err != nil {
		s.logger.WithError(err).WithField("batch_code", progress.BatchCode).Debug("Failed to update progress")
	}
}

// Report returns a stored report.
func (s *ExtractionService) Report(ctx context.Context, code string) (*models.BatchReport, error) {
	return s.results.Report(ctx, code)
}

func (s *ExtractionService) Progress(ctx context.Context, code string) (*models.BatchProgress, error) {
	return s.results.Progress(ctx, code)
}
