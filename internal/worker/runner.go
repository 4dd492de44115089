package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

// ErrEmptyBatch is returned by Run when there is nothing to process.
var ErrEmptyBatch = errors.New("batch has no files")

// ExtractFunc processes one file. Runner never calls it for more than its
// gate limit at once.
type ExtractFunc func(ctx context.Context, file models.UploadedFile) (*models.ReceiptRecord, error)

// Result is one file's outcome. Results are indexed by input position.
type Result struct {
	ID       string
	FileName string
	Success  bool
	Receipt  *models.ReceiptRecord
	Err      error
}

type Summary struct {
	Total     int                    `json:"total"`
	Succeeded int                    `json:"succeeded"`
	Failed    int                    `json:"failed"`
	Failures  []models.FailureReason `json:"failures"`
}

// ProgressFunc is called after each file finishes, one call at a time and
// with done strictly increasing.
type ProgressFunc func(done, failed, total int)

type Runner struct {
	gate       *Gate
	logger     *logrus.Logger
	onProgress ProgressFunc
}

func NewRunner(concurrency int, logger *logrus.Logger) (*Runner, error) {
	gate, err := NewGate(concurrency)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{gate: gate, logger: logger}, nil
}

// WithProgress returns a copy of the runner reporting to fn.
func (r *Runner) WithProgress(fn ProgressFunc) *Runner {
	cp := *r
	cp.onProgress = fn
	return &cp
}

func (r *Runner) Gate() *Gate {
	return r.gate
}

// Run processes every file through fn and returns exactly one Result per
// input. Failures, panics and cancellation become unsuccessful results.
func (r *Runner) Run(ctx context.Context, files []models.UploadedFile, fn ExtractFunc) ([]Result, error) {
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}

	results := make([]Result, len(files))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		failures int
	)

	for i, file := range files {
		results[i] = Result{ID: file.ID, FileName: file.OriginalName}

		if err := r.gate.Acquire(ctx); err != nil {
			results[i].Err = fmt.Errorf("not started: %w", err)
			mu.Lock()
			done++
			failures++
			if r.onProgress != nil {
				r.onProgress(done, failures, len(files))
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(i int, file models.UploadedFile) {
			defer wg.Done()
			defer r.gate.Release()

			receipt, err := r.safeCall(ctx, fn, file)
			if err != nil {
				results[i].Err = err
				r.logger.WithError(err).WithField("file_id", file.ID).Warn("Extraction failed")
			} else {
				results[i].Success = true
				results[i].Receipt = receipt
			}

			// onProgress runs under mu; done arrives in order.
			mu.Lock()
			done++
			if err != nil {
				failures++
			}
			if r.onProgress != nil {
				r.onProgress(done, failures, len(files))
			}
			mu.Unlock()
		}(i, file)
	}

	wg.Wait()
	return results, nil
}

func (r *Runner) safeCall(ctx context.Context, fn ExtractFunc, file models.UploadedFile) (receipt *models.ReceiptRecord, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			receipt = nil
			err = fmt.Errorf("panic while processing %s: %v", file.ID, rec)
		}
	}()
	receipt, err = fn(ctx, file)
	if err == nil && receipt == nil {
		err = errors.New("extractor returned no receipt")
	}
	return receipt, err
}

// Summarize counts outcomes and collects a reason for each failure.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results), Failures: []models.FailureReason{}}
	for _, res := range results {
		if res.Success {
			s.Succeeded++
			continue
		}
		s.Failed++
		reason := "unknown error"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		s.Failures = append(s.Failures, models.FailureReason{ID: res.ID, Reason: reason})
	}
	return s
}
