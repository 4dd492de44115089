package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

var ErrReportNotFound = errors.New("report not found")

// ResultStore caches batch reports and progress between the worker and the
// web process.
type ResultStore interface {
	SaveReport(ctx context.Context, report *models.BatchReport) error
	Report(ctx context.Context, code string) (*models.BatchReport, error)
	SetProgress(ctx context.Context, progress models.BatchProgress) error
	Progress(ctx context.Context, code string) (*models.BatchProgress, error)
}

type RedisResultRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisResultRepository(client *redis.Client, ttl time.Duration) *RedisResultRepository {
	return &RedisResultRepository{client: client, ttl: ttl}
}

func reportKey(code string) string   { return "receipt:report:" + code }
func progressKey(code string) string { return "receipt:progress:" + code }

func (r *RedisResultRepository) SaveReport(ctx context.Context, report *models.BatchReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return r.client.Set(ctx, reportKey(report.BatchCode), data, r.ttl).Err()
}

func (r *RedisResultRepository) Report(ctx context.Context, code string) (*models.BatchReport, error) {
	data, err := r.client.Get(ctx, reportKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	var report models.BatchReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

func (r *RedisResultRepository) SetProgress(ctx context.Context, progress models.BatchProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, progressKey(progress.BatchCode), data, r.ttl).Err()
}

func (r *RedisResultRepository) Progress(ctx context.Context, code string) (*models.BatchProgress, error) {
	data, err := r.client.Get(ctx, progressKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	var progress models.BatchProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

type MemoryResultRepository struct {
	mu       sync.RWMutex
	reports  map[string]models.BatchReport
	progress map[string]models.BatchProgress
}

func NewMemoryResultRepository() *MemoryResultRepository {
	return &MemoryResultRepository{
		reports:  make(map[string]models.BatchReport),
		progress: make(map[string]models.BatchProgress),
	}
}

func (r *MemoryResultRepository) SaveReport(ctx context.Context, report *models.BatchReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.BatchCode] = *report
	return nil
}

func (r *MemoryResultRepository) Report(ctx context.Context, code string) (*models.BatchReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[code]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &report, nil
}

func (r *MemoryResultRepository) SetProgress(ctx context.Context, progress models.BatchProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[progress.BatchCode] = progress
	return nil
}

func (r *MemoryResultRepository) Progress(ctx context.Context, code string) (*models.BatchProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	progress, ok := r.progress[code]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &progress, nil
}
