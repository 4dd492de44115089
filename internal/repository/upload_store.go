package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrFileNotFound  = errors.New("file not found")
)

// UploadStore keeps uploaded images grouped by batch. Files list in
// insertion order.
type UploadStore interface {
	CreateBatch(ctx context.Context) (*models.UploadBatch, error)
	Batches(ctx context.Context) ([]models.UploadBatch, error)
	AddFile(ctx context.Context, code, name, mimeType string, data []byte) (*models.UploadedFile, error)
	Files(ctx context.Context, code string) ([]models.UploadedFile, error)
	File(ctx context.Context, code, id string) (*models.UploadedFile, error)
	DeleteFile(ctx context.Context, code, id string) error
	DeleteBatch(ctx context.Context, code string) error
}

func NewFileID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

func NewBatchCode() string {
	return "BATCH-" + strings.ToUpper(uuid.NewString()[:8])
}

// MemoryUploadStore is the in-process store used when redis is unavailable.
type MemoryUploadStore struct {
	mu      sync.RWMutex
	order   []string
	batches map[string]*memoryBatch
}

type memoryBatch struct {
	info  models.UploadBatch
	order []string
	files map[string]models.UploadedFile
}

func NewMemoryUploadStore() *MemoryUploadStore {
	return &MemoryUploadStore{batches: make(map[string]*memoryBatch)}
}

func (s *MemoryUploadStore) CreateBatch(ctx context.Context) (*models.UploadBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := NewBatchCode()
	for s.batches[code] != nil {
		code = NewBatchCode()
	}
	b := &memoryBatch{
		info:  models.UploadBatch{Code: code, CreatedAt: time.Now()},
		files: make(map[string]models.UploadedFile),
	}
	s.batches[code] = b
	s.order = append(s.order, code)
	info := b.info
	return &info, nil
}

func (s *MemoryUploadStore) Batches(ctx context.Context) ([]models.UploadBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UploadBatch, 0, len(s.order))
	for _, code := range s.order {
		b := s.batches[code]
		info := b.info
		info.FileCount = len(b.order)
		out = append(out, info)
	}
	return out, nil
}

func (s *MemoryUploadStore) AddFile(ctx context.Context, code, name, mimeType string, data []byte) (*models.UploadedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[code]
	if !ok {
		return nil, ErrBatchNotFound
	}
	file := models.UploadedFile{
		ID:           NewFileID(),
		OriginalName: name,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		Buffer:       append([]byte(nil), data...),
		UploadedAt:   time.Now(),
	}
	b.files[file.ID] = file
	b.order = append(b.order, file.ID)
	return &file, nil
}

func (s *MemoryUploadStore) Files(ctx context.Context, code string) ([]models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[code]
	if !ok {
		return nil, ErrBatchNotFound
	}
	out := make([]models.UploadedFile, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.files[id])
	}
	return out, nil
}

func (s *MemoryUploadStore) File(ctx context.Context, code, id string) (*models.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[code]
	if !ok {
		return nil, ErrBatchNotFound
	}
	file, ok := b.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return &file, nil
}

func (s *MemoryUploadStore) DeleteFile(ctx context.Context, code, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[code]
	if !ok {
		return ErrBatchNotFound
	}
	if _, ok := b.files[id]; !ok {
		return ErrFileNotFound
	}
	delete(b.files, id)
	b.order = removeString(b.order, id)
	return nil
}

func (s *MemoryUploadStore) DeleteBatch(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[code]; !ok {
		return ErrBatchNotFound
	}
	delete(s.batches, code)
	s.order = removeString(s.order, code)
	return nil
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// RedisUploadStore keeps batches in redis so the worker process can read
// what the web process received. Every key expires after ttl.
type RedisUploadStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisUploadStore(client *redis.Client, ttl time.Duration) *RedisUploadStore {
	return &RedisUploadStore{client: client, ttl: ttl}
}

const batchIndexKey = "receipt:batches"

func batchKey(code string) string      { return "receipt:batch:" + code }
func batchFilesKey(code string) string { return "receipt:batch:" + code + ":files" }
func fileKey(code, id string) string   { return "receipt:file:" + code + ":" + id }

func (s *RedisUploadStore) CreateBatch(ctx context.Context) (*models.UploadBatch, error) {
	batch := models.UploadBatch{Code: NewBatchCode(), CreatedAt: time.Now()}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, batchKey(batch.Code), map[string]interface{}{
			"code":       batch.Code,
			"created_at": batch.CreatedAt.UnixNano(),
		})
		pipe.Expire(ctx, batchKey(batch.Code), s.ttl)
		pipe.ZAdd(ctx, batchIndexKey, redis.Z{Score: float64(batch.CreatedAt.UnixNano()), Member: batch.Code})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	return &batch, nil
}

func (s *RedisUploadStore) batchExists(ctx context.Context, code string) (bool, error) {
	n, err := s.client.Exists(ctx, batchKey(code)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisUploadStore) Batches(ctx context.Context) ([]models.UploadBatch, error) {
	codes, err := s.client.ZRange(ctx, batchIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.UploadBatch, 0, len(codes))
	for _, code := range codes {
		fields, err := s.client.HGetAll(ctx, batchKey(code)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			// expired; drop it from the index
			s.client.ZRem(ctx, batchIndexKey, code)
			continue
		}
		count, err := s.client.LLen(ctx, batchFilesKey(code)).Result()
		if err != nil {
			return nil, err
		}
		nanos, _ := strconv.ParseInt(fields["created_at"], 10, 64)
		out = append(out, models.UploadBatch{
			Code:      code,
			FileCount: int(count),
			CreatedAt: time.Unix(0, nanos),
		})
	}
	return out, nil
}

func (s *RedisUploadStore) AddFile(ctx context.Context, code, name, mimeType string, data []byte) (*models.UploadedFile, error) {
	ok, err := s.batchExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchNotFound
	}

	file := models.UploadedFile{
		ID:           NewFileID(),
		OriginalName: name,
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		Buffer:       data,
		UploadedAt:   time.Now(),
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := fileKey(code, file.ID)
		pipe.HSet(ctx, key, map[string]interface{}{
			"id":            file.ID,
			"original_name": file.OriginalName,
			"mime_type":     file.MimeType,
			"size_bytes":    file.SizeBytes,
			"uploaded_at":   file.UploadedAt.UnixNano(),
			"buffer":        data,
		})
		pipe.Expire(ctx, key, s.ttl)
		pipe.RPush(ctx, batchFilesKey(code), file.ID)
		pipe.Expire(ctx, batchFilesKey(code), s.ttl)
		pipe.Expire(ctx, batchKey(code), s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	return &file, nil
}

func (s *RedisUploadStore) Files(ctx context.Context, code string) ([]models.UploadedFile, error) {
	ok, err := s.batchExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchNotFound
	}

	ids, err := s.client.LRange(ctx, batchFilesKey(code), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	files := make([]models.UploadedFile, 0, len(ids))
	for _, id := range ids {
		file, err := s.File(ctx, code, id)
		if errors.Is(err, ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, nil
}

func (s *RedisUploadStore) File(ctx context.Context, code, id string) (*models.UploadedFile, error) {
	fields, err := s.client.HGetAll(ctx, fileKey(code, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrFileNotFound
	}
	size, _ := strconv.ParseInt(fields["size_bytes"], 10, 64)
	nanos, _ := strconv.ParseInt(fields["uploaded_at"], 10, 64)
	return &models.UploadedFile{
		ID:           fields["id"],
		OriginalName: fields["original_name"],
		MimeType:     fields["mime_type"],
		SizeBytes:    size,
		Buffer:       []byte(fields["buffer"]),
		UploadedAt:   time.Unix(0, nanos),
	}, nil
}

func (s *RedisUploadStore) DeleteFile(ctx context.Context, code, id string) error {
	n, err := s.client.Del(ctx, fileKey(code, id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFileNotFound
	}
	return s.client.LRem(ctx, batchFilesKey(code), 0, id).Err()
}

func (s *RedisUploadStore) DeleteBatch(ctx context.Context, code string) error {
	ok, err := s.batchExists(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBatchNotFound
	}

	ids, err := s.client.LRange(ctx, batchFilesKey(code), 0, -1).Result()
	if err != nil {
		return err
	}
	keys := []string{batchKey(code), batchFilesKey(code)}
	for _, id := range ids {
		keys = append(keys, fileKey(code, id))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, batchIndexKey, code)
		return nil
	})
	return err
}
