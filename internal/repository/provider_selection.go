package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const activeProviderKey = "llm:active_provider"

// ProviderSelection shares the active LLM provider name between the web
// process and the worker.
type ProviderSelection interface {
	SetActiveProvider(ctx context.Context, name string) error
	ActiveProvider(ctx context.Context) (string, error)
}

type RedisProviderSelection struct {
	client *redis.Client
}

func NewRedisProviderSelection(client *redis.Client) *RedisProviderSelection {
	return &RedisProviderSelection{client: client}
}

func (s *RedisProviderSelection) SetActiveProvider(ctx context.Context, name string) error {
	return s.client.Set(ctx, activeProviderKey, name, 0).Err()
}

// ActiveProvider returns "" when no process has published a selection yet.
func (s *RedisProviderSelection) ActiveProvider(ctx context.Context) (string, error) {
	name, err := s.client.Get(ctx, activeProviderKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return name, err
}
