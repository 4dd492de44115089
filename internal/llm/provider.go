// Package llm wraps the vision-capable model APIs behind one Provider
// interface and normalizes their replies into models.ReceiptRecord.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Provider is the capability every backend exposes.
type Provider interface {
	// ProcessImage extracts one receipt from an image. It fails with a
	// *ProviderError when the reply cannot be normalized or the backend
	// refused, blocked, or throttled the request.
	ProcessImage(ctx context.Context, image []byte, prompt string) (*models.ReceiptRecord, error)
	ProcessText(ctx context.Context, prompt string) (any, error)
	// HealthCheck reports reachability and never returns an error.
	HealthCheck(ctx context.Context) bool
	HandleError(err error) *ProviderError
	Name() string
	Model() string
	Capabilities() Capabilities
}

type Capabilities struct {
	Vision   bool `json:"vision"`
	JSONMode bool `json:"json_mode"`
	Safety   bool `json:"safety_filter"`
}

// ProviderConfig is read from the environment once per provider name.
type ProviderConfig struct {
	APIKey      string        `json:"-"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
}

func (c ProviderConfig) Validate(name string) error {
	if c.APIKey == "" {
		return &ProviderError{Kind: KindConfig, Provider: name, Message: "API key is not set"}
	}
	if c.Model == "" {
		return &ProviderError{Kind: KindConfig, Provider: name, Message: "model is not set"}
	}
	if c.MaxTokens <= 0 {
		return &ProviderError{Kind: KindConfig, Provider: name, Message: fmt.Sprintf("invalid max tokens %d", c.MaxTokens)}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &ProviderError{Kind: KindConfig, Provider: name, Message: fmt.Sprintf("invalid temperature %.2f", c.Temperature)}
	}
	return nil
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.Timeout
}
