package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type claudeBackend struct {
	client anthropic.Client
	cfg    ProviderConfig
}

func NewClaudeProvider(cfg ProviderConfig) (Provider, error) {
	if err := cfg.Validate(ProviderClaude); err != nil {
		return nil, err
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.timeout()),
		option.WithMaxRetries(0),
	)

	caps := Capabilities{Vision: true, JSONMode: false, Safety: true}
	return newBaseProvider(ProviderClaude, cfg, caps, &claudeBackend{client: client, cfg: cfg}), nil
}

func (b *claudeBackend) generate(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if len(image) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	message, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(b.cfg.Model),
		MaxTokens:   int64(b.cfg.MaxTokens),
		Temperature: anthropic.Float(b.cfg.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", err
	}

	if string(message.StopReason) == "refusal" {
		return "", &ProviderError{Kind: KindRefusal, Provider: ProviderClaude, Message: "model declined the request"}
	}
	if len(message.Content) == 0 {
		return "", &ProviderError{Kind: KindMalformed, Provider: ProviderClaude, Message: "empty response"}
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (b *claudeBackend) classify(err error) *ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind := kindForStatus(apiErr.StatusCode)
		return &ProviderError{Kind: kind, Provider: ProviderClaude, Message: "API error", StatusCode: apiErr.StatusCode, Cause: err}
	}
	return nil
}
