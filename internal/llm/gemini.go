package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type geminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiProvider builds the Gemini provider in JSON response mode.
func NewGeminiProvider(cfg ProviderConfig) (Provider, error) {
	if err := cfg.Validate(ProviderGemini); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, &ProviderError{Kind: KindConfig, Provider: ProviderGemini, Message: "failed to create client", Cause: err}
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(float32(cfg.Temperature))
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	model.ResponseMIMEType = "application/json"

	caps := Capabilities{Vision: true, JSONMode: true, Safety: true}
	return newBaseProvider(ProviderGemini, cfg, caps, &geminiBackend{client: client, model: model}), nil
}

func (b *geminiBackend) generate(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	parts := make([]genai.Part, 0, 2)
	if len(image) > 0 {
		parts = append(parts, genai.ImageData(strings.TrimPrefix(mimeType, "image/"), image))
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := b.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", &ProviderError{Kind: KindSafety, Provider: ProviderGemini, Message: "prompt blocked: " + resp.PromptFeedback.BlockReason.String()}
	}
	if len(resp.Candidates) == 0 {
		return "", &ProviderError{Kind: KindMalformed, Provider: ProviderGemini, Message: "no candidates returned"}
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", &ProviderError{Kind: KindSafety, Provider: ProviderGemini, Message: "response blocked by safety filter"}
	}
	if cand.Content == nil {
		return "", &ProviderError{Kind: KindMalformed, Provider: ProviderGemini, Message: "candidate has no content"}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (b *geminiBackend) classify(err error) *ProviderError {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ProviderError{Kind: KindSafety, Provider: ProviderGemini, Message: "content blocked", Cause: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Kind: kindForStatus(apiErr.Code), Provider: ProviderGemini, Message: "API error", StatusCode: apiErr.Code, Cause: err}
	}

	// gRPC status text, e.g. "rpc error: code = ResourceExhausted"
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resourceexhausted"):
		return &ProviderError{Kind: KindRateLimit, Provider: ProviderGemini, Message: "quota exceeded", Cause: err}
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permissiondenied"):
		return &ProviderError{Kind: KindAuthentication, Provider: ProviderGemini, Message: "authentication failed", Cause: err}
	case strings.Contains(msg, "deadlineexceeded"):
		return &ProviderError{Kind: KindNetwork, Provider: ProviderGemini, Message: "request timed out", Cause: err}
	case strings.Contains(msg, "invalidargument") || strings.Contains(msg, "notfound"):
		return &ProviderError{Kind: KindConfig, Provider: ProviderGemini, Message: "invalid request or model", Cause: err}
	}
	return nil
}
