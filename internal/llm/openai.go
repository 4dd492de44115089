package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type openAIBackend struct {
	client *openai.Client
	cfg    ProviderConfig
}

func NewOpenAIProvider(cfg ProviderConfig) (Provider, error) {
	if err := cfg.Validate(ProviderOpenAI); err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.timeout()}
	client := openai.NewClientWithConfig(clientCfg)

	caps := Capabilities{Vision: true, JSONMode: true, Safety: true}
	return newBaseProvider(ProviderOpenAI, cfg, caps, &openAIBackend{client: client, cfg: cfg}), nil
}

func (b *openAIBackend) generate(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(image) > 0 {
		dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh}},
		}
	} else {
		msg.Content = prompt
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.cfg.Model,
		MaxTokens:   b.cfg.MaxTokens,
		Temperature: float32(b.cfg.Temperature),
		Messages:    []openai.ChatCompletionMessage{msg},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Kind: KindMalformed, Provider: ProviderOpenAI, Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", &ProviderError{Kind: KindSafety, Provider: ProviderOpenAI, Message: "response blocked by content filter"}
	}
	if choice.Message.Refusal != "" {
		return "", &ProviderError{Kind: KindRefusal, Provider: ProviderOpenAI, Message: choice.Message.Refusal}
	}
	return choice.Message.Content, nil
}

func (b *openAIBackend) classify(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := kindForStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok {
			switch {
			case code == "insufficient_quota" || code == "rate_limit_exceeded":
				kind = KindRateLimit
			case code == "invalid_api_key":
				kind = KindAuthentication
			case code == "model_not_found":
				kind = KindConfig
			case strings.Contains(code, "content_policy") || strings.Contains(code, "content_filter"):
				kind = KindSafety
			}
		}
		return &ProviderError{Kind: kind, Provider: ProviderOpenAI, Message: apiErr.Message, StatusCode: apiErr.HTTPStatusCode, Cause: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		kind := kindForStatus(reqErr.HTTPStatusCode)
		if kind == KindUnknown {
			kind = KindNetwork
		}
		return &ProviderError{Kind: kind, Provider: ProviderOpenAI, Message: "request failed", StatusCode: reqErr.HTTPStatusCode, Cause: err}
	}
	return nil
}
