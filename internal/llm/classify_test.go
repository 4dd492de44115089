package llm

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type classifyCase struct {
	name      string
	err       error
	kind      ErrorKind
	retryable bool
}

func runClassifyCases(t *testing.T, provider string, b backend, cases []classifyCase) {
	t.Helper()
	p := newBaseProvider(provider, testConfig(), Capabilities{Vision: true}, b)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pe := p.HandleError(tc.err)
			require.NotNil(t, pe)
			assert.Equal(t, tc.kind, pe.Kind)
			assert.Equal(t, tc.retryable, pe.Retryable())
			assert.Equal(t, provider, pe.Provider)
			assert.ErrorIs(t, pe, tc.err)
		})
	}
}

func TestOpenAIBackend_Classify(t *testing.T) {
	runClassifyCases(t, ProviderOpenAI, &openAIBackend{}, []classifyCase{
		{"insufficient quota", &openai.APIError{HTTPStatusCode: 429, Code: "insufficient_quota", Message: "quota"}, KindRateLimit, true},
		{"quota code on 400", &openai.APIError{HTTPStatusCode: 400, Code: "rate_limit_exceeded"}, KindRateLimit, true},
		{"invalid api key", &openai.APIError{HTTPStatusCode: 401, Code: "invalid_api_key"}, KindAuthentication, false},
		{"model not found", &openai.APIError{HTTPStatusCode: 404, Code: "model_not_found"}, KindConfig, false},
		{"content filter", &openai.APIError{HTTPStatusCode: 400, Code: "content_filter"}, KindSafety, false},
		{"content policy violation", &openai.APIError{HTTPStatusCode: 400, Code: "content_policy_violation"}, KindSafety, false},
		{"server error without code", &openai.APIError{HTTPStatusCode: 500}, KindNetwork, true},
		{"numeric code falls back to status", &openai.APIError{HTTPStatusCode: 403, Code: 403}, KindAuthentication, false},
		{"request error 503", &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("bad gateway")}, KindNetwork, true},
		{"request error without status", &openai.RequestError{Err: errors.New("eof")}, KindNetwork, true},
		{"wrapped api error", fmt.Errorf("chat: %w", &openai.APIError{HTTPStatusCode: 429}), KindRateLimit, true},
	})
}

func TestGeminiBackend_Classify(t *testing.T) {
	runClassifyCases(t, ProviderGemini, &geminiBackend{}, []classifyCase{
		{"blocked candidate", &genai.BlockedError{Candidate: &genai.Candidate{FinishReason: genai.FinishReasonSafety}}, KindSafety, false},
		{"blocked prompt", &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{}}, KindSafety, false},
		{"googleapi 403", &googleapi.Error{Code: 403, Message: "permission denied"}, KindAuthentication, false},
		{"googleapi 429", &googleapi.Error{Code: 429}, KindRateLimit, true},
		{"googleapi 503", &googleapi.Error{Code: 503}, KindNetwork, true},
		{"googleapi 400", &googleapi.Error{Code: 400}, KindConfig, false},
		{"grpc resource exhausted", errors.New("rpc error: code = ResourceExhausted desc = quota"), KindRateLimit, true},
		{"grpc unauthenticated", errors.New("rpc error: code = Unauthenticated desc = bad key"), KindAuthentication, false},
		{"grpc deadline", errors.New("rpc error: code = DeadlineExceeded desc = slow"), KindNetwork, true},
		{"grpc invalid argument", errors.New("rpc error: code = InvalidArgument desc = model"), KindConfig, false},
	})
}

func anthropicError(status int) *anthropic.Error {
	return &anthropic.Error{
		StatusCode: status,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil),
		Response:   &http.Response{StatusCode: status},
	}
}

func TestClaudeBackend_Classify(t *testing.T) {
	runClassifyCases(t, ProviderClaude, &claudeBackend{}, []classifyCase{
		{"overloaded 529", anthropicError(529), KindNetwork, true},
		{"rate limited", anthropicError(429), KindRateLimit, true},
		{"unauthorized", anthropicError(401), KindAuthentication, false},
		{"bad request", anthropicError(400), KindConfig, false},
		{"server error", anthropicError(500), KindNetwork, true},
	})
}

func TestHandleError_FallsBackToGeneric(t *testing.T) {
	p := newBaseProvider(ProviderClaude, testConfig(), Capabilities{}, &claudeBackend{})

	pe := p.HandleError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, KindNetwork, pe.Kind)
	assert.True(t, pe.Retryable())

	pe = p.HandleError(errors.New("something odd"))
	assert.Equal(t, KindUnknown, pe.Kind)
	assert.False(t, pe.Retryable())
	assert.Equal(t, ProviderClaude, pe.Provider)
}
