package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind is the provider error taxonomy.
type ErrorKind string

const (
	KindConfig         ErrorKind = "config"
	KindAuthentication ErrorKind = "authentication"
	KindRateLimit      ErrorKind = "rate_limit"
	KindNetwork        ErrorKind = "network"
	KindSafety         ErrorKind = "safety"
	KindRefusal        ErrorKind = "refusal"
	KindMalformed      ErrorKind = "malformed"
	KindUnknown        ErrorKind = "unknown"
)

var userMessages = map[ErrorKind]string{
	KindConfig:         "AIプロバイダの設定が不正です。APIキーとモデル名を確認してください。",
	KindAuthentication: "AIプロバイダの認証に失敗しました。APIキーを確認してください。",
	KindRateLimit:      "AIプロバイダの利用上限に達しました。しばらく待ってから再実行してください。",
	KindNetwork:        "AIプロバイダに接続できませんでした。通信状態を確認して再実行してください。",
	KindSafety:         "画像が安全性フィルタによりブロックされました。",
	KindRefusal:        "AIが画像の読み取りを拒否しました。領収書の画像か確認してください。",
	KindMalformed:      "AIの応答を領収書データとして解釈できませんでした。",
	KindUnknown:        "AIプロバイダで不明なエラーが発生しました。",
}

// ProviderError is the structured error every provider returns.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	Message    string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable is true only for rate limits and network failures.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindNetwork
}

func (e *ProviderError) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return userMessages[KindUnknown]
}

// AsProviderError unwraps err into a *ProviderError if it carries one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether a caller-level retry makes sense for err.
func IsRetryable(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Retryable()
	}
	return false
}

// kindForStatus maps an HTTP status to the taxonomy.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuthentication
	case status == 429:
		return KindRateLimit
	case status == 408 || status == 502 || status == 503 || status == 504 || status == 529:
		return KindNetwork
	case status >= 500:
		return KindNetwork
	case status == 400 || status == 404 || status == 422:
		return KindConfig
	}
	return KindUnknown
}

// classifyGeneric handles what every SDK shares: context deadlines, net
// errors, and status text embedded in the message.
func classifyGeneric(provider string, err error) *ProviderError {
	if pe, ok := AsProviderError(err); ok {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ProviderError{Kind: KindNetwork, Provider: provider, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Kind: KindNetwork, Provider: provider, Message: "network error", Cause: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission"):
		return &ProviderError{Kind: KindAuthentication, Provider: provider, Message: "authentication failed", Cause: err}
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "429"):
		return &ProviderError{Kind: KindRateLimit, Provider: provider, Message: "rate limited", Cause: err}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable"):
		return &ProviderError{Kind: KindNetwork, Provider: provider, Message: "network error", Cause: err}
	}
	return &ProviderError{Kind: KindUnknown, Provider: provider, Message: "request failed", Cause: err}
}
