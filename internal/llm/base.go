package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

const healthCheckTimeout = 15 * time.Second

// backend is the SDK-specific part of a provider: one round trip returning
// the model's text, and mapping of that SDK's errors.
type backend interface {
	generate(ctx context.Context, image []byte, mimeType string, prompt string) (string, error)
	classify(err error) *ProviderError
}

// baseProvider implements Provider on top of a backend so every SDK shares
// the same normalization path.
type baseProvider struct {
	name    string
	cfg     ProviderConfig
	caps    Capabilities
	backend backend
}

func newBaseProvider(name string, cfg ProviderConfig, caps Capabilities, b backend) *baseProvider {
	return &baseProvider{name: name, cfg: cfg, caps: caps, backend: b}
}

func (p *baseProvider) Name() string               { return p.name }
func (p *baseProvider) Model() string              { return p.cfg.Model }
func (p *baseProvider) Capabilities() Capabilities { return p.caps }

func (p *baseProvider) ProcessImage(ctx context.Context, image []byte, prompt string) (*models.ReceiptRecord, error) {
	if len(image) == 0 {
		return nil, &ProviderError{Kind: KindMalformed, Provider: p.name, Message: "image is empty"}
	}
	if prompt == "" {
		prompt = ReceiptPrompt()
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout())
	defer cancel()

	raw, err := p.backend.generate(ctx, image, DetectImageType(image), prompt)
	if err != nil {
		return nil, p.HandleError(err)
	}

	obj, err := NormalizeResponse(raw)
	if err != nil {
		return nil, p.HandleError(err)
	}
	receipt, err := ParseReceipt(obj)
	if err != nil {
		return nil, p.HandleError(err)
	}
	return receipt, nil
}

func (p *baseProvider) ProcessText(ctx context.Context, prompt string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout())
	defer cancel()

	raw, err := p.backend.generate(ctx, nil, "", prompt)
	if err != nil {
		return nil, p.HandleError(err)
	}
	obj, err := NormalizeResponse(raw)
	if err != nil {
		return nil, p.HandleError(err)
	}
	return obj, nil
}

func (p *baseProvider) HealthCheck(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	_, err := p.backend.generate(ctx, nil, "", healthPrompt)
	return err == nil
}

// HandleError maps any error from this provider into the taxonomy and tags
// it with the provider name.
func (p *baseProvider) HandleError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	pe, ok := AsProviderError(err)
	if !ok {
		pe = p.backend.classify(err)
	}
	if pe == nil {
		pe = classifyGeneric(p.name, err)
	}
	if pe.Provider == "" {
		pe.Provider = p.name
	}
	return pe
}

func (p *baseProvider) String() string {
	return fmt.Sprintf("%s(%s)", p.name, p.cfg.Model)
}

// DetectImageType sniffs the image MIME type, defaulting to JPEG.
func DetectImageType(image []byte) string {
	if ct, ok := SniffImageType(image); ok {
		return ct
	}
	return "image/jpeg"
}

// SniffImageType reports the image type of the bytes, or false when they are
// not an image every provider accepts.
func SniffImageType(image []byte) (string, bool) {
	switch ct := http.DetectContentType(image); ct {
	case "image/png", "image/gif", "image/webp", "image/jpeg":
		return ct, true
	}
	return "", false
}
