package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

type stubProvider struct {
	name   string
	checks *atomic.Int32
}

func (p *stubProvider) ProcessImage(ctx context.Context, image []byte, prompt string) (*models.ReceiptRecord, error) {
	return nil, errors.New("not used")
}
func (p *stubProvider) ProcessText(ctx context.Context, prompt string) (any, error) { return nil, nil }
func (p *stubProvider) HealthCheck(ctx context.Context) bool {
	p.checks.Add(1)
	return true
}
func (p *stubProvider) HandleError(err error) *llm.ProviderError {
	return &llm.ProviderError{Kind: llm.KindUnknown, Provider: p.name, Cause: err}
}
func (p *stubProvider) Name() string                   { return p.name }
func (p *stubProvider) Model() string                  { return p.name + "-model" }
func (p *stubProvider) Capabilities() llm.Capabilities { return llm.Capabilities{Vision: true} }

// mixedProviders registers n providers; odd ones have no API key and fail
// to build.
func mixedProviders(t *testing.T, n int) (*llm.Manager, *atomic.Int32) {
	t.Helper()
	checks := &atomic.Int32{}
	registry := make(map[string]llm.Constructor, n)
	configs := make(map[string]llm.ProviderConfig, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("p%02d", i)
		registry[name] = func(cfg llm.ProviderConfig) (llm.Provider, error) {
			if cfg.APIKey == "" {
				return nil, &llm.ProviderError{Kind: llm.KindConfig, Provider: name, Message: "API key is required"}
			}
			return &stubProvider{name: name, checks: checks}, nil
		}
		cfg := llm.ProviderConfig{Model: name + "-model", MaxTokens: 10}
		if i%2 == 0 {
			cfg.APIKey = "k"
		}
		configs[name] = cfg
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	factory := llm.NewFactory(registry, configs, nil, logger)
	initial, err := factory.Create("p00")
	require.NoError(t, err)
	return llm.NewManager(factory, initial), checks
}

func TestProviderHandler_GetHealthMixedProviders(t *testing.T) {
	const n = 20
	manager, checks := mixedProviders(t, n)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := NewProviderHandler(manager, nil, logger)

	app := fiber.New()
	app.Get("/providers/health", h.GetHealth)

	for round := 1; round <= 5; round++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/providers/health", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Data []providerInfo `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		require.Len(t, body.Data, n)
		for i, info := range body.Data {
			assert.Equal(t, fmt.Sprintf("p%02d", i), info.Name)
			if i%2 == 0 {
				assert.True(t, info.Configured, info.Name)
				require.NotNil(t, info.Healthy, info.Name)
				assert.True(t, *info.Healthy)
			} else {
				assert.False(t, info.Configured, info.Name)
				assert.Nil(t, info.Healthy, info.Name)
				assert.Contains(t, info.Error, "API key")
			}
		}
		assert.Equal(t, int32(round*n/2), checks.Load())
	}
}

func TestProviderHandler_GetProvidersSkipsHealthChecks(t *testing.T) {
	manager, checks := mixedProviders(t, 4)
	h := NewProviderHandler(manager, nil, logrus.New())

	app := fiber.New()
	app.Get("/providers", h.GetProviders)

	resp, err := app.Test(httptest.NewRequest("GET", "/providers", nil), -1)
	require.NoError(t, err)
	var body struct {
		Data []providerInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Data, 4)
	assert.True(t, body.Data[0].Active)
	assert.Nil(t, body.Data[0].Healthy)
	assert.Equal(t, int32(0), checks.Load())
}

type recordingSelection struct{ names []string }

func (s *recordingSelection) SetActiveProvider(ctx context.Context, name string) error {
	s.names = append(s.names, name)
	return nil
}
func (s *recordingSelection) ActiveProvider(ctx context.Context) (string, error) {
	if len(s.names) == 0 {
		return "", nil
	}
	return s.names[len(s.names)-1], nil
}

func TestProviderHandler_SwitchPublishesSelection(t *testing.T) {
	manager, _ := mixedProviders(t, 4)
	selection := &recordingSelection{}
	h := NewProviderHandler(manager, selection, logrus.New())

	app := fiber.New()
	app.Post("/providers/switch", h.Switch)
	post := func(body string) int {
		req := httptest.NewRequest("POST", "/providers/switch", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, post(`{"provider":"p02"}`))
	assert.Equal(t, []string{"p02"}, selection.names)
	assert.Equal(t, "p02", manager.Name())

	assert.NotEqual(t, fiber.StatusOK, post(`{"provider":"p01"}`), "unconfigured provider")
	assert.Equal(t, []string{"p02"}, selection.names, "failed switch is not published")
}
