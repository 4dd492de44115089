package llm

import (
	"context"
	"sync"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/models"
)

// Manager holds the active provider and swaps it at runtime. It satisfies
// Provider itself, so callers keep one reference across switches.
type Manager struct {
	mu      sync.RWMutex
	active  Provider
	factory *Factory
}

func NewManager(factory *Factory, initial Provider) *Manager {
	return &Manager{factory: factory, active: initial}
}

func (m *Manager) Active() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Switch builds and health checks name, and replaces the active provider
// only when both succeed.
func (m *Manager) Switch(ctx context.Context, name string) (Provider, error) {
	next, err := m.factory.Create(name)
	if err != nil {
		return nil, err
	}
	if !next.HealthCheck(ctx) {
		return nil, &ProviderError{Kind: KindNetwork, Provider: next.Name(), Message: "health check failed"}
	}

	m.mu.Lock()
	m.active = next
	m.mu.Unlock()
	return next, nil
}

// Sync switches to name when it differs from the active provider. An empty
// name keeps the current one.
func (m *Manager) Sync(ctx context.Context, name string) error {
	if name == "" || name == m.Name() {
		return nil
	}
	_, err := m.Switch(ctx, name)
	return err
}

func (m *Manager) ProcessImage(ctx context.Context, image []byte, prompt string) (*models.ReceiptRecord, error) {
	return m.Active().ProcessImage(ctx, image, prompt)
}

func (m *Manager) ProcessText(ctx context.Context, prompt string) (any, error) {
	return m.Active().ProcessText(ctx, prompt)
}

func (m *Manager) HealthCheck(ctx context.Context) bool {
	return m.Active().HealthCheck(ctx)
}

func (m *Manager) HandleError(err error) *ProviderError {
	return m.Active().HandleError(err)
}

func (m *Manager) Name() string               { return m.Active().Name() }
func (m *Manager) Model() string              { return m.Active().Model() }
func (m *Manager) Capabilities() Capabilities { return m.Active().Capabilities() }

// Factory exposes the factory for diagnostics endpoints.
func (m *Manager) Factory() *Factory {
	return m.factory
}
