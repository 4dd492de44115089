package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Constructor builds a provider from its configuration.
type Constructor func(cfg ProviderConfig) (Provider, error)

// DefaultRegistry lists every built-in provider.
var DefaultRegistry = map[string]Constructor{
	ProviderGemini: NewGeminiProvider,
	ProviderOpenAI: NewOpenAIProvider,
	ProviderClaude: NewClaudeProvider,
}

// Factory creates providers by name from a registry and per-name configs.
type Factory struct {
	registry      map[string]Constructor
	configs       map[string]ProviderConfig
	fallbackOrder []string
	logger        *logrus.Logger
}

func NewFactory(registry map[string]Constructor, configs map[string]ProviderConfig, fallbackOrder []string, logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Factory{
		registry:      registry,
		configs:       configs,
		fallbackOrder: fallbackOrder,
		logger:        logger,
	}
}

func (f *Factory) Create(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	ctor, ok := f.registry[name]
	if !ok {
		return nil, &ProviderError{Kind: KindConfig, Provider: name, Message: "unknown provider"}
	}
	cfg, ok := f.configs[name]
	if !ok {
		return nil, &ProviderError{Kind: KindConfig, Provider: name, Message: "provider is not configured"}
	}
	return ctor(cfg)
}

// CreateWithFallback tries name first, then every other provider in the
// fallback order. The error lists each failed attempt.
func (f *Factory) CreateWithFallback(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	tried := make(map[string]bool)
	var failures []string

	for _, candidate := range append([]string{name}, f.fallbackOrder...) {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" || tried[candidate] {
			continue
		}
		tried[candidate] = true

		p, err := f.Create(candidate)
		if err == nil {
			if candidate != name {
				f.logger.WithFields(logrus.Fields{
					"requested": name,
					"provider":  candidate,
				}).Warn("Falling back to alternate LLM provider")
			}
			return p, nil
		}
		f.logger.WithError(err).WithField("provider", candidate).Debug("Provider unavailable")
		failures = append(failures, fmt.Sprintf("%s: %v", candidate, err))
	}

	return nil, &ProviderError{
		Kind:     KindConfig,
		Provider: name,
		Message:  "no provider could be created (" + strings.Join(failures, "; ") + ")",
	}
}

// CreateAll builds every registered provider, reporting failures separately.
func (f *Factory) CreateAll() (map[string]Provider, map[string]error) {
	providers := make(map[string]Provider)
	errs := make(map[string]error)
	for name := range f.registry {
		p, err := f.Create(name)
		if err != nil {
			errs[name] = err
			continue
		}
		providers[name] = p
	}
	return providers, errs
}

// Available lists the registered names whose configuration validates.
func (f *Factory) Available() []string {
	var names []string
	for name := range f.registry {
		cfg, ok := f.configs[name]
		if !ok || cfg.Validate(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Factory) Registered() []string {
	names := make([]string, 0, len(f.registry))
	for name := range f.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
