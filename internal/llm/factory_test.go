package llm

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fakeConstructor(reply string) Constructor {
	return func(cfg ProviderConfig) (Provider, error) {
		if err := cfg.Validate("fake"); err != nil {
			return nil, err
		}
		return newBaseProvider(cfg.Model, cfg, Capabilities{}, &fakeBackend{reply: reply}), nil
	}
}

func testFactory() *Factory {
	registry := map[string]Constructor{
		"alpha": fakeConstructor("{}"),
		"beta":  fakeConstructor("{}"),
		"gamma": fakeConstructor("not json"),
	}
	configs := map[string]ProviderConfig{
		"alpha": {Model: "alpha-model", MaxTokens: 10}, // no key
		"beta":  {APIKey: "k", Model: "beta-model", MaxTokens: 10},
		"gamma": {APIKey: "k", Model: "gamma-model", MaxTokens: 10},
	}
	return NewFactory(registry, configs, []string{"alpha", "beta", "gamma"}, quietLogger())
}

func TestFactory_CreateUnknown(t *testing.T) {
	_, err := testFactory().Create("delta")
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, KindConfig, pe.Kind)
}

func TestFactory_CreateWithFallback(t *testing.T) {
	f := testFactory()

	_, err := f.Create("alpha")
	require.Error(t, err)

	p, err := f.CreateWithFallback("alpha")
	require.NoError(t, err)
	assert.Equal(t, "beta-model", p.Model())
}

func TestFactory_CreateWithFallback_NoneAvailable(t *testing.T) {
	f := NewFactory(map[string]Constructor{"alpha": fakeConstructor("{}")},
		map[string]ProviderConfig{"alpha": {}}, []string{"alpha"}, quietLogger())

	_, err := f.CreateWithFallback("alpha")
	pe, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, KindConfig, pe.Kind)
	assert.Contains(t, pe.Message, "alpha")
}

func TestFactory_CreateAllAndAvailable(t *testing.T) {
	f := testFactory()

	providers, errs := f.CreateAll()
	assert.Len(t, providers, 2)
	assert.Contains(t, errs, "alpha")
	assert.Equal(t, []string{"beta", "gamma"}, f.Available())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, f.Registered())
}

func TestManager_Switch(t *testing.T) {
	f := testFactory()
	initial, err := f.Create("beta")
	require.NoError(t, err)
	m := NewManager(f, initial)

	_, err = m.Switch(context.Background(), "alpha")
	require.Error(t, err)
	assert.Equal(t, "beta-model", m.Model(), "failed switch keeps the active provider")

	_, err = m.Switch(context.Background(), "gamma")
	require.NoError(t, err, "health check only needs a round trip")
	assert.Equal(t, "gamma-model", m.Model())
}

func TestManager_Sync(t *testing.T) {
	f := testFactory()
	initial, err := f.Create("beta")
	require.NoError(t, err)
	m := NewManager(f, initial)
	ctx := context.Background()

	require.NoError(t, m.Sync(ctx, ""))
	assert.Same(t, initial, m.Active(), "empty selection keeps the provider")

	require.NoError(t, m.Sync(ctx, m.Name()))
	assert.Same(t, initial, m.Active(), "same name is not rebuilt")

	require.Error(t, m.Sync(ctx, "alpha"))
	assert.Same(t, initial, m.Active())

	require.NoError(t, m.Sync(ctx, "gamma"))
	assert.Equal(t, "gamma-model", m.Model())
}
