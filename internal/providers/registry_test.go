package providers_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretmenu/internal/config"
	"github.com/systmms/secretmenu/internal/credstore"
	"github.com/systmms/secretmenu/internal/providers"
	"github.com/systmms/secretmenu/pkg/provider"
	"github.com/systmms/secretmenu/tests/fakes"
)

func configOf(typ string, cfg map[string]any) config.ProviderConfig {
	return config.ProviderConfig{Type: typ, Config: cfg}
}

func assertAs[T error](err error, target *T) bool {
	return errors.As(err, target)
}

func TestRegistrySupportedTypes(t *testing.T) {
	t.Parallel()

	registry := providers.NewRegistry()
	assert.Equal(t, []string{"bitwarden", "pass", "password_store", "terraform"}, registry.GetSupportedTypes())
	assert.True(t, registry.IsSupported("bitwarden"))
	assert.False(t, registry.IsSupported("keyhub"))
}

func TestRegistryUnknownType(t *testing.T) {
	t.Parallel()

	_, err := providers.NewRegistry().CreateProvider("x", configOf("keyhub", nil), providers.Deps{})

	var constructionErr *provider.ConstructionError
	require.ErrorAs(t, err, &constructionErr)
	assert.Equal(t, "x", constructionErr.Provider)
	assert.Equal(t, "keyhub", constructionErr.Type)
}

func TestRegistryBitwardenOptions(t *testing.T) {
	t.Parallel()

	deps := providers.Deps{
		Store:    credstore.NewMemory(),
		Prompter: fakes.NewFakePrompter(),
		CacheDir: t.TempDir(),
	}

	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{name: "defaults", config: nil},
		{name: "all options", config: map[string]any{"cache": false, "binary": "/usr/bin/bw", "service": "svc", "account": "acct"}},
		{name: "cache not bool", config: map[string]any{"cache": "yes"}, wantErr: true},
		{name: "binary not string", config: map[string]any{"binary": 7}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := providers.NewRegistry().CreateProvider("vault", configOf(providers.TypeBitwarden, tt.config), deps)
			if tt.wantErr {
				var constructionErr *provider.ConstructionError
				require.ErrorAs(t, err, &constructionErr)
				assert.Equal(t, "bitwarden", constructionErr.Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "vault", p.Name())

			_, cached := p.(provider.Cached)
			assert.True(t, cached)
		})
	}
}

func TestRegistryCustomFactory(t *testing.T) {
	t.Parallel()

	registry := providers.NewRegistry()
	registry.RegisterFactory("fake", func(name string, _ map[string]any, _ providers.Deps) (provider.Provider, error) {
		return fakes.NewFakeProvider(name), nil
	})

	p, err := registry.CreateProvider("f", configOf("fake", nil), providers.Deps{})
	require.NoError(t, err)
	assert.Equal(t, "f", p.Name())
}
