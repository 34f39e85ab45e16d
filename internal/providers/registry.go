package providers

import (
	"errors"
	"sort"

	"github.com/systmms/secretmenu/internal/config"
	"github.com/systmms/secretmenu/internal/credstore"
	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/metrics"
	pkgexec "github.com/systmms/secretmenu/pkg/exec"
	"github.com/systmms/secretmenu/pkg/provider"
)

// Built-in provider types.
const (
	TypeBitwarden     = "bitwarden"
	TypePasswordStore = "password_store"
	TypePass          = "pass"
	TypeTerraform     = "terraform"
)

// Deps carries the collaborators a provider needs beyond its own
// configuration. Zero values are replaced by production defaults.
type Deps struct {
	Logger   *logging.Logger
	Store    credstore.Store
	Prompter provider.Prompter
	// CacheDir holds item cache files; empty means the user cache directory.
	CacheDir string
	Executor pkgexec.CommandExecutor
	Metrics  *metrics.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Store == nil {
		d.Store = credstore.NewKeyring()
	}
	if d.Executor == nil {
		d.Executor = pkgexec.DefaultExecutor()
	}
	return d
}

// Registry manages provider creation and registration
type Registry struct {
	factories map[string]ProviderFactory
}

// ProviderFactory creates a provider instance from configuration
type ProviderFactory func(name string, config map[string]any, deps Deps) (provider.Provider, error)

// NewRegistry creates a new provider registry with built-in providers
func NewRegistry() *Registry {
	registry := &Registry{
		factories: make(map[string]ProviderFactory),
	}

	registry.RegisterFactory(TypeBitwarden, NewBitwardenProviderFactory)
	registry.RegisterFactory(TypePasswordStore, NewPassProviderFactory)
	registry.RegisterFactory(TypePass, NewPassProviderFactory)
	registry.RegisterFactory(TypeTerraform, NewTerraformProviderFactory)

	return registry
}

// RegisterFactory registers a provider factory for a given type
func (r *Registry) RegisterFactory(providerType string, factory ProviderFactory) {
	r.factories[providerType] = factory
}

// CreateProvider creates a provider instance from configuration. Every
// failure is reported as a *provider.ConstructionError.
func (r *Registry) CreateProvider(name string, cfg config.ProviderConfig, deps Deps) (provider.Provider, error) {
	factory, exists := r.factories[cfg.Type]
	if !exists {
		return nil, &provider.ConstructionError{
			Provider: name,
			Type:     cfg.Type,
			Message:  "unknown provider type",
		}
	}

	p, err := factory(name, cfg.Config, deps.withDefaults())
	if err != nil {
		var constructionErr *provider.ConstructionError
		if errors.As(err, &constructionErr) {
			return nil, err
		}
		return nil, &provider.ConstructionError{Provider: name, Type: cfg.Type, Err: err}
	}
	return p, nil
}

// GetSupportedTypes returns the supported provider types in sorted order
func (r *Registry) GetSupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for providerType := range r.factories {
		types = append(types, providerType)
	}
	sort.Strings(types)
	return types
}

// IsSupported checks if a provider type is supported
func (r *Registry) IsSupported(providerType string) bool {
	_, exists := r.factories[providerType]
	return exists
}
