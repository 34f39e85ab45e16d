package providers

import (
	"errors"

	"github.com/systmms/secretmenu/internal/bitwarden"
	"github.com/systmms/secretmenu/internal/cache"
	"github.com/systmms/secretmenu/pkg/provider"
)

// toProviderError maps backend failures onto the provider error types.
// Errors that are already provider errors pass through.
func toProviderError(providerName, key string, err error) error {
	if err == nil {
		return nil
	}

	var (
		authErr     *provider.AuthError
		notFoundErr *provider.NotFoundError
		capErr      *provider.CapabilityError
	)
	if errors.As(err, &authErr) || errors.As(err, &notFoundErr) || errors.As(err, &capErr) {
		return err
	}

	switch {
	case errors.Is(err, bitwarden.ErrNotFound), errors.Is(err, bitwarden.ErrFieldNotFound):
		return &provider.NotFoundError{Provider: providerName, Key: key, Err: err}
	case errors.Is(err, bitwarden.ErrUnlockFailed):
		return &provider.AuthError{Provider: providerName, Err: err}
	}
	return err
}

// openCache loads the item cache for a provider instance. A cache directory
// that cannot be determined disables caching.
func openCache(name string, deps Deps) *cache.Cache {
	dir := deps.CacheDir
	if dir == "" {
		var err error
		if dir, err = cache.DefaultDir(); err != nil {
			deps.Logger.Warn("%s: item cache disabled: %v", name, err)
			return nil
		}
	}
	return cache.TryLoad(
		cache.FileFor(dir, name),
		cache.WithLogger(deps.Logger.Named(name)),
		cache.WithMetrics(deps.Metrics),
	)
}
