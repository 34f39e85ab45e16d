// Package cache keeps a durable snapshot of a provider's last successful
// listing so the menu can render before the vault answers.
//
// A cache is advisory: load failures degrade to an empty list, and write
// failures leave memory ahead of disk. Each cache file belongs to exactly
// one provider.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/metrics"
	"github.com/systmms/secretmenu/pkg/item"
)

// Cache mirrors a provider's item listing in a JSON file.
type Cache struct {
	mu      sync.RWMutex
	path    string
	name    string
	items   []item.Item
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics records writes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// TryLoad reads the cache at path. A missing, unreadable or corrupt file
// yields an empty cache; the failure is logged, never returned.
func TryLoad(path string, opts ...Option) *Cache {
	c := &Cache{
		path:   path,
		name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("No cache at %s yet", path)
		} else {
			c.logger.Warn("Could not read cache %s: %v", path, err)
		}
		return c
	}

	var items []item.Item
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.Warn("Could not decode cache %s: %v", path, err)
		return c
	}

	c.items = items
	c.logger.Debug("Loaded %d cached items from %s", len(items), path)
	return c
}

// Path returns the backing file.
func (c *Cache) Path() string {
	return c.path
}

// Items returns a copy of the current list.
func (c *Cache) Items() []item.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Replace swaps the in-memory list and rewrites the file. The in-memory list
// is updated even when the write fails; the file is replaced atomically, so a
// failed write leaves the previous file intact.
func (c *Cache) Replace(items []item.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = slices.Clone(items)

	err := c.write()
	c.metrics.RecordCacheWrite(c.name, err)
	if err != nil {
		c.logger.Warn("Writing cache %s failed: %v", c.path, err)
		return err
	}
	c.logger.Debug("Cache %s updated with %d items", c.path, len(items))
	return nil
}

func (c *Cache) write() error {
	items := c.items
	if items == nil {
		items = []item.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	tmpName = ""
	return nil
}

// FileFor returns the cache path for a provider under dir.
func FileFor(dir, provider string) string {
	return filepath.Join(dir, sanitizeFilename(provider)+".json")
}

// DefaultDir returns the per-user cache directory for secretmenu.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, "secretmenu"), nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
