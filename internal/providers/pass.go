package providers

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/systmms/secretmenu/internal/errors"
	"github.com/systmms/secretmenu/internal/logging"
	pkgexec "github.com/systmms/secretmenu/pkg/exec"
	"github.com/systmms/secretmenu/pkg/item"
	"github.com/systmms/secretmenu/pkg/provider"
)

const (
	passStoreEnv     = "PASSWORD_STORE_DIR"
	passEntrySuffix  = ".gpg"
	defaultPassStore = "~/.password-store"
)

// PassProvider implements the provider.Provider interface for pass (zx2c4).
type PassProvider struct {
	name     string
	config   PassConfig
	logger   *logging.Logger
	executor pkgexec.CommandExecutor
}

// PassConfig represents the configuration for the pass provider.
type PassConfig struct {
	// Path is the password store directory.
	Path string
	// Binary is the pass executable (default "pass").
	Binary string
}

// NewPassProviderFactory creates a pass provider factory
func NewPassProviderFactory(name string, config map[string]any, deps Deps) (provider.Provider, error) {
	var cfg PassConfig
	var err error

	if cfg.Binary, err = stringOption(config, "binary", "pass"); err != nil {
		return nil, err
	}
	if cfg.Path, err = stringOption(config, "path", os.Getenv(passStoreEnv)); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = defaultPassStore
	}
	if cfg.Path, err = expandHome(cfg.Path); err != nil {
		return nil, err
	}

	return NewPassProvider(name, cfg, deps), nil
}

// NewPassProvider creates a new pass provider.
func NewPassProvider(name string, cfg PassConfig, deps Deps) *PassProvider {
	deps = deps.withDefaults()
	if cfg.Binary == "" {
		cfg.Binary = "pass"
	}
	return &PassProvider{
		name:     name,
		config:   cfg,
		logger:   deps.Logger.Named(name),
		executor: deps.Executor,
	}
}

// Name returns the provider name.
func (p *PassProvider) Name() string {
	return p.name
}

// ListItems walks the store for encrypted entries. Only the password is
// declared: anything else would require decrypting every entry.
func (p *PassProvider) ListItems(ctx context.Context) ([]item.Item, error) {
	var items []item.Item

	err := filepath.WalkDir(p.config.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != p.config.Path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), passEntrySuffix) {
			return nil
		}

		rel, err := filepath.Rel(p.config.Path, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(strings.TrimSuffix(rel, passEntrySuffix))
		items = append(items, item.Item{
			ID:     id,
			Title:  id,
			Fields: []item.Field{item.Password},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.UserError{
			Message:    "Failed to list password store",
			Suggestion: "Initialize pass with 'pass init <gpg-key-id>' or set the provider's \"path\"",
			Details:    p.config.Path,
			Err:        err,
		}
	}

	item.SortByTitle(items)
	p.logger.Debug("Found %d entries in %s", len(items), p.config.Path)
	return items, nil
}

// ReadField decrypts the entry and returns its first line.
func (p *PassProvider) ReadField(ctx context.Context, it item.Item, field item.Field) (string, error) {
	if err := provider.CheckField(p.name, it, field); err != nil {
		return "", err
	}

	p.logger.Debug("Fetching %s from pass", it.ID)

	stdout, stderr, err := p.executePass(ctx, "show", it.ID)
	if err != nil {
		if strings.Contains(string(stderr), "not in the password store") ||
			strings.Contains(string(stdout), "not in the password store") {
			return "", &provider.NotFoundError{Provider: p.name, Key: it.ID, Err: err}
		}
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = err.Error()
		}
		return "", apperrors.ProviderError(TypePasswordStore, "show", fmt.Errorf("%s: %w", detail, err))
	}

	// pass stores the password on the first line, with optional additional data on subsequent lines
	password, _, _ := strings.Cut(string(stdout), "\n")
	return strings.TrimRight(password, "\r"), nil
}

// ListActions returns no actions.
func (p *PassProvider) ListActions(context.Context) ([]item.Action, error) {
	return []item.Action{}, nil
}

// DoAction ignores every action.
func (p *PassProvider) DoAction(context.Context, item.Action) error {
	return nil
}

// executePass runs pass against the configured store.
func (p *PassProvider) executePass(ctx context.Context, args ...string) (stdout []byte, stderr []byte, err error) {
	return p.executor.Execute(ctx, pkgexec.Command{
		Name: p.config.Binary,
		Args: args,
		Env:  []string{passStoreEnv + "=" + p.config.Path},
	})
}

var _ provider.Provider = (*PassProvider)(nil)
