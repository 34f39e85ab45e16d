package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/systmms/secretmenu/internal/bitwarden"
	"github.com/systmms/secretmenu/internal/cache"
	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/pkg/item"
	"github.com/systmms/secretmenu/pkg/provider"
)

// Defaults for the credential store entry holding the session token.
const (
	DefaultSessionService = "secretmenu"
	DefaultSessionAccount = "BW_SESSION"
)

// Bitwarden action IDs.
const (
	ActionSync = "sync"
	ActionLock = "lock"
)

// BitwardenConfig holds configuration for the Bitwarden provider
type BitwardenConfig struct {
	// Cache keeps the last listing on disk so menus open without unlocking.
	Cache bool
	// Binary is the bw executable (default "bw").
	Binary string
	// Service and Account name the credential store entry for the token.
	Service string
	Account string
}

// BitwardenProvider implements the provider interface for Bitwarden
type BitwardenProvider struct {
	name     string
	config   BitwardenConfig
	client   *bitwarden.Client
	acquirer *SessionAcquirer
	cache    *cache.Cache
	logger   *logging.Logger

	// session is established on first use and dropped once invalid.
	session *bitwarden.Session
}

// NewBitwardenProviderFactory creates a Bitwarden provider factory
func NewBitwardenProviderFactory(name string, config map[string]any, deps Deps) (provider.Provider, error) {
	var cfg BitwardenConfig
	var err error

	if cfg.Cache, err = boolOption(config, "cache", true); err != nil {
		return nil, err
	}
	if cfg.Binary, err = stringOption(config, "binary", bitwarden.DefaultBinary); err != nil {
		return nil, err
	}
	if cfg.Service, err = stringOption(config, "service", DefaultSessionService); err != nil {
		return nil, err
	}
	if cfg.Account, err = stringOption(config, "account", DefaultSessionAccount); err != nil {
		return nil, err
	}

	return NewBitwardenProvider(name, cfg, deps), nil
}

// NewBitwardenProvider creates a new Bitwarden provider. No subprocess is
// started until the first listing or read.
func NewBitwardenProvider(name string, cfg BitwardenConfig, deps Deps) *BitwardenProvider {
	deps = deps.withDefaults()
	logger := deps.Logger.Named(name)

	if cfg.Service == "" {
		cfg.Service = DefaultSessionService
	}
	if cfg.Account == "" {
		cfg.Account = DefaultSessionAccount
	}

	client := bitwarden.NewClient(
		bitwarden.WithBinary(cfg.Binary),
		bitwarden.WithExecutor(deps.Executor),
		bitwarden.WithLogger(logger),
		bitwarden.WithMetrics(deps.Metrics),
	)

	bw := &BitwardenProvider{
		name:   name,
		config: cfg,
		client: client,
		logger: logger,
		acquirer: &SessionAcquirer{
			Provider: name,
			Client:   client,
			Store:    deps.Store,
			Service:  cfg.Service,
			Account:  cfg.Account,
			Prompter: deps.Prompter,
			Logger:   logger,
			Metrics:  deps.Metrics,
		},
	}

	if cfg.Cache {
		bw.cache = openCache(name, deps)
	}
	return bw
}

// Name returns the provider name
func (bw *BitwardenProvider) Name() string {
	return bw.name
}

// CachedItems returns the last cached listing, or nil.
func (bw *BitwardenProvider) CachedItems() []item.Item {
	if bw.cache == nil || bw.cache.Len() == 0 {
		return nil
	}
	return bw.cache.Items()
}

// getSession returns the current session, acquiring one on first use.
func (bw *BitwardenProvider) getSession(ctx context.Context) (*bitwarden.Session, error) {
	if bw.session != nil && bw.session.State() != bitwarden.StateInvalid {
		return bw.session, nil
	}
	bw.dropSession()

	session, err := bw.acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	bw.session = session
	return session, nil
}

func (bw *BitwardenProvider) dropSession() {
	if bw.session != nil {
		bw.session.Close()
		bw.session = nil
	}
}

// withSession runs fn with a session. A session the vault can no longer
// decrypt with is discarded together with its stored token, and fn is
// retried once on a freshly acquired one.
func (bw *BitwardenProvider) withSession(ctx context.Context, fn func(*bitwarden.Session) error) error {
	session, err := bw.getSession(ctx)
	if err != nil {
		return err
	}

	err = fn(session)
	if !errors.Is(err, bitwarden.ErrDecryptionFailed) {
		return err
	}

	bw.logger.Warn("Session was rejected by the vault, unlocking again")
	bw.dropSession()
	bw.acquirer.Forget()

	session, err = bw.getSession(ctx)
	if err != nil {
		return err
	}
	return fn(session)
}

// ListItems lists every vault item with its folder path as title prefix.
func (bw *BitwardenProvider) ListItems(ctx context.Context) ([]item.Item, error) {
	var (
		folders []bitwarden.Folder
		entries []bitwarden.Item
	)
	err := bw.withSession(ctx, func(s *bitwarden.Session) error {
		var err error
		if folders, err = s.ListFolders(ctx); err != nil {
			return err
		}
		entries, err = s.ListItems(ctx)
		return err
	})
	if err != nil {
		return nil, toProviderError(bw.name, "", err)
	}

	items := buildItems(folders, entries)

	if bw.cache != nil {
		// Errors are logged by the cache; the listing is still good.
		_ = bw.cache.Replace(items)
	}
	return items, nil
}

// buildItems converts vault records to menu items.
func buildItems(folders []bitwarden.Folder, entries []bitwarden.Item) []item.Item {
	folderNames := make(map[string]string, len(folders))
	for _, f := range folders {
		if f.ID != nil {
			folderNames[*f.ID] = f.Name
		}
	}

	items := make([]item.Item, 0, len(entries))
	for _, e := range entries {
		var path []string
		if e.FolderID != nil {
			if name, ok := folderNames[*e.FolderID]; ok {
				path = strings.Split(name, "/")
			}
		}
		path = append(path, e.Name)

		items = append(items, item.Item{
			ID:     e.ID,
			Title:  strings.Join(path, "/"),
			Fields: declaredFields(e),
		})
	}
	return items
}

func declaredFields(e bitwarden.Item) []item.Field {
	var fields []item.Field
	if login := e.Login; login != nil {
		if login.Username != nil {
			fields = append(fields, item.Username)
		}
		if login.Password != nil {
			fields = append(fields, item.Password)
		}
		if login.Totp != nil {
			fields = append(fields, item.Totp)
		}
	}
	for _, f := range e.Fields {
		other := item.Other(f.Name)
		if f.Name == "" || containsField(fields, other) {
			continue
		}
		fields = append(fields, other)
	}
	return fields
}

func containsField(fields []item.Field, f item.Field) bool {
	for _, existing := range fields {
		if existing == f {
			return true
		}
	}
	return false
}

// ReadField reads one field of it from the vault.
func (bw *BitwardenProvider) ReadField(ctx context.Context, it item.Item, field item.Field) (string, error) {
	if err := provider.CheckField(bw.name, it, field); err != nil {
		return "", err
	}

	var value string
	err := bw.withSession(ctx, func(s *bitwarden.Session) error {
		var err error
		value, err = s.ReadField(ctx, it.ID, field)
		return err
	})
	if err != nil {
		return "", toProviderError(bw.name, it.Title, err)
	}

	bw.logger.Debug("Read %s of %s: %s", field, it.Title, logging.Secret(value))
	return value, nil
}

// ListActions returns the vault actions bound in the menu.
func (bw *BitwardenProvider) ListActions(context.Context) ([]item.Action, error) {
	return []item.Action{
		{ID: ActionSync, Label: "Sync vault", Key: "Alt+r"},
		{ID: ActionLock, Label: "Lock vault", Key: "Alt+l"},
	}, nil
}

// DoAction runs sync or lock. Other actions are ignored.
func (bw *BitwardenProvider) DoAction(ctx context.Context, action item.Action) error {
	switch action.ID {
	case ActionSync:
		return bw.sync(ctx)
	case ActionLock:
		return bw.lock(ctx)
	default:
		bw.logger.Debug("Ignoring unknown action %q", action.ID)
		return nil
	}
}

// sync pulls the vault from the server and refreshes the cached listing.
// A failed sync leaves the cache untouched.
func (bw *BitwardenProvider) sync(ctx context.Context) error {
	err := bw.withSession(ctx, func(s *bitwarden.Session) error {
		return s.Sync(ctx)
	})
	if err != nil {
		return toProviderError(bw.name, "", err)
	}
	bw.logger.Info("Vault synced")

	_, err = bw.ListItems(ctx)
	return err
}

// lock locks the vault with whatever session is at hand and forgets the
// stored token. It never prompts.
func (bw *BitwardenProvider) lock(ctx context.Context) error {
	session := bw.session
	if session == nil {
		session = bw.acquirer.Stored()
	}

	if session != nil {
		if err := session.Lock(ctx); err != nil {
			if session != bw.session {
				session.Close()
			}
			return toProviderError(bw.name, "", err)
		}
		if session != bw.session {
			session.Close()
		}
	}

	bw.acquirer.Forget()
	bw.dropSession()
	bw.logger.Info("Vault locked")
	return nil
}

var (
	_ provider.Provider = (*BitwardenProvider)(nil)
	_ provider.Cached   = (*BitwardenProvider)(nil)
)
