// Package app ties configured providers to the selection menu.
package app

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/systmms/secretmenu/internal/config"
	apperrors "github.com/systmms/secretmenu/internal/errors"
	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/providers"
	"github.com/systmms/secretmenu/internal/rofi"
	"github.com/systmms/secretmenu/pkg/item"
	"github.com/systmms/secretmenu/pkg/provider"
)

const (
	entryPrompt = "Select an entry"
	entryLines  = 15
	// rofi supports custom keys 1 through 19.
	maxBindings = 19
)

// Selector shows a menu and reports how it was closed. *rofi.Client
// satisfies it.
type Selector interface {
	Show(ctx context.Context, w rofi.Window, options []string) (rofi.Response, error)
}

// App holds the providers built from the configuration.
type App struct {
	cfg    *config.Config
	logger *logging.Logger
	ui     Selector
	out    io.Writer

	names     []string
	providers map[string]provider.Provider
	failed    map[string]error
}

// Option configures an App.
type Option func(*App)

// WithOutput sets where selected values are written (default stdout).
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		if w != nil {
			a.out = w
		}
	}
}

// New builds every configured provider in name order. A provider that
// cannot be constructed is logged and left out; the others stay usable.
func New(cfg *config.Config, registry *providers.Registry, ui Selector, deps providers.Deps, opts ...Option) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		ui:        ui,
		out:       os.Stdout,
		providers: make(map[string]provider.Provider),
		failed:    make(map[string]error),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, name := range cfg.ProviderNames() {
		p, err := registry.CreateProvider(name, cfg.Definition.Providers[name], deps)
		if err != nil {
			logger.Error("%v", err)
			a.failed[name] = err
			continue
		}
		a.providers[name] = p
		a.names = append(a.names, name)
	}
	return a
}

// Names returns the usable providers in name order.
func (a *App) Names() []string {
	return append([]string(nil), a.names...)
}

// ConstructionErrors returns the providers that failed to build.
func (a *App) ConstructionErrors() map[string]error {
	out := make(map[string]error, len(a.failed))
	for name, err := range a.failed {
		out[name] = err
	}
	return out
}

// Provider returns the named provider, or the first one by name when name
// is empty.
func (a *App) Provider(name string) (provider.Provider, error) {
	if name == "" {
		if len(a.names) == 0 {
			return nil, apperrors.UserError{
				Message:    "No usable providers configured",
				Suggestion: fmt.Sprintf("Add a provider to %s and check 'secretmenu doctor'", a.cfg.Path),
			}
		}
		return a.providers[a.names[0]], nil
	}
	if p, ok := a.providers[name]; ok {
		return p, nil
	}
	if err, ok := a.failed[name]; ok {
		return nil, err
	}
	if _, err := a.cfg.GetProvider(name); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("provider %q is not available", name)
}

// Items returns the candidates for p sorted by title: the cached listing
// when one is available, otherwise a live listing.
func (a *App) Items(ctx context.Context, p provider.Provider, refresh bool) ([]item.Item, error) {
	var items []item.Item
	if c, ok := p.(provider.Cached); ok && !refresh {
		items = c.CachedItems()
	}
	if len(items) == 0 {
		var err error
		if items, err = p.ListItems(ctx); err != nil {
			return nil, err
		}
	} else {
		a.logger.Debug("%s: using %d cached items", p.Name(), len(items))
	}
	item.SortByTitle(items)
	return items, nil
}

// Find returns the item titled title. A miss against the cached listing is
// retried against a live one.
func (a *App) Find(ctx context.Context, p provider.Provider, title string) (item.Item, error) {
	items, err := a.Items(ctx, p, false)
	if err != nil {
		return item.Item{}, err
	}
	if it, ok := findTitle(items, title); ok {
		return it, nil
	}

	if _, cached := p.(provider.Cached); cached {
		if items, err = a.Items(ctx, p, true); err != nil {
			return item.Item{}, err
		}
		if it, ok := findTitle(items, title); ok {
			return it, nil
		}
	}
	return item.Item{}, &provider.NotFoundError{Provider: p.Name(), Key: title}
}

// Get reads one field of the item titled title.
func (a *App) Get(ctx context.Context, providerName, title string, field item.Field) (string, error) {
	p, err := a.Provider(providerName)
	if err != nil {
		return "", err
	}
	it, err := a.Find(ctx, p, title)
	if err != nil {
		return "", err
	}
	return p.ReadField(ctx, it, field)
}

// Do runs the action with the given id on a provider.
func (a *App) Do(ctx context.Context, providerName, actionID string) error {
	p, err := a.Provider(providerName)
	if err != nil {
		return err
	}
	actions, err := p.ListActions(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(actions))
	for _, action := range actions {
		if action.ID == actionID {
			return p.DoAction(ctx, action)
		}
		ids = append(ids, action.ID)
	}

	suggestion := fmt.Sprintf("Provider %q offers no actions", p.Name())
	if len(ids) > 0 {
		suggestion = "Available actions: " + strings.Join(ids, ", ")
	}
	return apperrors.UserError{
		Message:    fmt.Sprintf("Provider %q does not support %q", p.Name(), actionID),
		Suggestion: suggestion,
	}
}

// binding is one custom key in the entry menu: either a provider action or
// a jump to another provider.
type binding struct {
	key    string
	label  string
	action item.Action
	target provider.Provider
}

func (a *App) bindings(current provider.Provider, actions []item.Action) []binding {
	var out []binding
	for _, action := range actions {
		if action.Key == "" {
			continue
		}
		out = append(out, binding{key: action.Key, label: action.Label, action: action})
	}
	for _, name := range a.names {
		shortcut := a.cfg.Definition.Providers[name].Shortcut
		if name == current.Name() || shortcut == "" {
			continue
		}
		out = append(out, binding{key: shortcut, label: name, target: a.providers[name]})
	}
	if len(out) > maxBindings {
		a.logger.Warn("Only the first %d key bindings are used", maxBindings)
		out = out[:maxBindings]
	}
	return out
}

func bindingsMessage(bindings []binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, fmt.Sprintf("<b>%s</b>: %s", html.EscapeString(b.key), html.EscapeString(b.label)))
	}
	return strings.Join(parts, " | ")
}

// Show runs the menu starting at the named provider (first by name when
// empty). Custom keys run provider actions or switch providers and redisplay
// the menu; choosing an entry opens its field menu and writes the chosen
// value to the output. Dismissing either menu returns nil.
func (a *App) Show(ctx context.Context, providerName string) error {
	current, err := a.Provider(providerName)
	if err != nil {
		return err
	}

	for {
		items, err := a.Items(ctx, current, false)
		if err != nil {
			return err
		}
		actions, err := current.ListActions(ctx)
		if err != nil {
			return err
		}
		bindings := a.bindings(current, actions)

		window := rofi.NewWindow(entryPrompt).
			Matching("fuzzy").
			Lines(entryLines).
			Args("-dmenu")
		for i, b := range bindings {
			window = window.CustomKey(i+1, b.key)
		}
		if msg := bindingsMessage(bindings); msg != "" {
			window = window.Message(msg)
		}

		resp, err := a.ui.Show(ctx, window, item.Titles(items))
		if err != nil {
			return err
		}

		switch resp.Kind {
		case rofi.KindCancel:
			a.logger.Debug("Menu dismissed")
			return nil

		case rofi.KindCustomKey:
			if resp.Key < 1 || resp.Key > len(bindings) {
				a.logger.Warn("Ignoring unbound custom key %d", resp.Key)
				continue
			}
			b := bindings[resp.Key-1]
			if b.target != nil {
				a.logger.Debug("Switching to provider %s", b.target.Name())
				current = b.target
				continue
			}
			a.logger.Debug("%s: running action %s", current.Name(), b.action.ID)
			if err := current.DoAction(ctx, b.action); err != nil {
				return err
			}

		case rofi.KindEntry:
			it, ok := findTitle(items, resp.Text)
			if !ok {
				return apperrors.UserError{
					Message:    fmt.Sprintf("No entry named %q", resp.Text),
					Suggestion: "Pick one of the listed entries",
				}
			}
			return a.showFields(ctx, current, it)

		default:
			return fmt.Errorf("unexpected menu response kind %d", resp.Kind)
		}
	}
}

func (a *App) showFields(ctx context.Context, p provider.Provider, it item.Item) error {
	if len(it.Fields) == 0 {
		return apperrors.UserError{
			Message:    fmt.Sprintf("%s has no retrievable fields", it.Title),
			Suggestion: "Add a login or a custom field to the entry",
		}
	}

	labels := make([]string, len(it.Fields))
	for i, f := range it.Fields {
		labels[i] = f.Label()
	}

	// Labels of custom fields may repeat a built-in label, so the choice is
	// read back by position.
	w := rofi.NewWindow(it.Title).
		Lines(len(labels)).
		Format("i").
		Args("-dmenu", "-no-custom")
	resp, err := a.ui.Show(ctx, w, labels)
	if err != nil {
		return err
	}
	choice, err := resp.Selection()
	if err != nil {
		return nil
	}

	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 0 || idx >= len(it.Fields) {
		return apperrors.UserError{Message: fmt.Sprintf("%s has no field %q", it.Title, choice)}
	}
	value, err := p.ReadField(ctx, it, it.Fields[idx])
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.out, value)
	return err
}

func findTitle(items []item.Item, title string) (item.Item, bool) {
	for _, it := range items {
		if it.Title == title {
			return it, true
		}
	}
	return item.Item{}, false
}
