package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/systmms/secretmenu/pkg/item"
	"github.com/systmms/secretmenu/pkg/provider"
)

// FakeProvider is a manual fake implementation of provider.Provider interface.
//
// Items and field values live in memory; errors can be injected per item or
// per listing. Every method call is counted.
//
// Example usage:
//
//	fake := fakes.NewFakeProvider("vault").
//	    WithItem(item.Item{ID: "1", Title: "github", Fields: []item.Field{item.Password}},
//	        map[item.Field]string{item.Password: "pw"}).
//	    WithAction(item.Action{ID: "sync", Label: "Sync", Key: "Alt+r"})
type FakeProvider struct {
	name string

	items   []item.Item
	values  map[string]map[item.Field]string
	actions []item.Action
	cached  []item.Item

	listErr   error
	failOn    map[string]error // item id -> error
	actionErr map[string]error // action id -> error

	callCount   map[string]int
	actionsDone []string

	mu sync.RWMutex
}

// NewFakeProvider creates a new FakeProvider with the given name.
func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{
		name:      name,
		values:    make(map[string]map[item.Field]string),
		failOn:    make(map[string]error),
		actionErr: make(map[string]error),
		callCount: make(map[string]int),
	}
}

// WithItem adds an item and the values of its declared fields.
func (f *FakeProvider) WithItem(it item.Item, values map[item.Field]string) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, it)
	f.values[it.ID] = values
	return f
}

// WithAction adds an action.
func (f *FakeProvider) WithAction(action item.Action) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.actions = append(f.actions, action)
	return f
}

// WithCached sets what CachedItems returns.
func (f *FakeProvider) WithCached(items []item.Item) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cached = items
	return f
}

// WithListError makes ListItems fail.
func (f *FakeProvider) WithListError(err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listErr = err
	return f
}

// WithError makes ReadField fail for the item with id.
func (f *FakeProvider) WithError(id string, err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failOn[id] = err
	return f
}

// WithActionError makes DoAction fail for the action with id.
func (f *FakeProvider) WithActionError(id string, err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.actionErr[id] = err
	return f
}

// Name implements provider.Provider.
func (f *FakeProvider) Name() string {
	f.trackCall("Name")
	return f.name
}

// ListItems implements provider.Provider.
func (f *FakeProvider) ListItems(ctx context.Context) ([]item.Item, error) {
	f.trackCall("ListItems")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]item.Item(nil), f.items...), nil
}

// ReadField implements provider.Provider.
func (f *FakeProvider) ReadField(ctx context.Context, it item.Item, field item.Field) (string, error) {
	f.trackCall("ReadField")

	if err := provider.CheckField(f.name, it, field); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if err, ok := f.failOn[it.ID]; ok {
		return "", err
	}
	value, ok := f.values[it.ID][field]
	if !ok {
		return "", &provider.NotFoundError{Provider: f.name, Key: it.ID}
	}
	return value, nil
}

// ListActions implements provider.Provider.
func (f *FakeProvider) ListActions(context.Context) ([]item.Action, error) {
	f.trackCall("ListActions")

	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]item.Action(nil), f.actions...), nil
}

// DoAction implements provider.Provider.
func (f *FakeProvider) DoAction(_ context.Context, action item.Action) error {
	f.trackCall("DoAction")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.actionsDone = append(f.actionsDone, action.ID)
	return f.actionErr[action.ID]
}

// CachedItems implements provider.Cached.
func (f *FakeProvider) CachedItems() []item.Item {
	f.trackCall("CachedItems")

	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]item.Item(nil), f.cached...)
}

// ActionsDone returns the IDs passed to DoAction, in order.
func (f *FakeProvider) ActionsDone() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.actionsDone...)
}

// GetCallCount returns the number of times a method was called.
func (f *FakeProvider) GetCallCount(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.callCount[method]
}

func (f *FakeProvider) trackCall(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount[method]++
}

func (f *FakeProvider) String() string {
	return fmt.Sprintf("FakeProvider{name: %s, items: %d}", f.name, len(f.items))
}

var (
	_ provider.Provider = (*FakeProvider)(nil)
	_ provider.Cached   = (*FakeProvider)(nil)
)
