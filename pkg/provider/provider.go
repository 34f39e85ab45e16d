package provider

import (
	"context"
	"fmt"

	"github.com/systmms/secretmenu/internal/secure"
	"github.com/systmms/secretmenu/pkg/item"
)

// Provider is the uniform facade over one credential backend.
//
// A Provider lists the items its backend holds and reads individual field
// values on demand. Listing never returns secret values; an Item only
// declares which fields can be read.
//
// Implementations are used from a single goroutine. They may hold lazily
// established state (a vault session, for example) and are not required to
// be safe for concurrent use.
//
// Example usage:
//
//	items, err := p.ListItems(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, it := range items {
//	    if it.HasField(item.Password) {
//	        pw, err := p.ReadField(ctx, it, item.Password)
//	        ...
//	    }
//	}
type Provider interface {
	// Name returns the configured instance name (the key under "providers"
	// in the configuration file), used in logs, cache file names and menus.
	Name() string

	// ListItems returns every item the backend currently holds.
	//
	// Providers that own an item cache refresh it with the result. A failed
	// listing leaves any cache untouched.
	ListItems(ctx context.Context) ([]item.Item, error)

	// ReadField returns the plaintext value of field on it.
	//
	// Implementations must return a *CapabilityError before touching the
	// backend when field was not declared on it.
	ReadField(ctx context.Context, it item.Item, field item.Field) (string, error)

	// ListActions returns the provider-specific operations offered in menus.
	// Providers without actions return an empty slice.
	ListActions(ctx context.Context) ([]item.Action, error)

	// DoAction runs one of the actions returned by ListActions. Unknown
	// actions are ignored.
	DoAction(ctx context.Context, action item.Action) error
}

// Cached is implemented by providers that keep a durable item cache, so a
// menu can be shown before the backend is reachable.
type Cached interface {
	// CachedItems returns the items from the last successful listing, or
	// nil when nothing was cached.
	CachedItems() []item.Item
}

// Prompter asks the user for a secret. The returned buffer is owned by the
// caller, who must Destroy it.
type Prompter interface {
	PromptPassword(ctx context.Context, prompt string) (*secure.SecureBuffer, error)
}

// CapabilityError reports a read of a field the item never declared.
type CapabilityError struct {
	Provider string
	Item     string
	Field    item.Field
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: item %q does not declare field %s", e.Provider, e.Item, e.Field)
}

// Unwrap lets callers match item.ErrFieldNotDeclared.
func (e *CapabilityError) Unwrap() error {
	return item.ErrFieldNotDeclared
}

// CheckField returns a *CapabilityError unless field is declared on it.
func CheckField(providerName string, it item.Item, field item.Field) error {
	if it.HasField(field) {
		return nil
	}
	return &CapabilityError{Provider: providerName, Item: it.Title, Field: field}
}

// NotFoundError reports an item or field missing from the backend.
type NotFoundError struct {
	Provider string
	Key      string
	Err      error
}

func (e *NotFoundError) Error() string {
	return "not found: " + e.Key + " in " + e.Provider
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// AuthError reports that the backend could not be unlocked or authenticated.
type AuthError struct {
	Provider string
	Message  string
	Err      error
}

func (e *AuthError) Error() string {
	msg := "authentication failed for " + e.Provider
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ConstructionError reports a provider that could not be built from its
// configuration. It is fatal for that provider only.
type ConstructionError struct {
	Provider string
	Type     string
	Message  string
	Err      error
}

func (e *ConstructionError) Error() string {
	msg := fmt.Sprintf("cannot construct provider %q", e.Provider)
	if e.Type != "" {
		msg += fmt.Sprintf(" of type %q", e.Type)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
