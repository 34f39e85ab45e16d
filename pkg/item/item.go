// Package item defines the normalized credential model shared by every
// provider: an Item with a display title and the set of fields it declares.
//
// Field presence is a capability declaration. Values are never stored on an
// Item; they are fetched lazily through the owning provider.
package item

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrFieldNotDeclared is returned when a field is requested that the item did
// not declare at listing time.
var ErrFieldNotDeclared = errors.New("field not declared on item")

// Kind is the closed set of well-known field kinds plus the Other extension.
type Kind int

const (
	KindUsername Kind = iota + 1
	KindPassword
	KindTotp
	KindOther
)

const otherPrefix = "other:"

// Field is a retrievable attribute of an Item.
type Field struct {
	Kind Kind
	// Name is only set for KindOther.
	Name string
}

var (
	Username = Field{Kind: KindUsername}
	Password = Field{Kind: KindPassword}
	Totp     = Field{Kind: KindTotp}
)

// Other returns a backend-specific field with the given name.
func Other(name string) Field {
	return Field{Kind: KindOther, Name: name}
}

// String returns the text form used in the cache file and on the command line.
func (f Field) String() string {
	switch f.Kind {
	case KindUsername:
		return "username"
	case KindPassword:
		return "password"
	case KindTotp:
		return "totp"
	case KindOther:
		return otherPrefix + f.Name
	default:
		return fmt.Sprintf("field(%d)", int(f.Kind))
	}
}

// Label is the human readable form shown in menus.
func (f Field) Label() string {
	switch f.Kind {
	case KindUsername:
		return "Username"
	case KindPassword:
		return "Password"
	case KindTotp:
		return "TOTP"
	case KindOther:
		return f.Name
	default:
		return f.String()
	}
}

// ParseField parses the text form produced by Field.String. Bare names that
// are not one of the well-known kinds are treated as Other fields.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(s) {
	case "":
		return Field{}, fmt.Errorf("empty field name")
	case "username":
		return Username, nil
	case "password":
		return Password, nil
	case "totp":
		return Totp, nil
	}
	if name, ok := strings.CutPrefix(s, otherPrefix); ok {
		if name == "" {
			return Field{}, fmt.Errorf("empty name in field %q", s)
		}
		return Other(name), nil
	}
	return Other(s), nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	if f.Kind < KindUsername || f.Kind > KindOther {
		return nil, fmt.Errorf("invalid field kind %d", int(f.Kind))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Item is one displayable credential record.
type Item struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// HasField reports whether f was declared on the item.
func (i Item) HasField(f Field) bool {
	return slices.Contains(i.Fields, f)
}

// Require returns ErrFieldNotDeclared (wrapped) unless f is declared.
func (i Item) Require(f Field) error {
	if i.HasField(f) {
		return nil
	}
	return fmt.Errorf("%w: %s has no %s", ErrFieldNotDeclared, i.Title, f)
}

// SortByTitle orders items by title, then id, in place.
func SortByTitle(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].Title != items[b].Title {
			return items[a].Title < items[b].Title
		}
		return items[a].ID < items[b].ID
	})
}

// Titles returns the titles of items in order.
func Titles(items []Item) []string {
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	return titles
}

// Equal compares two listings ignoring item order. Items match on title, id
// and declared fields; field order within an item is significant since it
// reflects the backend's declaration order.
func Equal(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(it Item) string {
		parts := make([]string, 0, len(it.Fields)+2)
		parts = append(parts, it.Title, it.ID)
		for _, f := range it.Fields {
			parts = append(parts, f.String())
		}
		return strings.Join(parts, "\x00")
	}
	counts := make(map[string]int, len(a))
	for _, it := range a {
		counts[key(it)]++
	}
	for _, it := range b {
		k := key(it)
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}
	return true
}

// Action is a provider-specific operation offered to the menu, such as a
// vault sync or lock.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Key is the keyboard shortcut bound in the menu, e.g. "Alt+r".
	Key string `json:"key,omitempty"`
}
