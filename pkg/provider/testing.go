package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/systmms/secretmenu/pkg/item"
)

// ContractTest defines a standard test suite that all providers must pass
type ContractTest struct {
	// CreateProvider creates a new instance of the provider to test, wired to
	// a scripted backend.
	CreateProvider func(t *testing.T) Provider

	// WantItems is the minimum number of items the scripted backend holds.
	WantItems int

	// SkipReadFields skips reading every declared field, for backends whose
	// scripted responses only cover listing.
	SkipReadFields bool
}

// RunContractTests runs the standard provider contract test suite
func RunContractTests(t *testing.T, contract ContractTest) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Name", func(t *testing.T) {
			testProviderName(t, contract)
		})

		t.Run("ListItemsStable", func(t *testing.T) {
			testProviderListItemsStable(t, contract)
		})

		if !contract.SkipReadFields {
			t.Run("ReadDeclaredFields", func(t *testing.T) {
				testProviderReadDeclaredFields(t, contract)
			})
		}

		t.Run("ReadUndeclaredField", func(t *testing.T) {
			testProviderReadUndeclaredField(t, contract)
		})

		t.Run("UnknownAction", func(t *testing.T) {
			testProviderUnknownAction(t, contract)
		})
	})
}

func testProviderName(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)

	name := p.Name()
	if name == "" {
		t.Error("Provider.Name() returned empty string")
	}

	// Verify name is consistent
	if name2 := p.Name(); name != name2 {
		t.Errorf("Provider.Name() not consistent: %q != %q", name, name2)
	}
}

func testProviderListItemsStable(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	ctx := context.Background()

	first, err := p.ListItems(ctx)
	if err != nil {
		t.Fatalf("Provider.ListItems() failed: %v", err)
	}
	if len(first) < contract.WantItems {
		t.Errorf("Provider.ListItems() returned %d items, want at least %d", len(first), contract.WantItems)
	}

	second, err := p.ListItems(ctx)
	if err != nil {
		t.Fatalf("second Provider.ListItems() failed: %v", err)
	}
	if !item.Equal(first, second) {
		t.Errorf("consecutive listings differ: %v != %v", item.Titles(first), item.Titles(second))
	}
}

func testProviderReadDeclaredFields(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	ctx := context.Background()

	items, err := p.ListItems(ctx)
	if err != nil {
		t.Fatalf("Provider.ListItems() failed: %v", err)
	}

	for _, it := range items {
		for _, field := range it.Fields {
			if _, err := p.ReadField(ctx, it, field); err != nil {
				t.Errorf("Provider.ReadField(%q, %s) failed: %v", it.Title, field, err)
			}
		}
	}
}

func testProviderReadUndeclaredField(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	ctx := context.Background()

	it := item.Item{ID: "contract-undeclared", Title: "contract-undeclared"}
	_, err := p.ReadField(ctx, it, item.Password)
	if err == nil {
		t.Fatal("Provider.ReadField() should fail for an undeclared field")
	}

	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		t.Errorf("Provider.ReadField() returned %T, want *CapabilityError: %v", err, err)
	}
	if !errors.Is(err, item.ErrFieldNotDeclared) {
		t.Errorf("Provider.ReadField() error does not match item.ErrFieldNotDeclared: %v", err)
	}
}

func testProviderUnknownAction(t *testing.T, contract ContractTest) {
	p := contract.CreateProvider(t)
	ctx := context.Background()

	if _, err := p.ListActions(ctx); err != nil {
		t.Errorf("Provider.ListActions() failed: %v", err)
	}
	if err := p.DoAction(ctx, item.Action{ID: "contract-unknown"}); err != nil {
		t.Errorf("Provider.DoAction() with unknown action should be a no-op, got: %v", err)
	}
}
