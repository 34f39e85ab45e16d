package credstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyring_RoundTrip(t *testing.T) {
	keyring.MockInit()

	store := NewKeyring()

	_, err := store.Get("secretmenu", "BW_SESSION")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Set("secretmenu", "BW_SESSION", "token-1"))
	got, err := store.Get("secretmenu", "BW_SESSION")
	require.NoError(t, err)
	assert.Equal(t, "token-1", got)

	require.NoError(t, store.Set("secretmenu", "BW_SESSION", "token-2"))
	got, err = store.Get("secretmenu", "BW_SESSION")
	require.NoError(t, err)
	assert.Equal(t, "token-2", got)

	require.NoError(t, store.Delete("secretmenu", "BW_SESSION"))
	_, err = store.Get("secretmenu", "BW_SESSION")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Deleting twice is fine.
	assert.NoError(t, store.Delete("secretmenu", "BW_SESSION"))
}

func TestKeyring_BackendFailure(t *testing.T) {
	backendErr := errors.New("dbus: no session bus")
	keyring.MockInitWithError(backendErr)
	t.Cleanup(keyring.MockInit)

	store := NewKeyring()

	_, err := store.Get("secretmenu", "BW_SESSION")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, backendErr))

	var storeErr *Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "get", storeErr.Op)
	assert.Contains(t, err.Error(), "secretmenu/BW_SESSION")

	assert.Error(t, store.Set("secretmenu", "BW_SESSION", "x"))
	assert.Error(t, store.Delete("secretmenu", "BW_SESSION"))
}

func TestMemory(t *testing.T) {
	t.Parallel()

	store := NewMemory()

	_, err := store.Get("svc", "acct")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Set("svc", "acct", "secret"))
	require.NoError(t, store.Set("svc", "other", "secret-2"))

	got, err := store.Get("svc", "acct")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	require.NoError(t, store.Delete("svc", "acct"))
	_, err = store.Get("svc", "acct")
	assert.True(t, errors.Is(err, ErrNotFound))

	got, err = store.Get("svc", "other")
	require.NoError(t, err)
	assert.Equal(t, "secret-2", got)
}

func TestMemory_ZeroValue(t *testing.T) {
	t.Parallel()

	var store Memory

	_, err := store.Get("svc", "acct")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete("svc", "acct"))

	require.NoError(t, store.Set("svc", "acct", "secret"))
	got, err := store.Get("svc", "acct")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}

func TestMemory_SetError(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	store.SetErr = errors.New("keyring locked")

	assert.Error(t, store.Set("svc", "acct", "secret"))
	_, err := store.Get("svc", "acct")
	assert.True(t, errors.Is(err, ErrNotFound))
}
