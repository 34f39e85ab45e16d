package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/metrics"
	"github.com/systmms/secretmenu/pkg/item"
)

func sampleItems() []item.Item {
	return []item.Item{
		{ID: "a1", Title: "Work/github", Fields: []item.Field{item.Username, item.Password, item.Totp}},
		{ID: "b2", Title: "bank", Fields: []item.Field{item.Password, item.Other("pin")}},
		{ID: "c3", Title: "note", Fields: nil},
	}
}

func TestTryLoad_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	c := TryLoad(path)

	assert.Empty(t, c.Items())
	assert.Equal(t, path, c.Path())
}

func TestTryLoad_InvalidJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	c := TryLoad(path, WithLogger(logging.NewWithWriter(&buf, false, true)))

	assert.Empty(t, c.Items())
	assert.Contains(t, buf.String(), "Could not decode cache")
}

func TestTryLoad_WrongShape(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","title":"x","fields":["other:"]}]`), 0o600))

	c := TryLoad(path)
	assert.Empty(t, c.Items())
}

func TestReplaceThenLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "vault.json")
	items := sampleItems()

	c := TryLoad(path)
	require.NoError(t, c.Replace(items))
	assert.Equal(t, items, c.Items())

	reloaded := TryLoad(path)
	assert.Equal(t, items, reloaded.Items())
	assert.True(t, item.Equal(items, reloaded.Items()))
}

func TestReplace_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vault.json")
	c := TryLoad(path)
	require.NoError(t, c.Replace(sampleItems()))
	require.NoError(t, c.Replace(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, 0, TryLoad(path).Len())
}

func TestReplace_WriteFailureKeepsMemoryAndDisk(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")
	m := metrics.New()

	c := TryLoad(path, WithMetrics(m))
	first := sampleItems()[:1]
	require.NoError(t, c.Replace(first))

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	second := sampleItems()
	err := c.Replace(second)
	require.Error(t, err)

	// Memory is ahead of disk.
	assert.Equal(t, second, c.Items())

	// Disk still holds the previous, complete snapshot.
	require.NoError(t, os.Chmod(dir, 0o700))
	assert.Equal(t, first, TryLoad(path).Items())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites().WithLabelValues("vault", metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites().WithLabelValues("vault", metrics.ResultError)))
}

func TestItemsReturnsCopy(t *testing.T) {
	t.Parallel()

	c := TryLoad(filepath.Join(t.TempDir(), "vault.json"))
	require.NoError(t, c.Replace(sampleItems()))

	got := c.Items()
	got[0].Title = "mutated"

	assert.Equal(t, "Work/github", c.Items()[0].Title)
}

func TestReplace_NoTempFilesLeft(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := TryLoad(filepath.Join(dir, "vault.json"))
	require.NoError(t, c.Replace(sampleItems()))
	require.NoError(t, c.Replace(sampleItems()[:2]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "vault.json", entries[0].Name())
}

func TestFileFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("/cache", "work_vault.json"), FileFor("/cache", "work vault"))
	assert.Equal(t, filepath.Join("/cache", "a-b.json"), FileFor("/cache", "a/b"))
}
