package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveVaultCall(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveVaultCall("status", 10*time.Millisecond, nil)
	m.ObserveVaultCall("status", 20*time.Millisecond, nil)
	m.ObserveVaultCall("list", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.VaultCalls().WithLabelValues("status", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VaultCalls().WithLabelValues("list", ResultError)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.VaultCalls()))
}

func TestRecordCacheWrite(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordCacheWrite("vault", nil)
	m.RecordCacheWrite("vault", errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites().WithLabelValues("vault", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheWrites().WithLabelValues("vault", ResultError)))
}

func TestRecordSession(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordSession("vault", "interactive")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions().WithLabelValues("vault", "interactive")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveVaultCall("sync", time.Second, nil)
		m.RecordCacheWrite("vault", nil)
		m.RecordSession("vault", "stored")
	})
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveVaultCall("sync", time.Second, nil)

	path := filepath.Join(t.TempDir(), "secretmenu.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `secretmenu_vault_calls_total{result="ok",subcommand="sync"} 1`)
}
