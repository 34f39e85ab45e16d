package providers_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretmenu/internal/bitwarden"
	"github.com/systmms/secretmenu/internal/cache"
	"github.com/systmms/secretmenu/internal/credstore"
	"github.com/systmms/secretmenu/internal/metrics"
	"github.com/systmms/secretmenu/internal/providers"
	"github.com/systmms/secretmenu/pkg/item"
	"github.com/systmms/secretmenu/pkg/provider"
	"github.com/systmms/secretmenu/tests/fakes"
	"github.com/systmms/secretmenu/tests/testutil"
)

var bw = testutil.BitwardenMockResponses{}

type bitwardenFixture struct {
	mock     *testutil.MockCommandExecutor
	store    *credstore.Memory
	prompter *fakes.FakePrompter
	metrics  *metrics.Metrics
	cacheDir string
}

func newBitwardenFixture(t *testing.T, passwords ...string) *bitwardenFixture {
	t.Helper()
	mock := testutil.NewMockCommandExecutor()
	mock.AddResponse("bw list folders", bw.Folders())
	mock.AddResponse("bw list items", bw.Items())
	return &bitwardenFixture{
		mock:     mock,
		store:    credstore.NewMemory(),
		prompter: fakes.NewFakePrompter(passwords...),
		metrics:  metrics.New(),
		cacheDir: t.TempDir(),
	}
}

func (f *bitwardenFixture) deps() providers.Deps {
	return providers.Deps{
		Store:    f.store,
		Prompter: f.prompter,
		CacheDir: f.cacheDir,
		Executor: f.mock,
		Metrics:  f.metrics,
	}
}

func (f *bitwardenFixture) provider(cfg providers.BitwardenConfig) *providers.BitwardenProvider {
	return providers.NewBitwardenProvider("vault", cfg, f.deps())
}

func (f *bitwardenFixture) storeToken(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, f.store.Set(providers.DefaultSessionService, providers.DefaultSessionAccount, token))
}

func (f *bitwardenFixture) storedToken(t *testing.T) string {
	t.Helper()
	token, err := f.store.Get(providers.DefaultSessionService, providers.DefaultSessionAccount)
	if errors.Is(err, credstore.ErrNotFound) {
		return ""
	}
	require.NoError(t, err)
	return token
}

func sessionOf(t *testing.T, call testutil.RecordedCall) string {
	t.Helper()
	token, _ := call.EnvValue(bitwarden.SessionEnv)
	return token
}

func TestBitwardenListItemsWithStoredSession(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	f.storeToken(t, "stored-token")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())

	p := f.provider(providers.BitwardenConfig{})
	items, err := p.ListItems(context.Background())
	require.NoError(t, err)

	want := []item.Item{
		{ID: "i-github", Title: "Work/github", Fields: []item.Field{item.Username, item.Password, item.Totp, item.Other("recovery")}},
		{ID: "i-bank", Title: "Personal/Finance/bank", Fields: []item.Field{item.Password}},
		{ID: "i-loose", Title: "loose", Fields: []item.Field{item.Username}},
		{ID: "i-dangling", Title: "orphan"},
	}
	assert.Equal(t, want, items)

	assert.Empty(t, f.prompter.Prompts())
	for _, call := range f.mock.GetCalls("bw") {
		assert.Equal(t, "stored-token", sessionOf(t, call))
	}
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.Sessions().WithLabelValues("vault", providers.SessionSourceStored)))
}

func TestBitwardenFolderResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		itemsJSON string
		wantTitle string
	}{
		{
			name:      "no folder",
			itemsJSON: `[{"id": "1", "name": "mail", "folderId": null, "type": 1}]`,
			wantTitle: "mail",
		},
		{
			name:      "dangling folder",
			itemsJSON: `[{"id": "1", "name": "mail", "folderId": "gone", "type": 1}]`,
			wantTitle: "mail",
		},
		{
			name:      "nested folder name",
			itemsJSON: `[{"id": "1", "name": "mail", "folderId": "f-nested", "type": 1}]`,
			wantTitle: "A/B/mail",
		},
		{
			name:      "top level folder",
			itemsJSON: `[{"id": "1", "name": "mail", "folderId": "f-top", "type": 1}]`,
			wantTitle: "A/mail",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newBitwardenFixture(t)
			f.storeToken(t, "tok")
			f.mock.AddResponse("bw status", bw.StatusUnlocked())
			f.mock.AddJSONResponse("bw list folders", `[
				{"object": "folder", "id": "f-top", "name": "A"},
				{"object": "folder", "id": "f-nested", "name": "A/B"},
				{"object": "folder", "id": null, "name": "No Folder"}
			]`)
			f.mock.AddJSONResponse("bw list items", tt.itemsJSON)

			items, err := f.provider(providers.BitwardenConfig{}).ListItems(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, tt.wantTitle, items[0].Title)
			assert.Empty(t, items[0].Fields)
		})
	}
}

func TestBitwardenLockedStatusPromptsAndStoresToken(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t, "hunter2")
	f.storeToken(t, "stale-token")
	f.mock.AddResponse("bw status", bw.StatusLocked())
	f.mock.AddResponse("bw unlock --raw", bw.Unlock("fresh-token"))

	p := f.provider(providers.BitwardenConfig{})
	_, err := p.ListItems(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Enter master password"}, f.prompter.Prompts())
	assert.Equal(t, "fresh-token", f.storedToken(t))

	unlock := f.mock.CallsMatching("bw unlock")
	require.Len(t, unlock, 1)
	assert.Equal(t, []byte("hunter2"), unlock[0].Stdin)

	listing := f.mock.CallsMatching("bw list")
	require.Len(t, listing, 2)
	for _, call := range listing {
		assert.Equal(t, "fresh-token", sessionOf(t, call))
	}
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.Sessions().WithLabelValues("vault", providers.SessionSourceInteractive)))
}

func TestBitwardenSessionAcquisition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		stored      string
		passwords   []string
		setup       func(m *testutil.MockCommandExecutor)
		wantErr     bool
		check       func(t *testing.T, f *bitwardenFixture, err error)
		wantPrompts []string
	}{
		{
			name:      "no stored token prompts without probing",
			passwords: []string{"pw"},
			setup: func(m *testutil.MockCommandExecutor) {
				m.AddResponse("bw unlock", bw.Unlock("new"))
			},
			check: func(t *testing.T, f *bitwardenFixture, err error) {
				f.mock.AssertNotCalled(t, "bw status")
				assert.Equal(t, "new", f.storedToken(t))
			},
			wantPrompts: []string{"Enter master password"},
		},
		{
			name:      "stored token fails to decrypt",
			stored:    "bad",
			passwords: []string{"pw"},
			setup: func(m *testutil.MockCommandExecutor) {
				m.AddResponse("bw status", bw.DecryptFailure())
				m.AddResponse("bw unlock", bw.Unlock("new"))
			},
			check: func(t *testing.T, f *bitwardenFixture, err error) {
				assert.Equal(t, "new", f.storedToken(t))
			},
			wantPrompts: []string{"Enter master password"},
		},
		{
			name:      "wrong password then right one",
			passwords: []string{"wrong", "right"},
			setup: func(m *testutil.MockCommandExecutor) {
				m.AddSequence("bw unlock", bw.Unlock(""), bw.Unlock("new"))
			},
			check: func(t *testing.T, f *bitwardenFixture, err error) {
				assert.Equal(t, "new", f.storedToken(t))
			},
			wantPrompts: []string{"Enter master password", "Wrong master password, try again"},
		},
		{
			name:      "wrong password twice",
			passwords: []string{"wrong", "still wrong", "never asked"},
			setup: func(m *testutil.MockCommandExecutor) {
				m.AddErrorResponse("bw unlock", "Invalid master password.", 1)
			},
			wantErr: true,
			check: func(t *testing.T, f *bitwardenFixture, err error) {
				var authErr *provider.AuthError
				assert.ErrorAs(t, err, &authErr)
				assert.ErrorIs(t, err, bitwarden.ErrUnlockFailed)
				assert.Empty(t, f.storedToken(t))
				f.mock.AssertNotCalled(t, "bw list")
			},
			wantPrompts: []string{"Enter master password", "Wrong master password, try again"},
		},
		{
			name:      "missing bw binary is not a wrong password",
			passwords: []string{"pw", "never asked"},
			setup: func(m *testutil.MockCommandExecutor) {
				m.AddResponse("bw unlock", testutil.MockResponse{
					Err: &exec.Error{Name: "bw", Err: exec.ErrNotFound},
				})
			},
			wantErr: true,
			check: func(t *testing.T, f *bitwardenFixture, err error) {
				assert.NotErrorIs(t, err, bitwarden.ErrUnlockFailed)
				assert.ErrorIs(t, err, exec.ErrNotFound)
				var authErr *provider.AuthError
				assert.False(t, errors.As(err, &authErr))
				f.mock.AssertCallCount(t, "bw unlock", 1)
			},
			wantPrompts: []string{"Enter master password"},
		},
		{
			name:   "probe failure propagates without prompting",
			stored: "tok",
			setup: func(m *testutil.MockCommandExecutor) {
				m.AddErrorResponse("bw status", "You are not logged in.", 1)
			},
			wantErr: true,
			check: func(t *testing.T, f *bitwardenFixture, err error) {
				var cmdErr *bitwarden.CommandError
				assert.ErrorAs(t, err, &cmdErr)
				assert.Equal(t, "tok", f.storedToken(t))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newBitwardenFixture(t, tt.passwords...)
			if tt.stored != "" {
				f.storeToken(t, tt.stored)
			}
			tt.setup(f.mock)

			_, err := f.provider(providers.BitwardenConfig{}).ListItems(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.check != nil {
				tt.check(t, f, err)
			}
			assert.Equal(t, tt.wantPrompts, f.prompter.Prompts())
		})
	}
}

func TestBitwardenPromptCancelled(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	cancelled := errors.New("cancelled")
	f.prompter.WithError(cancelled)

	_, err := f.provider(providers.BitwardenConfig{}).ListItems(context.Background())

	var authErr *provider.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, cancelled)
	f.mock.AssertNotCalled(t, "bw unlock")
}

func TestBitwardenNoPrompter(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	deps := f.deps()
	deps.Prompter = nil

	_, err := providers.NewBitwardenProvider("vault", providers.BitwardenConfig{}, deps).ListItems(context.Background())
	var authErr *provider.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestBitwardenTokenPersistenceFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t, "pw")
	f.store.SetErr = errors.New("keyring unavailable")
	f.mock.AddResponse("bw unlock", bw.Unlock("new"))

	p := f.provider(providers.BitwardenConfig{})
	items, err := p.ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 4)

	// The in-memory session keeps working for the rest of the run.
	_, err = p.ListItems(context.Background())
	require.NoError(t, err)
	f.mock.AssertCallCount(t, "bw unlock", 1)
}

func TestBitwardenProbesOncePerInstance(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())

	p := f.provider(providers.BitwardenConfig{})
	ctx := context.Background()

	first, err := p.ListItems(ctx)
	require.NoError(t, err)
	second, err := p.ListItems(ctx)
	require.NoError(t, err)

	assert.True(t, item.Equal(first, second))
	f.mock.AssertCallCount(t, "bw status", 1)
	f.mock.AssertCallCount(t, "bw list items", 2)
}

func TestBitwardenDecryptFailureMidCallRetriesOnce(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t, "pw")
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())
	f.mock.AddSequence("bw list folders", bw.DecryptFailure(), bw.Folders())
	f.mock.AddResponse("bw unlock", bw.Unlock("new"))

	items, err := f.provider(providers.BitwardenConfig{}).ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 4)

	assert.Equal(t, []string{"Enter master password"}, f.prompter.Prompts())
	assert.Equal(t, "new", f.storedToken(t))
	f.mock.AssertCallCount(t, "bw list folders", 2)
}

func TestBitwardenDecryptFailureTwiceSurfaces(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t, "pw")
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())
	f.mock.AddResponse("bw list folders", bw.DecryptFailure())
	f.mock.AddResponse("bw unlock", bw.Unlock("new"))

	_, err := f.provider(providers.BitwardenConfig{}).ListItems(context.Background())
	require.ErrorIs(t, err, bitwarden.ErrDecryptionFailed)
	f.mock.AssertCallCount(t, "bw list folders", 2)
}

func TestBitwardenReadField(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())
	f.mock.AddTextResponse("bw get password i-github", "gh-pass\n")
	f.mock.AddErrorResponse("bw get username i-github", "Not found.", 1)

	p := f.provider(providers.BitwardenConfig{})
	ctx := context.Background()
	github := item.Item{ID: "i-github", Title: "Work/github", Fields: []item.Field{item.Username, item.Password}}

	value, err := p.ReadField(ctx, github, item.Password)
	require.NoError(t, err)
	assert.Equal(t, "gh-pass", value)

	_, err = p.ReadField(ctx, github, item.Username)
	var notFound *provider.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Work/github", notFound.Key)
}

func TestBitwardenReadUndeclaredFieldTouchesNothing(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	p := f.provider(providers.BitwardenConfig{})

	loose := item.Item{ID: "i-loose", Title: "loose", Fields: []item.Field{item.Username}}
	_, err := p.ReadField(context.Background(), loose, item.Password)

	var capErr *provider.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, item.Password, capErr.Field)
	assert.Equal(t, 0, f.mock.CallCount())
	assert.Empty(t, f.prompter.Prompts())
}

func TestBitwardenCache(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())

	p := f.provider(providers.BitwardenConfig{Cache: true})
	assert.Nil(t, p.CachedItems())

	items, err := p.ListItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, items, p.CachedItems())

	path := cache.FileFor(f.cacheDir, "vault")
	assert.FileExists(t, path)
	assert.Equal(t, items, cache.TryLoad(path).Items())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "tok")
	assert.NotContains(t, string(data), "gh-pass")

	// A fresh instance serves the cached listing without any subprocess.
	calls := f.mock.CallCount()
	fresh := f.provider(providers.BitwardenConfig{Cache: true})
	assert.True(t, item.Equal(items, fresh.CachedItems()))
	assert.Equal(t, calls, f.mock.CallCount())
}

func TestBitwardenCacheDisabled(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())

	p := f.provider(providers.BitwardenConfig{Cache: false})
	_, err := p.ListItems(context.Background())
	require.NoError(t, err)

	assert.Nil(t, p.CachedItems())
	assert.NoFileExists(t, filepath.Join(f.cacheDir, "vault.json"))
}

func TestBitwardenActions(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	actions, err := f.provider(providers.BitwardenConfig{}).ListActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []item.Action{
		{ID: "sync", Label: "Sync vault", Key: "Alt+r"},
		{ID: "lock", Label: "Lock vault", Key: "Alt+l"},
	}, actions)
}

func TestBitwardenSyncRefreshesCache(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())
	f.mock.AddTextResponse("bw sync", "Syncing complete.")

	p := f.provider(providers.BitwardenConfig{Cache: true})
	require.NoError(t, p.DoAction(context.Background(), item.Action{ID: providers.ActionSync}))

	f.mock.AssertCallCount(t, "bw sync", 1)
	f.mock.AssertCallCount(t, "bw list items", 1)
	assert.Len(t, p.CachedItems(), 4)
}

func TestBitwardenFailedSyncLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	f.storeToken(t, "tok")
	f.mock.AddResponse("bw status", bw.StatusUnlocked())
	f.mock.AddErrorResponse("bw sync", "network unreachable", 1)

	p := f.provider(providers.BitwardenConfig{Cache: true})
	err := p.DoAction(context.Background(), item.Action{ID: providers.ActionSync})
	require.Error(t, err)

	f.mock.AssertNotCalled(t, "bw list")
	assert.Nil(t, p.CachedItems())
	assert.NoFileExists(t, cache.FileFor(f.cacheDir, "vault"))
}

func TestBitwardenLock(t *testing.T) {
	t.Parallel()

	t.Run("stored token", func(t *testing.T) {
		t.Parallel()

		f := newBitwardenFixture(t)
		f.storeToken(t, "tok")
		f.mock.AddResponse("bw lock", bw.Locked())

		p := f.provider(providers.BitwardenConfig{})
		require.NoError(t, p.DoAction(context.Background(), item.Action{ID: providers.ActionLock}))

		calls := f.mock.CallsMatching("bw lock")
		require.Len(t, calls, 1)
		assert.Equal(t, "tok", sessionOf(t, calls[0]))
		assert.Empty(t, f.storedToken(t))
		f.mock.AssertNotCalled(t, "bw status")
		assert.Empty(t, f.prompter.Prompts())
	})

	t.Run("nothing to lock", func(t *testing.T) {
		t.Parallel()

		f := newBitwardenFixture(t)
		p := f.provider(providers.BitwardenConfig{})
		require.NoError(t, p.DoAction(context.Background(), item.Action{ID: providers.ActionLock}))
		assert.Equal(t, 0, f.mock.CallCount())
	})

	t.Run("active session is dropped", func(t *testing.T) {
		t.Parallel()

		f := newBitwardenFixture(t, "pw")
		f.storeToken(t, "tok")
		f.mock.AddResponse("bw status", bw.StatusUnlocked())
		f.mock.AddResponse("bw lock", bw.Locked())
		f.mock.AddResponse("bw unlock", bw.Unlock("after-lock"))

		p := f.provider(providers.BitwardenConfig{})
		ctx := context.Background()
		_, err := p.ListItems(ctx)
		require.NoError(t, err)
		require.NoError(t, p.DoAction(ctx, item.Action{ID: providers.ActionLock}))

		// The next listing has to unlock again.
		_, err = p.ListItems(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Enter master password"}, f.prompter.Prompts())
		assert.Equal(t, "after-lock", f.storedToken(t))
	})

	t.Run("unexpected confirmation", func(t *testing.T) {
		t.Parallel()

		f := newBitwardenFixture(t)
		f.storeToken(t, "tok")
		f.mock.AddTextResponse("bw lock", "Huh?")

		p := f.provider(providers.BitwardenConfig{})
		err := p.DoAction(context.Background(), item.Action{ID: providers.ActionLock})

		var unexpected *bitwarden.UnexpectedResponseError
		require.ErrorAs(t, err, &unexpected)
		assert.Equal(t, "tok", f.storedToken(t))
	})
}

func TestBitwardenUnknownActionIsNoop(t *testing.T) {
	t.Parallel()

	f := newBitwardenFixture(t)
	p := f.provider(providers.BitwardenConfig{})
	require.NoError(t, p.DoAction(context.Background(), item.Action{ID: "explode"}))
	assert.Equal(t, 0, f.mock.CallCount())
}

func TestBitwardenContract(t *testing.T) {
	t.Parallel()

	provider.RunContractTests(t, provider.ContractTest{
		CreateProvider: func(t *testing.T) provider.Provider {
			f := newBitwardenFixture(t)
			f.storeToken(t, "tok")
			f.mock.AddResponse("bw status", bw.StatusUnlocked())
			f.mock.AddTextResponse("bw get username", "user")
			f.mock.AddTextResponse("bw get password", "pass")
			f.mock.AddTextResponse("bw get totp", "123456")
			f.mock.AddJSONResponse("bw get item i-github",
				`{"id": "i-github", "name": "github", "type": 1, "fields": [{"name": "recovery", "value": "r-123", "type": 1}]}`)
			return f.provider(providers.BitwardenConfig{})
		},
		WantItems: 4,
	})
}
