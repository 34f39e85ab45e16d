package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretmenu/internal/config"
	"github.com/systmms/secretmenu/internal/credstore"
	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/providers"
	"github.com/systmms/secretmenu/tests/testutil"
)

var bwResponses = testutil.BitwardenMockResponses{}

// testGlobals returns Globals reading configJSON, with a scripted executor,
// an in-memory credential store and a private cache directory.
func testGlobals(t *testing.T, configJSON string) (*Globals, *testutil.MockCommandExecutor) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(configJSON), 0o600))

	mock := testutil.NewMockCommandExecutor()
	g := &Globals{
		Config: &config.Config{
			Path:   path,
			Logger: logging.NewWithWriter(io.Discard, false, true),
		},
		Executor: mock,
		Store:    credstore.NewMemory(),
		CacheDir: filepath.Join(dir, "cache"),
	}
	return g, mock
}

// unlockedVault scripts a vault whose stored session is valid.
func unlockedVault(t *testing.T, g *Globals, mock *testutil.MockCommandExecutor) {
	t.Helper()

	require.NoError(t, g.Store.Set(providers.DefaultSessionService, providers.DefaultSessionAccount, "stored-token"))
	mock.AddResponse("bw status", bwResponses.StatusUnlocked())
	mock.AddResponse("bw list folders", bwResponses.Folders())
	mock.AddResponse("bw list items", bwResponses.Items())
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true

	err := cmd.Execute()
	return out.String(), err
}

const bitwardenConfig = `{"providers": {"vault": {"type": "bitwarden"}}}`

// rofiAnswer is what rofi prints when text is entered and confirmed.
func rofiAnswer(text string) testutil.MockResponse {
	return testutil.MockResponse{Stdout: []byte(text + "\n")}
}
