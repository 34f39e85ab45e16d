package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/secretmenu/internal/app"
	"github.com/systmms/secretmenu/internal/config"
	"github.com/systmms/secretmenu/internal/credstore"
	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/metrics"
	"github.com/systmms/secretmenu/internal/providers"
	"github.com/systmms/secretmenu/internal/rofi"
	pkgexec "github.com/systmms/secretmenu/pkg/exec"
)

// Globals carries the state shared by every command: the configuration
// filled in from global flags plus the collaborators commands build on.
type Globals struct {
	Config *config.Config

	// Provider selects the provider to act on; empty means the first by name.
	Provider string
	// NoKeyring keeps session tokens in process memory only.
	NoKeyring bool
	Metrics   *metrics.Metrics

	// Collaborators below default to the real implementations when nil.
	Executor pkgexec.CommandExecutor
	Store    credstore.Store
	UI       app.Selector
	CacheDir string
	LookPath func(string) (string, error)
}

func (g *Globals) logger() *logging.Logger {
	if g.Config.Logger == nil {
		g.Config.Logger = logging.Nop()
	}
	return g.Config.Logger
}

func (g *Globals) executor() pkgexec.CommandExecutor {
	if g.Executor == nil {
		g.Executor = pkgexec.DefaultExecutor()
	}
	return g.Executor
}

func (g *Globals) store() credstore.Store {
	if g.Store != nil {
		return g.Store
	}
	if g.NoKeyring {
		g.logger().Debug("Keyring disabled; sessions last for this run only")
		g.Store = credstore.NewMemory()
	} else {
		g.Store = credstore.NewKeyring()
	}
	return g.Store
}

func (g *Globals) lookPath(name string) (string, error) {
	if g.LookPath != nil {
		return g.LookPath(name)
	}
	return pkgexec.LookPath(name)
}

// newApp loads the configuration and builds every configured provider.
// Selected values are written to the command's output.
func (g *Globals) newApp(cmd *cobra.Command) (*app.App, error) {
	if err := g.Config.Load(); err != nil {
		return nil, err
	}

	logger := g.logger()
	client := rofi.NewClient(
		rofi.WithExecutor(g.executor()),
		rofi.WithLogger(logger.Named("rofi")),
	)
	var ui app.Selector = client
	if g.UI != nil {
		ui = g.UI
	}

	deps := providers.Deps{
		Logger:   logger,
		Store:    g.store(),
		Prompter: rofi.NewPrompter(client),
		CacheDir: g.CacheDir,
		Executor: g.executor(),
		Metrics:  g.Metrics,
	}
	return app.New(g.Config, providers.NewRegistry(), ui, deps, app.WithOutput(cmd.OutOrStdout())), nil
}
