package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/systmms/secretmenu/cmd/secretmenu/commands"
	"github.com/systmms/secretmenu/internal/config"
	apperrors "github.com/systmms/secretmenu/internal/errors"
	"github.com/systmms/secretmenu/internal/logging"
	"github.com/systmms/secretmenu/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", apperrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile  string
		noColor     bool
		debug       bool
		metricsFile string
	)

	// Filled in once flags are parsed
	cfg := &config.Config{}
	globals := &commands.Globals{
		Config:  cfg,
		Metrics: metrics.Default(),
	}

	menu := commands.NewMenuCommand(globals)

	rootCmd := &cobra.Command{
		Use:   "secretmenu",
		Short: "Pick credentials from several secret stores in one menu",
		Long: `secretmenu lists the entries of your vaults (Bitwarden, pass, Terraform
outputs) in rofi and prints the field you pick.

Without a subcommand the menu is shown.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(debug, noColor)

			if configFile == "" {
				path, err := config.DefaultPath()
				if err != nil {
					return err
				}
				configFile = path
			}

			cfg.Path = configFile
			cfg.Logger = logger
			return nil
		},
		RunE: menu.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default <user config dir>/secretmenu/config.json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().BoolVar(&globals.NoKeyring, "no-keyring", false, "Keep vault sessions in memory instead of the OS keyring")
	rootCmd.PersistentFlags().StringVarP(&globals.Provider, "provider", "p", "", "Provider to use (default: first by name)")

	rootCmd.AddCommand(
		menu,
		commands.NewListCommand(globals),
		commands.NewGetCommand(globals),
		commands.NewSyncCommand(globals),
		commands.NewLockCommand(globals),
		commands.NewProvidersCommand(globals),
		commands.NewDoctorCommand(globals),
		commands.NewCompletionCommand(globals),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	if metricsFile != "" {
		if werr := globals.Metrics.WriteTextfile(metricsFile); werr != nil && err == nil {
			err = werr
		}
	}
	if cfg.Logger != nil {
		_ = cfg.Logger.Sync()
	}
	return err
}
