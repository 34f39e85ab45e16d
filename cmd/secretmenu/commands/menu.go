package commands

import (
	"github.com/spf13/cobra"
)

func NewMenuCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Show the selection menu",
		Long: `Show every entry of a provider in rofi and print the chosen field.

The first provider by name is shown unless --provider is given. Cached
entries are listed straight away when a cache exists. Provider actions
(sync, lock, refresh) and provider shortcuts are bound to custom keys
listed below the input.

Examples:
  # Copy a password to the clipboard
  secretmenu | xclip -selection clipboard

  # Start with a specific provider
  secretmenu menu --provider infra`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.newApp(cmd)
			if err != nil {
				return err
			}
			return a.Show(cmd.Context(), g.Provider)
		},
	}
}
