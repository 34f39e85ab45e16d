package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/secretmenu/internal/providers"
)

// NewSyncCommand pulls the vault and refreshes its cache.
func NewSyncCommand(g *Globals) *cobra.Command {
	return newActionCommand(g, providers.ActionSync,
		"Sync a vault and refresh its cache",
		`Run the vault's sync and rewrite the cached listing. A failed sync leaves
the cache untouched.`)
}

// NewLockCommand locks a vault and forgets its stored session.
func NewLockCommand(g *Globals) *cobra.Command {
	return newActionCommand(g, providers.ActionLock,
		"Lock a vault and forget its session",
		`Lock the vault with the current or stored session and delete the stored
session token. Locking never prompts for the master password.`)
}

func newActionCommand(g *Globals, actionID, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   actionID + " [provider]",
		Short: short,
		Long:  long,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := g.Provider
			if len(args) == 1 {
				name = args[0]
			}

			a, err := g.newApp(cmd)
			if err != nil {
				return err
			}
			return a.Do(cmd.Context(), name, actionID)
		},
		ValidArgsFunction: g.completeProviderNames,
	}
}
