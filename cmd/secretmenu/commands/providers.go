package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/secretmenu/internal/providers"
)

func NewProvidersCommand(g *Globals) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List available providers",
		Long: `Display information about available providers.

Shows both built-in provider types and configured provider instances.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			registry := providers.NewRegistry()

			_, _ = fmt.Fprintln(out, "Built-in Provider Types:")
			_, _ = fmt.Fprintln(out, "=======================")

			supportedTypes := registry.GetSupportedTypes()

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TYPE\tDESCRIPTION\n")
			_, _ = fmt.Fprintf(w, "----\t-----------\n")
			for _, providerType := range supportedTypes {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", providerType, getProviderDescription(providerType))
			}
			_ = w.Flush()

			// Configured providers are only shown when a configuration loads.
			if err := g.Config.Load(); err == nil && g.Config.Definition != nil {
				_, _ = fmt.Fprintln(out, "\nConfigured Providers:")
				_, _ = fmt.Fprintln(out, "====================")

				names := g.Config.ProviderNames()
				if len(names) == 0 {
					_, _ = fmt.Fprintln(out, "No providers configured")
				} else {
					w2 := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					_, _ = fmt.Fprintf(w2, "NAME\tTYPE\tSHORTCUT\tSTATUS\n")
					_, _ = fmt.Fprintf(w2, "----\t----\t--------\t------\n")
					for _, name := range names {
						pc := g.Config.Definition.Providers[name]
						status := "configured"
						if !registry.IsSupported(pc.Type) {
							status = "unsupported"
						}
						shortcut := pc.Shortcut
						if shortcut == "" {
							shortcut = "-"
						}
						_, _ = fmt.Fprintf(w2, "%s\t%s\t%s\t%s\n", name, pc.Type, shortcut, status)
					}
					_ = w2.Flush()
				}
			} else if err != nil {
				g.logger().Debug("No configured providers shown: %v", err)
			}

			if verbose {
				_, _ = fmt.Fprintln(out, "\nProvider Details:")
				_, _ = fmt.Fprintln(out, "================")
				for _, providerType := range supportedTypes {
					_, _ = fmt.Fprintf(out, "\n%s:\n", providerType)
					for _, detail := range getProviderDetails(providerType) {
						_, _ = fmt.Fprintf(out, "  • %s\n", detail)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show detailed provider information")

	return cmd
}

// getProviderDescription returns a description for a provider type
func getProviderDescription(providerType string) string {
	descriptions := map[string]string{
		providers.TypeBitwarden:     "Bitwarden password manager via CLI",
		providers.TypePasswordStore: "pass (zx2c4) Unix password manager",
		providers.TypePass:          "Alias of password_store",
		providers.TypeTerraform:     "Terraform root module outputs",
	}

	if desc, exists := descriptions[providerType]; exists {
		return desc
	}
	return "No description available"
}

// getProviderDetails returns detailed information for a provider type
func getProviderDetails(providerType string) []string {
	details := map[string][]string{
		providers.TypeBitwarden: {
			"Requires Bitwarden CLI ('bw') in PATH and a prior 'bw login'",
			"Prompts for the master password when the vault is locked",
			"Session token kept in the OS keyring (service \"secretmenu\")",
			"Entries titled folder/path/name; custom fields exposed by name",
			"Options: cache, binary, service, account",
		},
		providers.TypePasswordStore: {
			"Unix password manager using GPG and Git",
			"Local password store in ~/.password-store or $PASSWORD_STORE_DIR",
			"Only the first line (the password) of each entry is exposed",
			"Options: path, binary",
		},
		providers.TypePass: {
			"Same as password_store",
		},
		providers.TypeTerraform: {
			"Reads 'terraform output -json' in the configured directory",
			"String outputs expose a password; object outputs expose each string key",
			"Commands can be wrapped, e.g. [\"aws-vault\", \"exec\", \"prod\", \"--\"]",
			"Options: path (required), wrapper, binary",
		},
	}

	if detail, exists := details[providerType]; exists {
		return detail
	}
	return []string{"No details available"}
}
