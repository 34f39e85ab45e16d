package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/secretmenu/internal/config"
	"github.com/systmms/secretmenu/internal/credstore"
	apperrors "github.com/systmms/secretmenu/internal/errors"
	"github.com/systmms/secretmenu/internal/providers"
)

const (
	statusHealthy = "healthy"
	statusError   = "error"
)

func NewDoctorCommand(g *Globals) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, tools and keyring access",
		Long: `Verify that secretmenu can run.

This command checks:
- Configuration file validity
- rofi and each provider's command line tools on PATH
- Credential store access for stored vault sessions
- Provider construction from the configuration`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger()
			logger.Info("Checking secretmenu configuration...")

			a, err := g.newApp(cmd)
			if err != nil {
				logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.Info("✓ Configuration loaded successfully")

			results := []HealthCheck{
				g.checkBinary("rofi", "menu", "rofi"),
				g.checkStore(),
			}

			failed := a.ConstructionErrors()
			for _, name := range g.Config.ProviderNames() {
				pc := g.Config.Definition.Providers[name]
				if err, ok := failed[name]; ok {
					results = append(results, HealthCheck{
						Name:        name,
						Type:        pc.Type,
						Status:      statusError,
						Error:       err.Error(),
						Suggestions: []string{"Check the provider's \"type\" and \"config\" entries"},
					})
					continue
				}
				for _, binary := range requiredBinaries(pc) {
					results = append(results, g.checkBinary(name, pc.Type, binary))
				}
			}

			displayHealthResults(cmd.OutOrStdout(), results, verbose)

			healthy := 0
			for _, result := range results {
				if result.Status == statusHealthy {
					healthy++
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d/%d checks passed\n", healthy, len(results))
			if healthy < len(results) {
				return fmt.Errorf("some checks failed")
			}

			logger.Info("✓ All systems operational!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

// HealthCheck is the outcome of one doctor check.
type HealthCheck struct {
	Name        string
	Type        string
	Status      string // healthy, error
	Error       string
	Message     string
	Suggestions []string
}

func (g *Globals) checkBinary(name, typ, binary string) HealthCheck {
	check := HealthCheck{Name: name, Type: typ}
	path, err := g.lookPath(binary)
	if err != nil {
		check.Status = statusError
		check.Error = fmt.Sprintf("%s not found in PATH", binary)
		check.Suggestions = binarySuggestions(binary, err)
		return check
	}
	check.Status = statusHealthy
	check.Message = path
	return check
}

func (g *Globals) checkStore() HealthCheck {
	check := HealthCheck{Name: "credential store", Type: "keyring"}
	if g.NoKeyring {
		check.Type = "memory"
	}

	_, err := g.store().Get(providers.DefaultSessionService, providers.DefaultSessionAccount)
	switch {
	case err == nil:
		check.Status = statusHealthy
		check.Message = "stored session present"
	case errors.Is(err, credstore.ErrNotFound):
		check.Status = statusHealthy
		check.Message = "reachable, no stored session"
	default:
		check.Status = statusError
		check.Error = err.Error()
		check.Suggestions = []string{
			"Make sure a Secret Service provider (gnome-keyring, KWallet) is running",
			"Or run with --no-keyring to keep sessions in memory for one run",
		}
	}
	return check
}

// requiredBinaries lists the executables a provider configuration runs.
func requiredBinaries(pc config.ProviderConfig) []string {
	binary := func(def string) string {
		if s, ok := pc.Config["binary"].(string); ok && s != "" {
			return s
		}
		return def
	}

	switch pc.Type {
	case providers.TypeBitwarden:
		return []string{binary("bw")}
	case providers.TypePasswordStore, providers.TypePass:
		return []string{binary("pass")}
	case providers.TypeTerraform:
		out := []string{binary("terraform")}
		if wrapper, ok := pc.Config["wrapper"].([]any); ok && len(wrapper) > 0 {
			if s, ok := wrapper[0].(string); ok {
				out = append(out, s)
			}
		}
		sort.Strings(out)
		return out
	}
	return nil
}

func binarySuggestions(binary string, err error) []string {
	var cmdErr apperrors.CommandError
	if errors.As(apperrors.WrapCommandNotFound(binary, err), &cmdErr) {
		return []string{cmdErr.Suggestion}
	}
	return nil
}

// displayHealthResults shows check results in a formatted table
func displayHealthResults(out io.Writer, results []HealthCheck, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tTYPE\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		message := result.Message
		if result.Error != "" {
			message = result.Error
		}

		switch result.Status {
		case statusHealthy:
			status = "✓ " + status
		case statusError:
			status = "✗ " + status
		default:
			status = "? " + status
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", result.Name, result.Type, status, message)
	}

	_ = w.Flush()

	if !verbose {
		return
	}
	for _, result := range results {
		if result.Status == statusError && len(result.Suggestions) > 0 {
			_, _ = fmt.Fprintf(out, "\n%s (%s) suggestions:\n", result.Name, result.Type)
			for _, suggestion := range result.Suggestions {
				_, _ = fmt.Fprintf(out, "  • %s\n", suggestion)
			}
		}
	}
}
