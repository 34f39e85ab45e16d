package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewListCommand(g *Globals) *cobra.Command {
	var (
		refresh    bool
		showFields bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entry titles",
		Long: `Print the titles of a provider's entries, one per line, sorted.

The cached listing is used when available. --refresh always asks the
backend, which also rewrites the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.newApp(cmd)
			if err != nil {
				return err
			}
			p, err := a.Provider(g.Provider)
			if err != nil {
				return err
			}
			items, err := a.Items(cmd.Context(), p, refresh)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !showFields {
				for _, it := range items {
					_, _ = fmt.Fprintln(out, it.Title)
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TITLE\tFIELDS\n")
			for _, it := range items {
				names := make([]string, len(it.Fields))
				for i, f := range it.Fields {
					names[i] = f.String()
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", it.Title, strings.Join(names, ", "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cache and list from the backend")
	cmd.Flags().BoolVar(&showFields, "fields", false, "Also show the declared fields of each entry")

	return cmd
}
