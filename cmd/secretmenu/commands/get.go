package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/systmms/secretmenu/internal/errors"
	"github.com/systmms/secretmenu/pkg/item"
)

func NewGetCommand(g *Globals) *cobra.Command {
	var fieldName string

	cmd := &cobra.Command{
		Use:   "get <title>",
		Short: "Print one field of an entry",
		Long: `Print a single field of the entry with the given title.

Only the raw value is printed, without a trailing newline, so the output
can be used directly in scripts.

Fields: username, password, totp, or the name of a custom field.

Examples:
  secretmenu get work/github
  secretmenu get work/github --field username
  secretmenu get db_admin --provider infra --field other:password`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := item.ParseField(fieldName)
			if err != nil {
				return apperrors.UserError{
					Message:    "Invalid field",
					Suggestion: "Use --field username, password, totp or a custom field name",
					Err:        err,
				}
			}

			a, err := g.newApp(cmd)
			if err != nil {
				return err
			}
			value, err := a.Get(cmd.Context(), g.Provider, args[0], field)
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), value)
			return err
		},
	}

	cmd.Flags().StringVarP(&fieldName, "field", "f", "password", "Field to print")

	return cmd
}
