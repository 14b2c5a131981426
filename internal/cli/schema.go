package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "schema",
		Short:        "Create the database tables if they do not exist",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			return e.out.Success(map[string]string{"driver": e.db.Driver}, func(w io.Writer) {
				io.WriteString(w, "✓ Schema up to date\n")
			})
		},
	}
}
