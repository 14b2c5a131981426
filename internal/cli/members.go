package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewMembersCommand creates the members command.
func NewMembersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "members",
		Short:        "List members with their latest check-in",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			members, err := e.svc.Members(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list members", err)
			}
			return e.out.Success(members, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NOME\tEMAIL\tDEPARTAMENTO\tULTIMO")
				for _, m := range members {
					last := "-"
					if m.LastCheckin != nil {
						last = fmt.Sprintf("%s %s", m.LastType, m.LastCheckin.Format("2006-01-02 15:04"))
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, dash(m.Email), dash(m.Department), last)
				}
				tw.Flush()
			})
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
