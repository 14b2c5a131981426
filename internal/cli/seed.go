package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"checkin/internal/attendance"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		seed     attendance.LeaderSeed
		examples bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default leader when no leader exists",
		Long: `Create the default leader (and optionally the example members) when the
usuarios table is empty. Without --password a random password is generated
and printed once; rotate it with "leader passwd".`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.svc.Bootstrap(cmd.Context(), seed, examples)
			if err != nil {
				return WrapExitError(ExitFailure, "seed failed", err)
			}
			return e.out.Success(res, func(w io.Writer) {
				if !res.Seeded {
					io.WriteString(w, "Leaders already exist, nothing to do\n")
					return
				}
				fmt.Fprintf(w, "✓ Created leader %q\n", res.Username)
				if res.GeneratedPassword != "" {
					fmt.Fprintf(w, "  generated password: %s\n", res.GeneratedPassword)
				}
			})
		},
	}

	cmd.Flags().StringVar(&seed.Username, "username", envOr("LEADER_USERNAME", "admin"), "leader username")
	cmd.Flags().StringVar(&seed.Email, "email", envOr("LEADER_EMAIL", "admin@igreja.com"), "leader email")
	cmd.Flags().StringVar(&seed.Name, "name", envOr("LEADER_NAME", "Administrador"), "leader display name")
	cmd.Flags().StringVar(&seed.Password, "password", envOr("LEADER_PASSWORD", ""), "leader password (generated when empty)")
	cmd.Flags().BoolVar(&examples, "examples", false, "also create the example members")

	return cmd
}
