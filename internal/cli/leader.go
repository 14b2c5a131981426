package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"checkin/internal/attendance"
	"checkin/internal/auth"
)

const minPasswordLen = 8

// NewLeaderCommand groups the leader account commands.
func NewLeaderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leader",
		Short: "Manage leader accounts",
	}
	cmd.AddCommand(newLeaderCreateCommand(rootOpts))
	cmd.AddCommand(newLeaderPasswdCommand(rootOpts))
	return cmd
}

func newLeaderCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var username, email, name, password string

	cmd := &cobra.Command{
		Use:          "create",
		Short:        "Create a leader account",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < minPasswordLen {
				return NewExitError(ExitCommandError, fmt.Sprintf("password must have at least %d characters", minPasswordLen))
			}
			if name == "" {
				name = username
			}
			e, err := rootOpts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to hash password", err)
			}
			l, err := e.repo.InsertLeader(cmd.Context(), username, email, name, hash)
			if err != nil {
				if errors.Is(err, attendance.ErrConstraintViolation) {
					return NewExitError(ExitFailure, "a leader with this username or email already exists")
				}
				return WrapExitError(ExitFailure, "failed to create leader", err)
			}
			e.out.Log.WithField("leader_id", l.ID).Info("leader created")
			return e.out.Success(map[string]string{"id": l.ID, "username": l.Username}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Created leader %q\n", l.Username)
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "leader username")
	cmd.Flags().StringVar(&email, "email", "", "leader email")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to username)")
	cmd.Flags().StringVar(&password, "password", "", "leader password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newLeaderPasswdCommand(rootOpts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:          "passwd <username-or-email>",
		Short:        "Replace a leader's password",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < minPasswordLen {
				return NewExitError(ExitCommandError, fmt.Sprintf("password must have at least %d characters", minPasswordLen))
			}
			e, err := rootOpts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to hash password", err)
			}
			if err := e.repo.UpdateLeaderPassword(cmd.Context(), args[0], hash); err != nil {
				if errors.Is(err, attendance.ErrNotFound) {
					return NewExitError(ExitFailure, fmt.Sprintf("no leader matches %q", args[0]))
				}
				return WrapExitError(ExitFailure, "failed to update password", err)
			}
			return e.out.Success(map[string]string{"leader": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Password updated for %q\n", args[0])
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
