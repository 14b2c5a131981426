package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"checkin/internal/attendance"
	"checkin/internal/metrics"
	"checkin/internal/store"
	"checkin/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBDriver    string
	DatabaseURL string
	Format      string // "json" | "text"
	Verbose     bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the operator CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "checkinctl",
		Short: "Operator tools for the worker check-in service",
		Long: `Maintain the check-in database: create the schema, seed the default
leader, manage leader accounts and list members.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.DatabaseURL == "" {
				return NewExitError(ExitCommandError, "database url is required (--database-url or DATABASE_URL)")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DBDriver, "db-driver", envOr("DB_DRIVER", store.DriverPostgres), "database driver (pgx|sqlite3)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "database connection string")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewLeaderCommand(opts))
	cmd.AddCommand(NewMembersCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// env bundles what a command needs once the database is open.
type env struct {
	db   *store.DB
	repo *attendance.Repository
	svc  *attendance.Service
	out  *OutputFormatter
}

func (e *env) Close() {
	_ = e.db.Close()
}

// open connects, ensures the schema and builds the service. Geolocation is
// never used from the CLI.
func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command) (*env, error) {
	db, err := store.Open(o.DBDriver, o.DatabaseURL)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, WrapExitError(ExitCommandError, "failed to ensure schema", err)
	}

	log := logger.Discard()
	if o.Verbose {
		log = logger.New("debug")
		log.SetOutput(cmd.ErrOrStderr())
	}
	repo := attendance.NewRepository(db.Client)
	return &env{
		db:   db,
		repo: repo,
		svc:  attendance.NewService(repo, nil, log, metrics.New(), attendance.Options{}),
		out:  o.formatter(cmd, log),
	}, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command, log *logrus.Logger) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout(), Log: log}
}
