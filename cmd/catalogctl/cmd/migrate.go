package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/biblioteca/catalog-api/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(r *db.MigrationRunner) error {
			if err := r.Up(); err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations, all of them unless steps is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}

		return withRunner(cmd, func(r *db.MigrationRunner) error {
			var err error
			if steps > 0 {
				err = r.Steps(-steps)
			} else {
				err = r.Down()
			}
			if err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd, func(r *db.MigrationRunner) error {
			return printVersion(cmd, r)
		})
	},
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations, clearing the dirty flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withRunner(cmd, func(r *db.MigrationRunner) error {
			if err := r.Force(version); err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var migrateDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop every table in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmDrop {
			return fmt.Errorf("refusing to drop without --yes")
		}
		return withRunner(cmd, func(r *db.MigrationRunner) error {
			if err := r.Drop(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database dropped")
			return nil
		})
	},
}

var migrateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the embedded migration files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := db.ListMigrations()
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

var confirmDrop bool

func init() {
	migrateDropCmd.Flags().BoolVar(&confirmDrop, "yes", false, "Confirm dropping all tables")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	migrateCmd.AddCommand(migrateForceCmd)
	migrateCmd.AddCommand(migrateDropCmd)
	migrateCmd.AddCommand(migrateListCmd)
}

// withRunner opens the database, runs fn against a migration runner and
// releases both
func withRunner(cmd *cobra.Command, fn func(r *db.MigrationRunner) error) error {
	if databaseURL == "" {
		return fmt.Errorf("database url is required (--database-url or CATALOG_DATABASE_URL)")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, err := db.Open(cmd.Context(), db.Config{URL: databaseURL})
	if err != nil {
		return err
	}

	runner, err := db.NewMigrationRunner(conn, logger)
	if err != nil {
		conn.Close()
		return err
	}
	defer runner.Close()

	return fn(runner)
}

func printVersion(cmd *cobra.Command, r *db.MigrationRunner) error {
	version, dirty, err := r.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", version)
	return nil
}
