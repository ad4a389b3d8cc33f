package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/biblioteca/catalog-api/internal/logging"
)

var (
	databaseURL string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Catalog administration CLI",
	Long: `catalogctl manages the catalog database. Use it to apply, roll back and
inspect schema migrations.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if databaseURL == "" {
			databaseURL = os.Getenv("CATALOG_DATABASE_URL")
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (also set via CATALOG_DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log migration progress")
	rootCmd.AddCommand(migrateCmd)
}

func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	h, err := logging.New(logging.Options{Level: "debug", Format: "console"})
	if err != nil {
		return nil, err
	}
	return h.Logger, nil
}
