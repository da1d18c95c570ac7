package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestreldb/kestrel/cmd/kestrel/commands"
	"github.com/kestreldb/kestrel/logger"
)

var (
	verbosity  int
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Kestrel - Knowledge query language engine",
	Long: `Kestrel - A knowledge graph with its own query language.

Kestrel stores uniquely named concepts with typed propositions and queries
them through KQL: FIND, UPSERT and DELETE with WHERE, FILTER, GROUP BY,
AGGREGATE, LIMIT and CURSOR clauses.

Available commands:
  query   - Execute a KQL query against the local database
  serve   - Start the HTTP query API
  db      - Manage database operations
  version - Show version information

Examples:
  kestrel query "UPSERT Task {name: 'deploy', status: 'open'}"
  kestrel query "FIND Task WHERE status = 'open' LIMIT 10"
  kestrel serve
  kestrel db migrate`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase logging verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
