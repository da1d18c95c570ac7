package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestreldb/kestrel/sym"
)

// DbCmd groups database operations.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the Kestrel database",
	Long: sym.DB + ` db — Manage database operations

Examples:
  kestrel db migrate    # Apply pending migrations
  kestrel db stats      # Show concept and proposition counts
  kestrel db path       # Print the configured database path`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

var dbPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configured database path",
	RunE:  runDbPath,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbPathCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openDatabase applies migrations as part of opening
	database, cfg, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("%s Database migrated: %s\n", sym.DB, cfg.Database.Path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, cfg, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	var concepts, propositions, labels int
	if err := database.QueryRow("SELECT COUNT(*) FROM concepts").Scan(&concepts); err != nil {
		return fmt.Errorf("failed to count concepts: %w", err)
	}
	if err := database.QueryRow("SELECT COUNT(*) FROM propositions").Scan(&propositions); err != nil {
		return fmt.Errorf("failed to count propositions: %w", err)
	}
	if err := database.QueryRow("SELECT COUNT(DISTINCT label) FROM concepts WHERE label != ''").Scan(&labels); err != nil {
		return fmt.Errorf("failed to count labels: %w", err)
	}

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n", cfg.Database.Path)
	fmt.Printf("Concepts:      %d\n", concepts)
	fmt.Printf("Propositions:  %d\n", propositions)
	fmt.Printf("Labels:        %d\n", labels)
	return nil
}

func runDbPath(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Println(cfg.Database.Path)
	return nil
}
