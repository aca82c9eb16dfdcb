package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thornlabs/pulse/internal/database"
	"github.com/thornlabs/pulse/internal/database/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database utilities",
	Long: `Database utilities for Pulse.

Examples:
  pulse db migrate    Apply pending migrations
  pulse db status     Show applied migrations`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long:  `Open the database and apply any pending schema migrations.`,
	RunE:  runDBMigrate,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied migrations",
	RunE:  runDBStatus,
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)

	rootCmd.AddCommand(dbCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	// Open applies pending migrations as a side effect.
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	applied, err := migrations.GetApplied(context.Background(), db.DB)
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}

	fmt.Printf("Database %s is up to date (%d migrations applied)\n", cfg.Database.Path, len(applied))
	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	applied, err := migrations.GetApplied(context.Background(), db.DB)
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}

	if len(applied) == 0 {
		fmt.Println("No migrations applied")
		return nil
	}

	for _, m := range applied {
		fmt.Printf("%s  applied %s\n", m.ID, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
