package main

import (
	"github.com/denim-store/storefront/internal/db"
	"github.com/spf13/cobra"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back schema migrations",
	Long: `Apply or roll back the embedded schema migrations.

Examples:
  # Apply everything pending
  storefront migrate

  # Roll back the last migration
  storefront migrate --steps -1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return db.Migrate(cfg.GetDSN(), migrateSteps)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "number of migrations to apply (negative rolls back, 0 applies all)")
}
