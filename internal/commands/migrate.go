package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/StockHamster/market-calendar/internal/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the visit counter schema",
	Long: `Create the visit counter table in the configured backend
(VISITS_DRIVER=mysql or sqlite). Running it again is a no-op.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	store, err := database.OpenVisitStore(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open visit store: %w", err)
	}
	if store == nil {
		log.Info("Visit counter disabled, nothing to migrate")
		return nil
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.WithField("driver", cfg.Visits.Driver).Info("✅ Visit schema ready")
	return nil
}
