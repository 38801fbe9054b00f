package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/StockHamster/market-calendar/internal/app"
	"github.com/StockHamster/market-calendar/pkg/models"
)

var (
	exportView string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a calendar view's notes as JSON",
	Long: `Fetch the published notes of a calendar view and write them in the
file format the calendar publishes.

Examples:
  market-calendar export --view schedule
  market-calendar export --view record --out record.json`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportView, "view", "schedule", "Calendar view (schedule, record)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	view, err := models.ParseCalendarView(exportView)
	if err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	application := app.New(cfg, log)
	if err := application.InitializeData(); err != nil {
		return err
	}
	defer application.Close()

	data, err := application.Board().Export(application.GetContext(), view)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", view, err)
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	log.WithField("file", exportOut).Info("Notes exported")
	return nil
}
