package commands

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/StockHamster/market-calendar/internal/app"
	"github.com/StockHamster/market-calendar/internal/calendar"
	"github.com/StockHamster/market-calendar/internal/marketdata"
)

var (
	backfillFrom string
	backfillTo   string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill mover history into InfluxDB",
	Long: `Load the published flow files of every trading day in a range and
write their movers to InfluxDB, where the sector history endpoint reads them.

Examples:
  market-calendar backfill --from 2025-06-30
  market-calendar backfill --from 2025-06-30 --to 2025-07-31`,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First date (YYYY-MM-DD), defaults to FEATURES_FLOW_START_DATE")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last date (YYYY-MM-DD), defaults to today")

	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	application := app.New(cfg, log)
	if err := application.InitializeData(); err != nil {
		return err
	}
	defer application.Close()

	if err := application.InitializeHistory(); err != nil {
		return err
	}

	cal := application.Calendar()
	from := cfg.Features.FlowStart()
	to := cal.Today()
	if backfillFrom != "" {
		if from, err = time.ParseInLocation(calendar.ISOLayout, backfillFrom, cal.Location()); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if backfillTo != "" {
		if to, err = time.ParseInLocation(calendar.ISOLayout, backfillTo, cal.Location()); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}
	if to.Before(from) {
		return fmt.Errorf("--to %s is before --from %s", calendar.ISOKey(to), calendar.ISOKey(from))
	}

	ctx := application.GetContext()
	loader := application.Loader()
	history := application.History()

	var days, points int
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !cal.IsTradingDay(d) {
			continue
		}
		date := d.Format(marketdata.DateLayout)
		entry := log.WithField("date", date)

		bundle, err := loader.LoadDay(ctx, date)
		if err != nil {
			entry.WithError(err).Warn("Skipping day")
			continue
		}
		if bundle.Empty() {
			entry.WithField("failed", bundle.Failed).Debug("No movers")
			continue
		}

		n, err := history.WriteBundle(ctx, bundle)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", date, err)
		}
		days++
		points += n
		entry.WithField("points", n).Info("Day written")
	}

	log.WithFields(logrus.Fields{
		"from":   calendar.ISOKey(from),
		"to":     calendar.ISOKey(to),
		"days":   days,
		"points": points,
	}).Info("✅ Backfill complete")
	return nil
}
