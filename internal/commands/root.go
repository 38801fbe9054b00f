package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/StockHamster/market-calendar/pkg/logger"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "market-calendar",
	Short: "Korean market calendar and market flow chart service",
	Long: `Serves the Korean stock market calendar and the intraday "market flow"
chart of the day's top movers.

Features:
• Trading-day calendar with KRX holidays and tagged notes
• Market flow chart as JSON layout, PNG and live WebSocket sessions
• Sector styles and leading-sector badges
• Post-close refresh jobs with optional Redis, InfluxDB and NATS backends`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setup loads .env, the configuration and the logger shared by every command
func setup() (*config.Config, *logrus.Logger, error) {
	if file, err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: %s not loaded: %v\n", file, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}
