package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/StockHamster/market-calendar/internal/app"
	"github.com/StockHamster/market-calendar/internal/flow"
	"github.com/StockHamster/market-calendar/internal/marketdata"
	"github.com/StockHamster/market-calendar/internal/sector"
	"github.com/StockHamster/market-calendar/pkg/models"
)

var (
	renderDate   string
	renderMarket string
	renderSector string
	renderOut    string
	renderWidth  int
	renderHeight int
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a day's market flow chart to PNG",
	Long: `Render the market flow chart of one trading date to a PNG file.

Examples:
  market-calendar render --date 20250630
  market-calendar render --date 20250630 --market kosdaq --out kosdaq.png
  market-calendar render --date 20250630 --sector 반도체`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderDate, "date", "", "Trading date (YYYYMMDD), defaults to the latest trading day")
	renderCmd.Flags().StringVar(&renderMarket, "market", "all", "Market filter (all, kospi, kosdaq)")
	renderCmd.Flags().StringVar(&renderSector, "sector", "", "Sector to highlight")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output file (default flow-<date>.png)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "Canvas width (default CHART_WIDTH)")
	renderCmd.Flags().IntVar(&renderHeight, "height", 0, "Canvas height (default CHART_HEIGHT)")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	market, err := models.ParseMarketFilter(renderMarket)
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

	date := renderDate
	if date == "" {
		cal := application.Calendar()
		day := cal.Today()
		if !cal.IsTradingDay(day) {
			day = cal.PrevTradingDay(day)
		}
		date = day.Format(marketdata.DateLayout)
	}
	if _, err := time.Parse(marketdata.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q: want YYYYMMDD", date)
	}

	canvas := application.Canvas()
	if renderWidth > 0 {
		canvas.Width = float64(renderWidth)
	}
	if renderHeight > 0 {
		canvas.Height = float64(renderHeight)
	}

	ctx, cancel := context.WithTimeout(application.GetContext(), cfg.Data.FetchTimeout*4)
	defer cancel()

	renderer := application.Renderer()
	tm := renderer.Measurer()
	s := flow.NewViewState(canvas)
	res := s.Apply(flow.RequestDate{Date: date}, tm)
	bundle, err := application.Loader().LoadDay(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", date, err)
	}
	s.Apply(flow.LoadData{Seq: res.Seq, Bundle: bundle}, tm)
	s.Apply(flow.SetFilter{Market: market}, tm)
	if renderSector != "" {
		s.Apply(flow.HoverSector{Sector: sector.Normalize(renderSector)}, tm)
	}

	out := renderOut
	if out == "" {
		out = fmt.Sprintf("flow-%s.png", date)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	frame := flow.BuildFrame(s, application.Registry(), tm)
	if err := renderer.EncodePNG(f, frame); err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}

	log.WithFields(logrus.Fields{
		"date":   date,
		"market": market,
		"labels": len(frame.Labels),
		"failed": bundle.Failed,
		"file":   out,
	}).Info("Chart rendered")
	return nil
}
