// cclview — implied foreign-currency valuation of dual-listed equities.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cclview/cclview/api"
	"github.com/cclview/cclview/internal/config"
	"github.com/cclview/cclview/internal/marketdata"
	"github.com/cclview/cclview/internal/report"
	"github.com/cclview/cclview/internal/session"
	"github.com/cclview/cclview/internal/timeseries"
	"github.com/cclview/cclview/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cclview",
	Short: "cclview — implied USD valuation of BYMA-listed equities",
	Long: `cclview derives the implied "contado con liqui" exchange rate from
dual-listed reference equities and re-expresses peso price series in
implied dollars, as raw prices or percentage returns.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cclview %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Compute Command ---

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Run a valuation over a basket of tickers",
	Long: `Fetch history for the requested tickers plus the reference pairs,
derive the implied rate, and print the result. With --svg the chart is
written to a file instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tickers, _ := cmd.Flags().GetStringSlice("tickers")
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")
		modeStr, _ := cmd.Flags().GetString("mode")
		svgPath, _ := cmd.Flags().GetString("svg")
		smaWindow, _ := cmd.Flags().GetInt("sma")

		if len(tickers) == 0 {
			return fmt.Errorf("--tickers is required")
		}

		start, err := timeseries.ParseDate(startStr)
		if err != nil {
			return err
		}
		end := timeseries.Today()
		if endStr != "" {
			if end, err = timeseries.ParseDate(endStr); err != nil {
				return err
			}
		}
		mode, err := models.ParseDisplayMode(modeStr)
		if err != nil {
			return err
		}

		orch := newOrchestrator()
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		v, err := orch.Run(ctx, session.Request{
			Tickers:   upperAll(tickers),
			Start:     start,
			End:       end,
			Mode:      mode,
			SMAWindow: smaWindow,
		})
		if err != nil {
			return err
		}

		for _, w := range v.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Ticker, w.Reason)
		}

		if svgPath != "" {
			svg := report.ValuationChart(v, report.ChartConfig{})
			if err := os.WriteFile(svgPath, []byte(svg), 0o644); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Printf("chart written to %s\n", svgPath)
			return nil
		}

		printValuation(v)
		return nil
	},
}

func init() {
	computeCmd.Flags().StringSlice("tickers", nil, "tickers to value, comma separated (e.g. ALUA.BA,PAMP.BA)")
	computeCmd.Flags().String("start", "", "window start, YYYY-MM-DD (required)")
	computeCmd.Flags().String("end", "", "window end, YYYY-MM-DD (default today)")
	computeCmd.Flags().String("mode", "present", "display mode: raw, present, start")
	computeCmd.Flags().String("svg", "", "write an SVG chart to this path instead of printing")
	computeCmd.Flags().Int("sma", 0, "rolling-mean overlay window in trading days (0 = off)")
	computeCmd.MarkFlagRequired("start") //nolint:errcheck
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		orch := newOrchestrator()
		news := marketdata.NewNews()
		srv := api.NewServer(cfg, orch, news)

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("cclview API listening on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity to the market-data source",
	RunE: func(cmd *cobra.Command, args []string) error {
		src := newSource()
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		end := timeseries.Today()
		start := end.AddDays(-7)
		s, err := src.FetchHistory(ctx, cfg.Reference.Local, start, end)
		if err != nil {
			fmt.Printf("%s: unreachable (%v)\n", src.Name(), err)
			return err
		}
		last, _ := s.Last()
		fmt.Printf("%s: ok\n", src.Name())
		fmt.Printf("  %s last close: %.2f on %s\n", cfg.Reference.Local, last.Value, last.Day)
		return nil
	},
}

// --- Helpers ---

// newSource builds the configured market-data source. Both the orchestrator
// and the status probe consume it through the Source interface.
func newSource() marketdata.Source {
	return marketdata.NewYahoo(
		marketdata.WithCacheTTL(time.Duration(cfg.Fetch.CacheTTLSec)*time.Second),
		marketdata.WithTimeout(time.Duration(cfg.Fetch.TimeoutSec)*time.Second),
	)
}

func newOrchestrator() *session.Orchestrator {
	return session.New(newSource(), session.Config{
		ReferenceLocal:   cfg.Reference.Local,
		ReferenceForeign: cfg.Reference.Foreign,
		FallbackLocal:    cfg.Reference.FallbackLocal,
		FallbackForeign:  cfg.Reference.FallbackForeign,
		FallbackRatio:    cfg.Reference.FallbackRatio,
		MaxConcurrent:    cfg.Fetch.Concurrency,
	})
}

func printValuation(v *models.Valuation) {
	if v.RateSource != "" {
		fmt.Printf("rate source: %s\n", v.RateSource)
	}
	for _, s := range v.Series {
		fmt.Printf("\n%s\n", s.Ticker)
		for _, p := range s.Points {
			unit := ""
			if v.Mode != models.ModeRawPrice {
				unit = "%"
			}
			fmt.Printf("  %s  %10.2f%s\n", p.Date, p.Value, unit)
		}
	}
}

func upperAll(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
