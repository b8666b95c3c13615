package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"alphaspike/pkg/config"
	"alphaspike/pkg/server"
	"alphaspike/pkg/util"
)

const usage = `Usage: alphaspike <command> [flags]

Commands:
  sync         pull daily bars up to an end date
  scan         run feature detectors over the universe
  backtest     replay a feature over a calendar year
  track        report forward performance of stored signals
  serve        run the HTTP API (and daily schedule when enabled)
  clear-cache  drop cached scan results and sync markers (all by default)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "sync":
		err = runSync(args)
	case "scan":
		err = runScan(args)
	case "backtest":
		err = runBacktest(args)
	case "track":
		err = runTrack(args)
	case "serve":
		err = runServe(args)
	case "clear-cache":
		err = runClearCache(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func newApp(configPath string, overrides ...func(*config.Config)) (*server.App, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	return server.New(cfg)
}

// withSyncWorkers overrides the configured sync pool size. Zero or
// negative keeps the config value.
func withSyncWorkers(n int) func(*config.Config) {
	return func(cfg *config.Config) {
		if n > 0 {
			cfg.Scan.SyncWorkers = n
		}
	}
}

// withScanWorkers overrides the configured scan pool size.
func withScanWorkers(n int) func(*config.Config) {
	return func(cfg *config.Config) {
		if n > 0 {
			cfg.Scan.Workers = n
		}
	}
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	end := fs.String("end", util.LastWeekday(util.Today()), "end date, YYYYMMDD")
	workers := fs.Int("workers", 0, "parallel sync workers (default: from config)")
	fs.Parse(args)

	app, err := newApp(*configPath, withSyncWorkers(*workers))
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.Syncer.Run(context.Background(), *end)
	if err != nil {
		return err
	}
	fmt.Printf("synced %d bars across %d symbols (%d skipped, %d failed)\n",
		summary.BarsAdded, summary.Succeeded, summary.Skipped, summary.Failed)
	return nil
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	end := fs.String("end", util.LastWeekday(util.Today()), "end date, YYYYMMDD")
	features := fs.String("features", "", "comma-separated feature names (default: all)")
	force := fs.Bool("force", false, "recompute even when a cached result exists")
	workers := fs.Int("workers", 0, "parallel scan workers (default: from config)")
	fs.Parse(args)

	app, err := newApp(*configPath, withScanWorkers(*workers))
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.Scanner.Scan(context.Background(), *end, splitList(*features), *force)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%-24s %-8s %3d hits (scanned %d, skipped %d, errors %d)\n",
			r.Feature, r.Status, len(r.Symbols), r.Scanned, r.Skipped, r.Errors)
		for _, sym := range r.Symbols {
			fmt.Printf("  %s\n", sym)
		}
	}
	return nil
}

func runBacktest(args []string) error {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	featureName := fs.String("feature", "", "feature name (required)")
	year := fs.Int("year", 0, "calendar year to replay (required)")
	holding := fs.Int("holding", 0, "holding period in trading days (default: from config)")
	fs.Parse(args)

	if *featureName == "" || *year == 0 {
		fs.Usage()
		return fmt.Errorf("-feature and -year are required")
	}

	app, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	days := *holding
	if days <= 0 {
		days = app.Cfg.Scan.HoldingDays
	}
	report, err := app.Backtest.Run(context.Background(), *featureName, *year, days)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runTrack(args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	featureName := fs.String("feature", "", "feature name (default: all stored features)")
	date := fs.String("date", "", "restrict to signals from one scan date, YYYYMMDD")
	fs.Parse(args)

	app, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	reports, err := app.Tracker.Track(context.Background(), *featureName, *date)
	if err != nil {
		return err
	}
	return printJSON(reports)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	fs.Parse(args)

	app, err := newApp(*configPath)
	if err != nil {
		return err
	}
	return app.Serve()
}

func runClearCache(args []string) error {
	fs := flag.NewFlagSet("clear-cache", flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	featureName := fs.String("feature", "", "drop cached results for one feature only")
	syncMarkers := fs.Bool("sync-markers", false, "drop per-day sync markers only")
	fs.Parse(args)

	if *featureName != "" && *syncMarkers {
		fs.Usage()
		return fmt.Errorf("-feature and -sync-markers are mutually exclusive")
	}

	app, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	switch {
	case *syncMarkers:
		if err := app.Coord.InvalidateSyncMarkers(ctx); err != nil {
			return err
		}
		fmt.Println("sync markers cleared")
	case *featureName != "":
		n, err := app.Coord.InvalidateFeature(ctx, *featureName)
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d stored signal rows for %s\n", n, *featureName)
	default:
		n, err := app.Coord.InvalidateAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d stored signal rows and all sync markers\n", n)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
