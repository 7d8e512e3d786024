package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"tibber-insights/internal/baseline"
	"tibber-insights/internal/config"
	"tibber-insights/internal/data"
	"tibber-insights/internal/model"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "fetch":
		cmdFetch(os.Args[2:])
	case "baseline":
		cmdBaseline(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli fetch --config config.yaml [--show-tomorrow] [--history-days 30] [--hour 10]")
	fmt.Println("  cli baseline --config config.yaml [--hour 10]")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - fetch prints current/today/tomorrow spot prices straight from Tibber")
	fmt.Println("  - baseline computes the same-hour average from recorder history with Tibber fallback")
}

func cmdFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "Path to YAML config")
	showTomorrow := fs.Bool("show-tomorrow", false, "Print tomorrow prices if available")
	historyDays := fs.Int("history-days", 0, "If >0, also fetch hourly price history for this many days")
	hour := fs.Int("hour", -1, "Hour of day to filter history (0-23). Default: current local hour")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	loc := cfg.Location()
	client := data.NewTibberClient(cfg.APIToken, "", quietLogger())

	ctx := context.Background()
	prices, err := client.PriceData(ctx)
	if err != nil {
		fatal(err)
	}

	cur := prices.Current
	fmt.Println("Current price")
	fmt.Printf("  Total:    %.4f %s/kWh\n", cur.Total, cur.Currency)
	fmt.Printf("  Level:    %s\n", cur.Level)
	fmt.Printf("  StartsAt: %s\n", cur.StartsAt.Format(time.RFC3339))
	fmt.Println()

	fmt.Println("Today")
	printSeries(prices.Today, loc)

	if *showTomorrow && len(prices.Tomorrow) > 0 {
		fmt.Println()
		fmt.Println("Tomorrow")
		printSeries(prices.Tomorrow, loc)
	}

	if *historyDays > 0 {
		targetHour := *hour
		if targetHour < 0 {
			targetHour = time.Now().In(loc).Hour()
		}
		hours := *historyDays * 24
		nodes, err := client.Consumption(ctx, hours)
		if err != nil {
			fatal(err)
		}
		printHistory(nodes, targetHour, loc, cur.Currency)
	}
}

func cmdBaseline(args []string) {
	fs := flag.NewFlagSet("baseline", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "Path to YAML config")
	hour := fs.Int("hour", -1, "Hour of day (0-23). Default: current local hour")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	loc := cfg.Location()
	ctx := context.Background()

	merger := &baseline.Merger{Entity: cfg.PriceEntity, Log: quietLogger()}
	if cfg.RecorderDatabaseURL != "" {
		store, err := data.NewRecorderStore(ctx, cfg.RecorderDatabaseURL)
		if err != nil {
			fatal(err)
		}
		defer store.Close()
		merger.History = store
	}
	if cfg.Baseline.FallbackEnabled {
		merger.Fallback = data.NewTibberClient(cfg.APIToken, "", quietLogger())
	}

	now := time.Now()
	targetHour := *hour
	if targetHour < 0 {
		targetHour = now.In(loc).Hour()
	}

	res := merger.Compute(ctx, baseline.Params{
		TargetHour:       targetHour,
		LookbackDays:     cfg.Baseline.LookbackDays,
		MinSamples:       cfg.Baseline.MinSamples,
		MaxFallbackHours: cfg.Baseline.MaxFallbackHours,
		Location:         loc,
		Now:              now,
	})

	fmt.Printf("Hour (local): %02d\n", targetHour)
	fmt.Printf("Provenance:   %s\n", res.Provenance)
	fmt.Printf("Samples:      %d\n", res.SampleCount)
	if res.Provenance == model.ProvenanceMerged {
		fmt.Printf("  primary:    %d\n", res.PrimaryCount)
		fmt.Printf("  fallback:   %d\n", res.FallbackCount)
	}
	if res.Average == nil {
		fmt.Println("No valid samples found for this hour in the lookback window.")
		return
	}
	fmt.Printf("Average:      %.4f\n", *res.Average)
	fmt.Printf("Min:          %.4f\n", *res.Min)
	fmt.Printf("Max:          %.4f\n", *res.Max)
}

func printSeries(points []model.PricePoint, loc *time.Location) {
	for _, p := range points {
		fmt.Printf("  %s -> %.4f %s/kWh (%s)\n",
			p.StartsAt.In(loc).Format(time.RFC3339), p.Total, p.Currency, p.Level)
	}
}

func printHistory(nodes []model.ConsumptionPoint, hour int, loc *time.Location, currency string) {
	filtered := make([]model.ConsumptionPoint, 0, len(nodes))
	for _, n := range nodes {
		if n.From.In(loc).Hour() == hour {
			filtered = append(filtered, n)
		}
	}
	if len(filtered) == 0 {
		fmt.Printf("\nNo samples found for hour %02d.\n", hour)
		return
	}

	fmt.Println()
	fmt.Printf("History for hour %02d (local time)\n", hour)
	sum, minv, maxv := 0.0, filtered[0].EffectivePrice(), filtered[0].EffectivePrice()
	for _, n := range filtered {
		price := n.EffectivePrice()
		fmt.Printf("  %s -> %.4f %s/kWh\n", n.From.In(loc).Format(time.RFC3339), price, currency)
		sum += price
		if price < minv {
			minv = price
		}
		if price > maxv {
			maxv = price
		}
	}
	fmt.Printf("\nSamples: %d\n", len(filtered))
	fmt.Printf("Average: %.4f %s/kWh\n", sum/float64(len(filtered)), currency)
	fmt.Printf("Min:     %.4f %s/kWh\n", minv, currency)
	fmt.Printf("Max:     %.4f %s/kWh\n", maxv, currency)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
