// Command report prints a portfolio report for one wallet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"blend-portfolio/internal/app"
	"blend-portfolio/internal/config"
	"blend-portfolio/internal/logger"
	"blend-portfolio/internal/reporting"
)

func main() {
	// Parse flags
	configDir := flag.String("config", ".", "Directory containing config.yaml")
	user := flag.String("user", "", "Wallet address (defaults to the demo wallet with the memory backend)")
	tz := flag.String("tz", "", "IANA timezone for local days (defaults to app.default_timezone)")
	days := flag.Int("days", reporting.DefaultDays, "Balance history window in days")
	assets := flag.String("assets", "", "Comma-separated asset addresses for balance histories (default: all held)")
	format := flag.String("format", "markdown", "Output format: markdown, json or csv")
	outputDir := flag.String("output-dir", "", "Write files here instead of stdout")
	lpPrice := flag.Float64("lp-price", 0, "Current backstop LP token price in USD (0 to skip USD values)")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Options{Level: cfg.App.LogLevel, Environment: cfg.App.Environment})
	log := logger.ForComponent("report")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg, time.Now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if *user == "" {
		if a.Demo == nil {
			fmt.Fprintln(os.Stderr, "Error: --user is required")
			os.Exit(1)
		}
		*user = a.Demo.User
		log.Info().Str("user", *user).Msg("reporting on the demo wallet")
	}

	req := reporting.Request{UserAddress: *user, Timezone: *tz, Days: *days}
	if *assets != "" {
		req.Assets = strings.Split(*assets, ",")
	}
	if *lpPrice > 0 {
		req.LPPriceUSD = lpPrice
	}

	r, err := reporting.NewGenerator(a.Service).Generate(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	files, err := render(r, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *outputDir == "" {
		for _, f := range files {
			fmt.Print(f.body)
		}
		return
	}
	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Portfolio report generated successfully:")
	for _, f := range files {
		path := filepath.Join(*outputDir, f.name)
		if err := os.WriteFile(path, []byte(f.body), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("  - %s\n", path)
	}
}

type file struct {
	name string
	body string
}

func render(r *reporting.Report, format string) ([]file, error) {
	switch format {
	case "markdown", "md":
		return []file{{"PORTFOLIO_REPORT.md", reporting.RenderMarkdown(r)}}, nil
	case "json":
		body, err := reporting.RenderJSON(r)
		if err != nil {
			return nil, err
		}
		return []file{{"portfolio_report.json", body}}, nil
	case "csv":
		return []file{
			{"cost_basis.csv", reporting.RenderCostBasisCSV(r.CostBasis)},
			{"balances.csv", reporting.RenderBalancesCSV(r.Histories)},
			{"transactions.csv", reporting.RenderTransactionsCSV(r.Summary.Yield.Transactions)},
			{"q4w.csv", reporting.RenderQ4WCSV(r.Summary.Q4W.Positions)},
		}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: want markdown, json or csv", format)
	}
}
