package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"callscan/internal/analyzer"
	"callscan/internal/broker/schwab"
	"callscan/internal/config"
	"callscan/internal/export"
	"callscan/internal/rank"
	"callscan/internal/web"
	"callscan/pkg/model"
)

var (
	cfgFile  string
	symbol   string
	maxDelta float64
	weeks    int
	format   string
	csvPath  string
	port     int
	verbose  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "callscan",
		Short: "Covered-call contract scanner and ranker",
		Long: `Callscan ranks covered-call contracts for a ticker by a
low-maintenance income score: per weekly expiration it keeps the
highest-premium out-of-the-money call under your delta ceiling, then
orders the leaders by stability (|theta|/gamma) with IV as tie-break.

Examples:
  callscan analyze --symbol AMZN
  callscan analyze --symbol AAPL --max-delta 0.25 --weeks 4 --csv picks.csv
  callscan serve --port 8080`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "show detailed output")

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one ticker and print ranked covered-call candidates",
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVar(&symbol, "symbol", "", "ticker to analyze (required)")
	analyzeCmd.Flags().Float64Var(&maxDelta, "max-delta", 0, "delta ceiling, in (0, 1]")
	analyzeCmd.Flags().IntVar(&weeks, "weeks", 0, "number of weekly expirations to consider")
	analyzeCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	analyzeCmd.Flags().StringVar(&csvPath, "csv", "", "also write candidates to this CSV file")
	analyzeCmd.MarkFlagRequired("symbol")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis dashboard",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")

	rootCmd.AddCommand(analyzeCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) (*analyzer.Analyzer, analyzer.Params, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, analyzer.Params{}, nil, fmt.Errorf("loading config: %w", err)
	}

	params := analyzer.Params{
		MaxDelta:  cfg.Analysis.MaxDelta,
		Weeks:     cfg.Analysis.Weeks,
		RSIPeriod: cfg.Analysis.RSIPeriod,
	}
	if cmd.Flags().Changed("max-delta") {
		params.MaxDelta = maxDelta
	}
	if cmd.Flags().Changed("weeks") {
		params.Weeks = weeks
	}
	cfg.Analysis.MaxDelta = params.MaxDelta
	cfg.Analysis.Weeks = params.Weeks

	if err := cfg.Validate(); err != nil {
		return nil, analyzer.Params{}, nil, err
	}

	client := schwab.NewClient(schwab.Credentials{
		ClientID:     cfg.Schwab.ClientID,
		ClientSecret: cfg.Schwab.ClientSecret,
	}, cfg.Schwab.RateLimit)

	return analyzer.New(client), params, cfg, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, params, _, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted.")
		cancel()
	}()

	ticker := strings.ToUpper(strings.TrimSpace(symbol))

	bar := progressbar.NewOptions(3,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("Analyzing %s", ticker)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	a.SetProgressCallback(func(stage string, done, total int) {
		bar.Set(done)
	})

	report, err := a.Analyze(ctx, ticker, params)
	if err != nil {
		return err
	}

	bar.Finish()
	fmt.Println()

	if csvPath != "" {
		if err := writeCSVFile(csvPath, report); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", csvPath)
	}

	if format == "json" {
		return outputJSON(report)
	}
	return outputTable(report)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, params, cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	listenPort := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		listenPort = port
	}

	srv := web.NewServer(a, params)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(listenPort)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func writeCSVFile(path string, report *model.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return export.Write(f, report)
}

func outputTable(report *model.Report) error {
	fmt.Printf("%s @ $%.2f", report.Symbol, report.SpotPrice)
	if report.NextEarnings != "" {
		fmt.Printf(" | Next earnings: %s", report.NextEarnings)
	}
	fmt.Println()

	if t := report.Technicals; t != nil {
		fmt.Printf("RSI(14): %.1f | Support: $%.2f | Resistance: $%.2f\n",
			t.RSI, t.Support, t.Resistance)
	} else {
		fmt.Println("Technicals unavailable (price history fetch failed)")
	}
	fmt.Println()

	if report.Warning != "" {
		fmt.Println(report.Warning)
		return nil
	}

	best, ok := report.BestPick()
	if !ok {
		fmt.Println("No candidates found.")
		return nil
	}

	printPick("Best low-maintenance income trade", report, best)
	if second, ok := rank.SecondPick(report.Ranked); ok {
		printPick("Second best (week 2+)", report, second)
	}
	fmt.Println()

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{
			"Expiration", "DTE", "Strike", "Premium", "Delta", "Gamma",
			"Theta", "IV", "Stability", "ARIF", "Volume", "OI",
		}),
	)

	for _, c := range report.Ranked {
		table.Append([]string{
			c.Expiration,
			fmt.Sprintf("%d", c.DTE),
			fmt.Sprintf("$%.2f", c.Strike),
			fmt.Sprintf("$%.2f", c.Premium),
			fmt.Sprintf("%.3f", c.Delta),
			fmt.Sprintf("%.4f", c.Gamma),
			fmt.Sprintf("%.4f", c.Theta),
			fmt.Sprintf("%.1f%%", c.IV),
			fmt.Sprintf("%.4f", c.Stability),
			fmt.Sprintf("%.2f%%", c.ARIF),
			fmt.Sprintf("%d", c.Volume),
			fmt.Sprintf("%d", c.OpenInterest),
		})
	}

	table.Render()

	fmt.Printf("\n%d expirations ranked (delta ≤ %.2f, next %d weeks)\n",
		len(report.Ranked), report.MaxDelta, report.Weeks)
	return nil
}

func printPick(title string, report *model.Report, c model.Candidate) {
	distance := (c.Strike - report.SpotPrice) / report.SpotPrice * 100
	premiumYield := c.Premium / report.SpotPrice * 100

	fmt.Printf("\n%s:\n", title)
	fmt.Printf("  %s %s $%.2f Call\n", report.Symbol, c.Expiration, c.Strike)
	fmt.Printf("  Strike distance: %+.2f%% | Premium yield: %.2f%%\n", distance, premiumYield)
	fmt.Printf("  Stability: %.4f | ARIF: %.2f%% | Delta: %.3f\n", c.Stability, c.ARIF, c.Delta)
}

func outputJSON(report *model.Report) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
