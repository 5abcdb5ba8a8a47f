package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	charmlog "github.com/charmbracelet/log"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/crawl"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/aluiziolira/go-scrape-catalog/server"
)

// stringList is a repeatable flag; comma-separated values are split.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}
	cfg := config.DefaultConfig()
	cfg.ApplyEnv()

	var products, categories stringList
	flag.Var(&products, "product", "Product URL or id to crawl (repeatable)")
	flag.Var(&categories, "category", "Category URL to expand (repeatable)")
	flag.StringVar(&cfg.InputFile, "input", config.EnvString(config.EnvPrefix+"INPUT", cfg.InputFile), "JSON input file listing product_urls and category_urls")
	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Catalog site base URL")
	flag.IntVar(&cfg.Concurrency, "parallel", cfg.Concurrency, "Number of targets crawled concurrently")
	flag.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "Session-wide request rate ceiling")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retries per transient fetch failure")
	flag.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	flag.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flag.IntVar(&cfg.ReviewPageCap, "review-pages", cfg.ReviewPageCap, "Maximum review pages per product")
	flag.IntVar(&cfg.QuestionPageCap, "question-pages", cfg.QuestionPageCap, "Maximum Q&A pages per product")
	flag.IntVar(&cfg.CategoryPageCap, "category-pages", cfg.CategoryPageCap, "Maximum listing pages per category")
	flag.IntVar(&cfg.MaxReviews, "max-reviews", cfg.MaxReviews, "Maximum reviews per product (0 = unlimited)")
	flag.IntVar(&cfg.MaxQuestions, "max-questions", cfg.MaxQuestions, "Maximum questions per product (0 = unlimited)")
	flag.BoolVar(&cfg.IncludeSimilar, "similar", cfg.IncludeSimilar, "Follow similar-product links")
	flag.IntVar(&cfg.MaxExpansionDepth, "similar-depth", cfg.MaxExpansionDepth, "Similar-product hops from each seed")
	flag.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	flag.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	flag.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: jsonl, csv, xlsx, html, dual or all")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Status server listen address (e.g. :9090)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	if cfg.OutputFormat == "htm" {
		cfg.OutputFormat = config.FormatHTML
	}
	slog.SetDefault(newLogger(cfg.Verbose))

	seeds, err := loadSeeds(cfg, append(products, flag.Args()...), categories)
	if err != nil {
		slog.Error("invalid input", slog.Any("error", err))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	slog.Info("starting crawl",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("seeds", len(seeds)),
		slog.Int("workers", cfg.Concurrency),
		slog.Bool("similar", cfg.IncludeSimilar),
	)

	metrics := scraper.NewMetrics()
	colly, err := scraper.NewCollyFetcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		return 1
	}
	fetcher, err := scraper.NewCachedFetcher(colly, cfg.CacheSize, metrics)
	if err != nil {
		slog.Error("initialising response cache", slog.Any("error", err))
		return 1
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return 1
	}

	agg := pipeline.NewAggregator(writer, metrics)
	agg.Start(2)

	var status *server.Server
	if cfg.MetricsAddr != "" {
		status = server.New(cfg.MetricsAddr, server.NewRouter(metrics.Registry, agg.Summary))
		status.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sessionDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, abandoning in-flight targets")
		case <-sessionDone:
		}
	}()

	stopProgress := startProgress(agg)
	stats, runErr := crawl.NewScheduler(cfg, fetcher, metrics).Run(ctx, seeds, agg)
	close(sessionDone)
	stopProgress()
	if runErr != nil {
		slog.Error("crawl session failed", slog.Any("error", runErr))
	}

	if err := agg.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		return 1
	}

	summary := agg.Summary()
	summary.ApplyRun(stats)

	if sw, ok := writer.(pipeline.SummaryWriter); ok {
		if err := sw.WriteSummary(summary); err != nil {
			slog.Error("write summary sheet", slog.Any("error", err))
		}
	}
	if err := writer.Validate(); err != nil {
		slog.Warn("output validation failed", slog.Any("error", err))
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		return 1
	}
	summaryPath := pipeline.SummaryPath(cfg.OutputFile)
	if err := pipeline.WriteSummaryFile(summaryPath, summary); err != nil {
		slog.Error("write summary file", slog.Any("error", err))
	}

	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := status.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(summary, cfg.OutputFile, summaryPath)

	if runErr != nil || (summary.Targets > 0 && summary.Failed == summary.Targets) {
		return 1
	}
	return 0
}

// loadSeeds merges the input file with seeds given as flags and applies the file's
// per-session options to cfg.
func loadSeeds(cfg *config.Config, products, categories []string) ([]models.Target, error) {
	in := &config.Input{}
	if cfg.InputFile != "" {
		loaded, err := config.LoadInput(cfg.InputFile)
		if err != nil {
			return nil, err
		}
		in = loaded
	}
	in.AddSeeds(products, categories)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in.Apply(cfg)
	return in.Targets(), nil
}

// startProgress shows a spinner with live counts on a terminal and periodic progress
// logs otherwise. The returned func stops it.
func startProgress(agg *pipeline.Aggregator) func() {
	if !isTerminal(os.Stderr) {
		agg.StartMetricsReporting(10 * time.Second)
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " crawling"
	s.Start()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sum := agg.Summary()
				s.Lock()
				s.Suffix = fmt.Sprintf(" crawling: %d done (%d ok, %d partial, %d failed), %d reviews",
					sum.Targets, sum.Success, sum.Partial, sum.Failed, sum.Reviews)
				s.Unlock()
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		s.Stop()
	}
}

func printSummary(s models.SessionSummary, outputFile, summaryFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")
	fmt.Printf("  Session:       %s\n", s.SessionID)
	fmt.Printf("  Targets:       %d (success %d, partial %d, failed %d)\n", s.Targets, s.Success, s.Partial, s.Failed)
	fmt.Printf("  Products:      %d\n", s.ProductsEmitted)
	fmt.Printf("  Reviews:       %d\n", s.Reviews)
	fmt.Printf("  Questions:     %d\n", s.Questions)
	fmt.Printf("  Variants:      %d\n", s.Variants)
	fmt.Printf("  Duplicates:    %d\n", s.DuplicateTargets)
	fmt.Printf("  Retries:       %d\n", s.Retries)
	if len(s.QualityFlags) > 0 {
		fmt.Printf("  Quality flags: %v\n", s.QualityFlags)
	}
	classes := make([]string, 0, len(s.ErrorSamples))
	for class := range s.ErrorSamples {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		fmt.Printf("  Errors (%s):\n", class)
		for _, sample := range s.ErrorSamples[class] {
			fmt.Printf("    - %s\n", sample)
		}
	}
	if s.Fatal != "" {
		fmt.Printf("  Fatal:         %s\n", s.Fatal)
	}
	fmt.Printf("  Duration:      %v\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Printf("  Summary file:  %s\n", summaryFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if isTerminal(os.Stderr) {
		charmLevel := charmlog.InfoLevel
		if verbose {
			charmLevel = charmlog.DebugLevel
		}
		return slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           charmLevel,
			ReportTimestamp: true,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
