// Command crawl runs the politeness-gated crawler described in SPEC_FULL
// §4.E-§4.H, seeded from CLI arguments or a seed file, persisting discovered
// pages into the shared Postgres schema.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codepr/isearch/internal/config"
	"github.com/codepr/isearch/internal/crawl"
	"github.com/codepr/isearch/internal/fetcher"
	"github.com/codepr/isearch/internal/logging"
	"github.com/codepr/isearch/internal/ratelimit"
	"github.com/codepr/isearch/internal/robots"
	"github.com/codepr/isearch/internal/store"
)

// defaultSeeds mirrors the original implementation's hardcoded start_urls,
// used when no seeds are given on the command line or via --seeds-file.
var defaultSeeds = []string{"https://nodejs.org/en"}

var (
	seedsFile       string
	workers         int
	timeoutSeconds  int
	maxConnsPerHost int
	maxCrawl        int
)

var rootCmd = &cobra.Command{
	Use:   "crawl [seed-url ...]",
	Short: "Crawl the web starting from the given seed URLs, polite to robots.txt",
	RunE:  runCrawl,
}

func init() {
	rootCmd.Flags().StringVar(&seedsFile, "seeds-file", "", "path to a file with one seed URL per line")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent fetch workers (default from WORKERS env or 35)")
	rootCmd.Flags().IntVar(&timeoutSeconds, "timeout", 0, "per-request timeout in seconds (default from FETCH_TIMEOUT_SECONDS env or 8)")
	rootCmd.Flags().IntVar(&maxConnsPerHost, "max-conns-per-host", 0, "max simultaneous connections per host (default from PER_HOST_CONNS env or 60)")
	rootCmd.Flags().IntVar(&maxCrawl, "max-crawl", 0, "stop after attempting this many URLs (default from MAX_CRAWL env or 1000)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	config.Load()
	cfg := config.CrawlerFromEnv()
	if workers > 0 {
		cfg.Workers = workers
	}
	if timeoutSeconds > 0 {
		cfg.FetchTimeout = time.Duration(timeoutSeconds) * time.Second
	}
	if maxConnsPerHost > 0 {
		cfg.PerHostConns = maxConnsPerHost
	}
	if maxCrawl > 0 {
		cfg.MaxCrawl = maxCrawl
	}

	seeds, err := resolveSeeds(args)
	if err != nil {
		return err
	}

	logger, err := logging.New("log.txt")
	if err != nil {
		return fmt.Errorf("crawl: open log: %w", err)
	}
	defer logger.Close()

	dsn := config.StoreFromEnv().DSN()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("crawl: connect store: %w", err)
	}
	defer st.Close()

	fc := fetcher.New(cfg.UserAgent, cfg.FetchTimeout, cfg.PerHostConns)
	robotsCache := robots.NewCache(&http.Client{Timeout: cfg.FetchTimeout}, cfg.UserAgent)
	governor := ratelimit.New()

	sup := crawl.New(st, logger, fc, robotsCache, governor, cfg.Workers, cfg.MaxCrawl)

	notifyCtx, stopNotify := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopNotify()

	logger.Progress("starting crawl with %d seed(s), %d workers, max-crawl=%d", len(seeds), cfg.Workers, cfg.MaxCrawl)
	if err := sup.Run(notifyCtx, seeds); err != nil && err != context.Canceled {
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Progress("crawl finished")
	return nil
}

func resolveSeeds(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if seedsFile != "" {
		return readSeedsFile(seedsFile)
	}
	return defaultSeeds, nil
}

func readSeedsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("crawl: open seeds file: %w", err)
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			seeds = append(seeds, line)
		}
	}
	return seeds, scanner.Err()
}
