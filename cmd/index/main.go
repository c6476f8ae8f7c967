// Command index builds the inverted index over the corpus populated by
// cmd/crawl, then serves an interactive term-lookup REPL, per SPEC_FULL
// §4.I.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codepr/isearch/internal/config"
	"github.com/codepr/isearch/internal/indexer"
	"github.com/codepr/isearch/internal/logging"
	"github.com/codepr/isearch/internal/store"
)

var (
	workers   int
	stopwords string
)

var rootCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the inverted index over the crawled corpus",
	RunE:  runIndex,
}

func init() {
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent chunk-insert workers (default from INDEX_WORKERS env or 30)")
	rootCmd.Flags().StringVar(&stopwords, "stopwords", "", "path to the stopwords file (default from STOPWORDS_FILE env or stopwords.txt)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	config.Load()
	cfg := config.IndexerFromEnv()
	if workers > 0 {
		cfg.Workers = workers
	}
	if stopwords != "" {
		cfg.Stopwords = stopwords
	}

	logger, err := logging.New("log.txt")
	if err != nil {
		return fmt.Errorf("index: open log: %w", err)
	}
	defer logger.Close()

	stopwordSet, err := indexer.LoadStopwords(cfg.Stopwords)
	if err != nil {
		return fmt.Errorf("index: load stopwords: %w", err)
	}

	dsn := config.StoreFromEnv().DSN()
	ctx := context.Background()
	st, err := store.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("index: connect store: %w", err)
	}
	defer st.Close()

	idx := indexer.New(st, logger, indexer.NewTokenizer(stopwordSet), cfg.Workers)

	logger.Progress("building index with %d workers", cfg.Workers)
	if err := idx.Build(ctx); err != nil {
		return fmt.Errorf("index: build: %w", err)
	}
	logger.Progress("index build complete")

	return idx.REPL(ctx, os.Stdin, os.Stdout)
}
