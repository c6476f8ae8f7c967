package indexer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/codepr/isearch/internal/logging"
	"github.com/codepr/isearch/internal/store"
)

const (
	// minPageCount prunes a term whose page-list is this length or shorter.
	minPageCount = 10
	// shortTermMin/shortTermMax bound the extra prune applied to terms
	// outside this length range, which must appear on at least
	// minPopularPageCount pages to survive.
	shortTermMin        = 4
	shortTermMax        = 15
	minPopularPageCount = 20
)

// termDict maps a term to every distinct page id it occurs on: one entry per
// page regardless of how many times the term appears on that page, matching
// the original's Counter-then-append (it collapses per-page occurrence
// counts before appending the page id).
type termDict map[string][]int

// corpusStore is the subset of *store.Store the Indexer depends on, kept
// narrow so tests can substitute a fake in place of a live Postgres pool.
type corpusStore interface {
	Migrate(ctx context.Context) error
	ScanPages(ctx context.Context, fn func(store.PageContent) error) error
	UpsertTerms(ctx context.Context, totalPages map[string]int) (map[string]int, error)
	InsertTermPageLinks(ctx context.Context, links []store.TermPageLink) error
	PagesForTerm(ctx context.Context, term string) ([]string, error)
}

// Indexer builds and queries the inverted index over a corpusStore-backed
// corpus, per SPEC_FULL §4.I.
type Indexer struct {
	store     corpusStore
	logger    *logging.Logger
	tokenizer *Tokenizer
	workers   int
}

// New builds an Indexer.
func New(st corpusStore, logger *logging.Logger, tokenizer *Tokenizer, workers int) *Indexer {
	return &Indexer{store: st, logger: logger, tokenizer: tokenizer, workers: workers}
}

// Build runs phases 1-5: scan, tokenise, aggregate+prune, insert terms,
// insert term-page edges.
func (idx *Indexer) Build(ctx context.Context) error {
	if err := idx.store.Migrate(ctx); err != nil {
		return err
	}

	dict := make(termDict)
	pagesScanned := 0
	err := idx.store.ScanPages(ctx, func(pc store.PageContent) error {
		seen := make(map[string]struct{})
		for _, term := range idx.tokenizer.Terms(pc.Content) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			dict[term] = append(dict[term], pc.PageID)
		}
		pagesScanned++
		if pagesScanned%50 == 0 {
			idx.logger.Progress("processed %d pages", pagesScanned)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexer: scan: %w", err)
	}

	totalPages := pruneTerms(dict)
	idx.logger.Progress("adding %d terms", len(totalPages))

	termIDs, err := idx.store.UpsertTerms(ctx, totalPages)
	if err != nil {
		return fmt.Errorf("indexer: upsert terms: %w", err)
	}

	idx.logger.Progress("creating term-page links")
	links := expandLinks(dict, termIDs)
	chunks := store.ChunkLinks(links)
	idx.logger.Progress("%d total chunks", len(chunks))

	return idx.insertChunks(ctx, chunks)
}

// pruneTerms drops terms whose page-list is too small to be worth indexing
// and returns the surviving terms' page counts, per §4.I Phase 3. The
// distinction between "generic short/long terms" (min 20 pages) and
// "ordinary-length terms" (min 11 pages) mirrors the original's asymmetric
// prune.
func pruneTerms(dict termDict) map[string]int {
	totalPages := make(map[string]int)
	for term, pages := range dict {
		pageCount := len(pages)
		if pageCount <= minPageCount {
			delete(dict, term)
			continue
		}
		length := len(term)
		if (length < shortTermMin || length > shortTermMax) && pageCount < minPopularPageCount {
			delete(dict, term)
			continue
		}
		totalPages[term] = pageCount
	}
	return totalPages
}

// expandLinks builds the (termId, pageId) edge rows for every surviving
// term, per §4.I Phase 5.
func expandLinks(dict termDict, termIDs map[string]int) []store.TermPageLink {
	var links []store.TermPageLink
	for term, termID := range termIDs {
		for _, pageID := range dict[term] {
			links = append(links, store.TermPageLink{TermID: termID, PageID: pageID})
		}
	}
	return links
}

// insertChunks distributes chunk inserts across a worker pool bounded by
// idx.workers. Each chunk is sent as its own pgx.Batch and commits on its
// own; there is no explicit transaction spanning several chunks, so the
// worker pool just bounds in-flight chunks. A failed chunk is logged and
// skipped.
func (idx *Indexer) insertChunks(ctx context.Context, chunks [][]store.TermPageLink) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			if err := idx.store.InsertTermPageLinks(gctx, chunk); err != nil {
				idx.logger.Error("insert_chunk", err)
				return nil
			}
			return nil
		})
	}
	return g.Wait()
}
