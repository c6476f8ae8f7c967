package indexer

import (
	"context"
	"strings"
	"testing"

	"github.com/codepr/isearch/internal/logging"
	"github.com/codepr/isearch/internal/store"
)

type fakeCorpusStore struct {
	pagesForTerm map[string][]string
}

func (f *fakeCorpusStore) Migrate(ctx context.Context) error { return nil }

func (f *fakeCorpusStore) ScanPages(ctx context.Context, fn func(store.PageContent) error) error {
	return nil
}

func (f *fakeCorpusStore) UpsertTerms(ctx context.Context, totalPages map[string]int) (map[string]int, error) {
	return nil, nil
}

func (f *fakeCorpusStore) InsertTermPageLinks(ctx context.Context, links []store.TermPageLink) error {
	return nil
}

func (f *fakeCorpusStore) PagesForTerm(ctx context.Context, term string) ([]string, error) {
	return f.pagesForTerm[term], nil
}

func TestREPLPrintsPagesAndStopsOnQuit(t *testing.T) {
	st := &fakeCorpusStore{pagesForTerm: map[string][]string{
		"golang": {"https://example.test/a", "https://example.test/b"},
	}}
	logger, err := logging.New(t.TempDir() + "/log.txt")
	if err != nil {
		t.Fatalf("logging.New failed: %v", err)
	}
	defer logger.Close()

	idx := New(st, logger, NewTokenizer(nil), 1)

	in := strings.NewReader("golang\nmissing\n(quit)\n")
	var out strings.Builder

	if err := idx.REPL(context.Background(), in, &out); err != nil {
		t.Fatalf("REPL failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "https://example.test/a") || !strings.Contains(got, "https://example.test/b") {
		t.Errorf("output missing expected URLs: %q", got)
	}
	if !strings.Contains(got, "no pages found") {
		t.Errorf("output missing 'no pages found' for unmatched term: %q", got)
	}
}
