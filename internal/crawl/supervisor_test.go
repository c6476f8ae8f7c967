package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/codepr/isearch/internal/fetcher"
	"github.com/codepr/isearch/internal/logging"
	"github.com/codepr/isearch/internal/ratelimit"
	"github.com/codepr/isearch/internal/robots"
)

type fakeStore struct {
	mu    sync.Mutex
	pages map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{pages: make(map[string]string)}
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }

func (f *fakeStore) PersistPage(ctx context.Context, pageURL, text string, outlinks []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[pageURL] = text
	return nil
}

func (f *fakeStore) snapshot() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.pages))
	for k, v := range f.pages {
		out[k] = v
	}
	return out
}

func TestSupervisorRunCrawlsSeedAndOutlink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/about">About</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>About us</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st := newFakeStore()
	logger, err := logging.New(t.TempDir() + "/log.txt")
	if err != nil {
		t.Fatalf("logging.New failed: %v", err)
	}
	defer logger.Close()

	fc := fetcher.New(robots.UserAgent, 2*time.Second, 10)
	robotsCache := robots.NewCache(http.DefaultClient, robots.UserAgent)
	governor := ratelimit.New()

	sup := New(st, logger, fc, robotsCache, governor, 2, 2)

	// maxCrawl=2 against exactly two reachable pages: once the frontier and
	// parse queue genuinely drain, the supervisor must cancel its own
	// context and Run must return on its own well before this deadline -
	// hitting it would mean the staged shutdown never observed drain.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sup.Run(ctx, []string{srv.URL + "/"}); err != nil {
		t.Fatalf("Run failed (supervisor did not self-terminate after maxCrawl): %v", err)
	}

	pages := st.snapshot()
	if len(pages) == 0 {
		t.Fatal("expected at least one page persisted")
	}
	found := false
	for url, text := range pages {
		if url == srv.URL+"/about" {
			found = true
			if text == "" {
				t.Errorf("expected non-empty text for %s", url)
			}
		}
	}
	if !found {
		t.Errorf("expected the discovered outlink %s/about to be persisted, got %v", srv.URL, pages)
	}
}
