// Package frontier implements the fair, deduplicated URL frontier (SPEC_FULL
// §4.B): a bounded ready queue fed by a staging buffer that is periodically
// reshuffled to interleave registrable domains, so that consecutive Get
// calls span as many distinct domains as possible.
package frontier

import (
	"context"
	"net/url"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/codepr/isearch/internal/queue"
	"github.com/codepr/isearch/internal/urlnorm"
)

const (
	// ReadyQueueCapacity bounds the frontier's ready queue. Put never writes
	// to the ready queue directly; Shuffle keeps in staging any entry the
	// full ready queue cannot take, so nothing is dropped.
	ReadyQueueCapacity = 25000
	// ShuffleBatch is the maximum number of staged entries drained into a
	// single Shuffle pass; leftovers are retained for the next pass.
	ShuffleBatch = 10000
	// bloomEstimate sizes the probabilistic pre-filter for a crawl on the
	// order of a few hundred thousand URLs at a 0.1% false-positive rate.
	bloomEstimate = 500000
	bloomFPRate   = 0.001
)

// Frontier is the unique, fair, host-interleaved URL frontier described in
// SPEC_FULL §4.B.
type Frontier struct {
	ready   *queue.Queue[string]
	staging []string

	seenMu sync.Mutex
	seen   map[string]struct{}
	filter *bloom.BloomFilter
}

// New creates an empty Frontier.
func New() *Frontier {
	return &Frontier{
		ready:  queue.New[string](ReadyQueueCapacity),
		seen:   make(map[string]struct{}),
		filter: bloom.NewWithEstimates(bloomEstimate, bloomFPRate),
	}
}

// Put idempotently enqueues url: if url was never seen before it is added to
// the seen set and appended to the staging buffer. A Put that would exceed
// the ready queue capacity is absorbed into staging instead of dropped -
// only an over-full staging buffer beyond ShuffleBatch defers entries to the
// next Shuffle, per SPEC_FULL §4.B.
func (f *Frontier) Put(rawURL string) {
	// Bloom filter first: a miss here is a guaranteed first-sighting, so
	// the common case (a brand-new URL) never touches the guard mutex's
	// exact map beyond the single insert below.
	f.seenMu.Lock()
	if f.filter.TestString(rawURL) {
		_, exists := f.seen[rawURL]
		if exists {
			f.seenMu.Unlock()
			return
		}
		f.seen[rawURL] = struct{}{}
		f.filter.AddString(rawURL)
		f.staging = append(f.staging, rawURL)
		f.seenMu.Unlock()
		return
	}

	f.seen[rawURL] = struct{}{}
	f.filter.AddString(rawURL)
	f.staging = append(f.staging, rawURL)
	f.seenMu.Unlock()
}

// Get blocks until a URL is available in the ready queue or ctx is
// cancelled.
func (f *Frontier) Get(ctx context.Context) (string, error) {
	return f.ready.Get(ctx)
}

// TaskDone marks one dequeued URL as fully processed (fetched, and either
// persisted or dropped per the error taxonomy).
func (f *Frontier) TaskDone() {
	f.ready.TaskDone()
}

// Empty reports whether the frontier has no ready entries, no outstanding
// in-flight tasks, and nothing left in the still-to-be-shuffled staging
// buffer.
func (f *Frontier) Empty() bool {
	return f.ready.Empty() && len(f.staging) == 0
}

// Length returns the number of URLs currently sitting in the ready queue.
func (f *Frontier) Length() int {
	return f.ready.Length()
}

// Shuffle drains the ready queue back into staging, then takes up to
// ShuffleBatch entries from the staging head, groups them by registrable
// domain, and round-robins one entry per non-empty domain group back into
// the ready queue until every group is empty. Leftover staging entries
// beyond ShuffleBatch are retained for the next Shuffle.
func (f *Frontier) Shuffle() {
	f.seenMu.Lock()
	f.staging = append(f.staging, f.ready.Drain()...)

	batch := f.staging
	var leftover []string
	if len(batch) > ShuffleBatch {
		leftover = append([]string(nil), batch[ShuffleBatch:]...)
		batch = batch[:ShuffleBatch]
	}
	f.staging = leftover
	f.seenMu.Unlock()

	groups := make(map[string][]string)
	order := make([]string, 0)
	for _, raw := range batch {
		domain := domainOf(raw)
		if _, ok := groups[domain]; !ok {
			order = append(order, domain)
		}
		groups[domain] = append(groups[domain], raw)
	}

	for {
		progressed := false
		for _, domain := range order {
			q := groups[domain]
			if len(q) == 0 {
				continue
			}
			if f.ready.TryPut(q[0]) {
				groups[domain] = q[1:]
			} else {
				// Ready queue is momentarily at capacity (a concurrent
				// parser Put raced us): keep this entry for the next
				// Shuffle instead of blocking or dropping it.
				f.seenMu.Lock()
				f.staging = append(f.staging, q[0])
				f.seenMu.Unlock()
				groups[domain] = q[1:]
			}
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

// domainOf best-efforts a registrable domain for host-grouping purposes;
// malformed URLs (which should not occur since only canonicalised URLs are
// ever Put) fall back to the raw string so Shuffle never panics.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	domain, err := urlnorm.RegistrableDomain(u)
	if err != nil {
		return u.Hostname()
	}
	return domain
}
