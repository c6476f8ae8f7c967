// Package ratelimit implements the per-registrable-domain politeness
// governor (SPEC_FULL §4.D): a next-allowed-instant map and a lazily
// created, get-or-create-race-free mutex per domain, held across the
// sleep-fetch-record critical section.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/codepr/isearch/internal/robots"
)

const (
	// defaultRetryAfter is used when a 429/503 carries no, or a malformed,
	// Retry-After header.
	defaultRetryAfter = 15 * time.Second
	// maxRetryAfter clamps a Retry-After, in either its delta-seconds or its
	// HTTP-date form, so that a buggy or hostile server cannot stall a domain
	// indefinitely (SPEC_FULL §9 open question).
	maxRetryAfter = time.Hour
	// minRobotsWait is the floor applied to a robots-derived wait.
	minRobotsWait = 200 * time.Millisecond
	// defaultWait is used when neither a throttled response nor a robots
	// rule dictates a wait.
	defaultWait = 200 * time.Millisecond
	// sleepThreshold: waits shorter than this are not worth sleeping for.
	sleepThreshold = 50 * time.Millisecond
)

// Governor tracks, per registrable domain, the earliest next-fetch instant
// and a serialising lock, enforcing invariant 8.2 (at most one in-flight
// fetch per domain) and invariant 8.3 (politeness waits are honoured).
type Governor struct {
	clock clock.Clock

	mapMu sync.Mutex
	locks map[string]*sync.Mutex
	wait  map[string]time.Time
}

// New creates a Governor using the real wall clock.
func New() *Governor {
	return NewWithClock(clock.New())
}

// NewWithClock creates a Governor using the given clock, allowing tests to
// control time deterministically (grounded on the pack's use of
// benbjohnson/clock for exactly this purpose).
func NewWithClock(c clock.Clock) *Governor {
	return &Governor{
		clock: c,
		locks: make(map[string]*sync.Mutex),
		wait:  make(map[string]time.Time),
	}
}

// Lock returns the serialising mutex for domain, creating it atomically on
// first use. The map-level mapMu guard makes get-or-create race-free
// without serialising fetches across distinct domains (SPEC_FULL §9).
func (g *Governor) Lock(domain string) *sync.Mutex {
	g.mapMu.Lock()
	defer g.mapMu.Unlock()
	lock, ok := g.locks[domain]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[domain] = lock
	}
	return lock
}

// Sleep blocks, if needed, until domain's next-allowed instant. Callers must
// hold domain's lock (via Lock) before calling Sleep, and until after
// RecordResponse, so that the whole sleep-fetch-record section is atomic
// per domain.
func (g *Governor) Sleep(domain string) {
	g.mapMu.Lock()
	until, ok := g.wait[domain]
	g.mapMu.Unlock()
	if !ok {
		return
	}

	now := g.clock.Now()
	if until.Before(now) {
		return
	}
	sleep := until.Sub(now)
	if sleep > sleepThreshold {
		g.clock.Sleep(sleep)
	}
}

// RecordResponse computes and stores domain's next-allowed instant after a
// completed fetch, per the priority order in SPEC_FULL §4.D: a 429/503's
// Retry-After header first, then the robots-derived crawl-delay/request-rate,
// then a 200ms default.
func (g *Governor) RecordResponse(domain string, status int, header http.Header, rule *robots.Rule) {
	now := g.clock.Now()
	var next time.Time

	switch {
	case status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable:
		next = now.Add(retryAfterDuration(header.Get("Retry-After"), now))
	case rule != nil && (rule.CrawlDelay > 0 || rule.RequestInterval > 0):
		wait := rule.CrawlDelay
		if rule.RequestInterval > wait {
			wait = rule.RequestInterval
		}
		if wait < minRobotsWait {
			wait = minRobotsWait
		}
		next = now.Add(wait)
	default:
		next = now.Add(defaultWait)
	}

	g.mapMu.Lock()
	g.wait[domain] = next
	g.mapMu.Unlock()
}

// retryAfterDuration parses a Retry-After header value into a wait
// duration: a numeric value is seconds-from-now, an HTTP-date is parsed,
// both are clamped to maxRetryAfter, and a missing/malformed value falls
// back to defaultRetryAfter.
func retryAfterDuration(value string, now time.Time) time.Duration {
	if value == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		d := time.Duration(seconds) * time.Second
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	if when, err := http.ParseTime(value); err == nil {
		d := when.Sub(now)
		if d < 0 {
			return 0
		}
		if d > maxRetryAfter {
			return maxRetryAfter
		}
		return d
	}
	return defaultRetryAfter
}
