// Package crawl wires the frontier, robots cache, rate-limit governor,
// fetcher, parser and store into the worker pools described in SPEC_FULL
// §4.E-§4.H, coordinated with golang.org/x/sync/errgroup the way the pack
// itself coordinates worker groups.
package crawl

import (
	"context"
	"net/url"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/codepr/isearch/internal/fetcher"
	"github.com/codepr/isearch/internal/frontier"
	"github.com/codepr/isearch/internal/logging"
	"github.com/codepr/isearch/internal/parser"
	"github.com/codepr/isearch/internal/queue"
	"github.com/codepr/isearch/internal/ratelimit"
	"github.com/codepr/isearch/internal/robots"
	"github.com/codepr/isearch/internal/urlnorm"
)

// fetcherClient is the subset of *fetcher.Fetcher the Supervisor depends on,
// kept narrow so tests can substitute a stub.
type fetcherClient interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Outcome, error)
}

// persister is the subset of *store.Store the Supervisor depends on, kept
// narrow so tests can substitute a fake in place of a live Postgres pool.
type persister interface {
	Migrate(ctx context.Context) error
	PersistPage(ctx context.Context, pageURL, text string, outlinks []string) error
}

const (
	parseQueueCapacity = 5000
	dbQueueCapacity    = 5000
	shuffleWarmupEvery = time.Second
	shuffleSteadyEvery = 5 * time.Second
	warmupPages        = 2
	progressEvery      = 5 * time.Second
)

type parseJob struct {
	url  string
	html string
}

type dbJob struct {
	url      string
	text     string
	outlinks []string
}

// Supervisor owns the lifecycle of a single crawl run.
type Supervisor struct {
	store       persister
	logger      *logging.Logger
	frontier    *frontier.Frontier
	robotsCache *robots.Cache
	governor    *ratelimit.Governor
	fetcher     fetcherClient
	parser      *parser.Parser

	fetchWorkers int
	parseWorkers int
	storeWorkers int
	maxCrawl     int

	parseQueue *queue.Queue[parseJob]
	dbQueue    *queue.Queue[dbJob]

	crawled atomic.Int64
}

// New builds a Supervisor ready to Run a crawl.
func New(st persister, logger *logging.Logger, fc fetcherClient, rc *robots.Cache, gov *ratelimit.Governor, fetchWorkers, maxCrawl int) *Supervisor {
	parseWorkers := runtime.GOMAXPROCS(0)
	return &Supervisor{
		store:        st,
		logger:       logger,
		frontier:     frontier.New(),
		robotsCache:  rc,
		governor:     gov,
		fetcher:      fc,
		parser:       parser.New(),
		fetchWorkers: fetchWorkers,
		parseWorkers: parseWorkers,
		storeWorkers: parseWorkers,
		maxCrawl:     maxCrawl,
		parseQueue:   queue.New[parseJob](parseQueueCapacity),
		dbQueue:      queue.New[dbJob](dbQueueCapacity),
	}
}

// Run seeds the frontier with seedURLs and drives the crawl to completion
// (or until ctx is cancelled), per the startup/shutdown ordering of §4.H.
func (s *Supervisor) Run(ctx context.Context, seedURLs []string) error {
	if err := s.store.Migrate(ctx); err != nil {
		return err
	}
	for _, u := range seedURLs {
		s.frontier.Put(u)
	}

	fetchParseCtx, cancelFetchParse := context.WithCancel(ctx)
	defer cancelFetchParse()
	persistCtx, cancelPersist := context.WithCancel(ctx)
	defer cancelPersist()

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < s.parseWorkers; i++ {
		g.Go(func() error { return s.runParser(fetchParseCtx) })
	}
	for i := 0; i < s.storeWorkers; i++ {
		g.Go(func() error { return s.runPersister(persistCtx) })
	}
	for i := 0; i < s.fetchWorkers; i++ {
		g.Go(func() error { return s.runFetcher(fetchParseCtx) })
	}

	g.Go(func() error { return s.runShuffler(fetchParseCtx) })
	g.Go(func() error { return s.runProgress(fetchParseCtx) })
	g.Go(func() error { return s.runShutdownWatcher(gctx, cancelFetchParse, cancelPersist) })

	return g.Wait()
}

// runShutdownWatcher implements the staged shutdown of §4.H: once the crawl
// budget is reached, addingNewLinks is cleared (step 1); once the frontier
// and parse queue have drained, fetch/parse workers are cancelled (steps
// 2-3); once the DB queue has drained, persistence workers are cancelled
// (steps 4-5).
func (s *Supervisor) runShutdownWatcher(ctx context.Context, cancelFetchParse, cancelPersist context.CancelFunc) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	fetchParseStopped := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !fetchParseStopped {
				if s.maxCrawl <= 0 || int(s.crawled.Load()) < s.maxCrawl {
					continue
				}
				s.parser.AddingNewLinks.Store(false)
				if s.frontier.Empty() && s.parseQueue.Empty() {
					cancelFetchParse()
					fetchParseStopped = true
				}
				continue
			}
			if s.dbQueue.Empty() {
				cancelPersist()
				return nil
			}
		}
	}
}

func (s *Supervisor) runFetcher(ctx context.Context) error {
	for {
		rawURL, err := s.frontier.Get(ctx)
		if err != nil {
			return nil
		}
		s.fetchOne(ctx, rawURL)
		s.frontier.TaskDone()
		s.crawled.Add(1)
	}
}

func (s *Supervisor) fetchOne(ctx context.Context, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		s.logger.Error("fetch_one", err, rawURL)
		return
	}
	host := urlnorm.Host(u)
	regDomain, err := urlnorm.RegistrableDomain(u)
	if err != nil {
		s.logger.Error("fetch_one", err, rawURL)
		return
	}

	rule, err := s.robotsCache.Check(ctx, host)
	if err != nil {
		s.logger.Error("robots_check", err, rawURL)
	}
	if !robots.CanFetch(u.Path, rule) {
		return
	}

	lock := s.governor.Lock(regDomain)
	lock.Lock()
	defer lock.Unlock()

	s.governor.Sleep(regDomain)

	out, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Error("fetch", err, rawURL)
		return
	}
	s.governor.RecordResponse(regDomain, out.StatusCode, out.Header, rule)
	if !out.Accepted {
		return
	}

	if err := s.parseQueue.Put(ctx, parseJob{url: rawURL, html: out.Body}); err != nil {
		return
	}
}

func (s *Supervisor) runParser(ctx context.Context) error {
	for {
		job, err := s.parseQueue.Get(ctx)
		if err != nil {
			return nil
		}
		s.parseOne(ctx, job)
		s.parseQueue.TaskDone()
	}
}

func (s *Supervisor) parseOne(ctx context.Context, job parseJob) {
	page, err := s.parser.Parse(job.url, job.html)
	if err != nil {
		s.logger.Error("parse", err, job.url)
		return
	}
	for _, link := range page.Outlinks {
		s.frontier.Put(link)
	}
	_ = s.dbQueue.Put(ctx, dbJob{url: page.URL, text: page.Text, outlinks: page.Outlinks})
}

func (s *Supervisor) runPersister(ctx context.Context) error {
	for {
		job, err := s.dbQueue.Get(ctx)
		if err != nil {
			return nil
		}
		if err := s.store.PersistPage(ctx, job.url, job.text, job.outlinks); err != nil {
			s.logger.Error("persist_page", err, job.url)
		}
		s.dbQueue.TaskDone()
	}
}

// runShuffler periodically re-orders the frontier for host fairness,
// ticking once a second while fewer than warmupPages pages have been
// crawled and every 5s thereafter, since early in a crawl the frontier is
// small and benefits from more frequent fairness passes.
func (s *Supervisor) runShuffler(ctx context.Context) error {
	ticker := time.NewTicker(shuffleWarmupEvery)
	defer ticker.Stop()
	warmingUp := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.frontier.Shuffle()
			if warmingUp && s.crawled.Load() >= warmupPages {
				ticker.Reset(shuffleSteadyEvery)
				warmingUp = false
			}
		}
	}
}

// runProgress prints periodic counters using go-humanize to keep the
// output legible over a long crawl.
func (s *Supervisor) runProgress(ctx context.Context) error {
	ticker := time.NewTicker(progressEvery)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			crawled := s.crawled.Load()
			s.logger.Progress("crawled %s pages in %s, frontier depth %s",
				humanize.Comma(crawled),
				humanize.RelTime(start, time.Now(), "", ""),
				humanize.Comma(int64(s.frontier.Length())))
		}
	}
}
