// Package robots fetches and caches robots.txt rules per host (SPEC_FULL
// §4.C), using github.com/temoto/robotstxt - the teacher's own robots
// dependency - for RFC 9309 group matching.
package robots

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// UserAgent is the agent name checked against robots.txt groups.
const UserAgent = "iSearch"

const robotsTxtPath = "/robots.txt"

// Rule is the parsed result of a robots.txt fetch for one host: the group
// matching UserAgent, plus the Crawl-delay and Request-rate extensions the
// rate-limit governor needs. A nil *Rule means "no usable robots.txt was
// found" and allows every URL on the host.
type Rule struct {
	group           *robotstxt.Group
	CrawlDelay      time.Duration
	RequestInterval time.Duration
}

// Cache fetches robots.txt once per host and caches the (possibly nil)
// result for the lifetime of the process, per SPEC_FULL §4.C.
type Cache struct {
	client    *http.Client
	userAgent string

	mu      sync.Mutex
	entries map[string]*Rule
	fetched map[string]bool
}

// NewCache creates a robots Cache using client for robots.txt fetches.
func NewCache(client *http.Client, userAgent string) *Cache {
	return &Cache{
		client:    client,
		userAgent: userAgent,
		entries:   make(map[string]*Rule),
		fetched:   make(map[string]bool),
	}
}

// Check returns the cached Rule for host, fetching and parsing robots.txt on
// first use. A nil Rule means robots.txt was absent, empty, unparsable,
// unreachable, or non-2xx - all of which allow every URL. A fetch, read or
// parse failure also returns its error on that first call; the nil Rule is
// cached either way, so later calls return it with a nil error.
func (c *Cache) Check(ctx context.Context, host string) (*Rule, error) {
	c.mu.Lock()
	if c.fetched[host] {
		rule := c.entries[host]
		c.mu.Unlock()
		return rule, nil
	}
	c.mu.Unlock()

	rule, err := c.fetch(ctx, host)

	c.mu.Lock()
	c.fetched[host] = true
	c.entries[host] = rule
	c.mu.Unlock()

	return rule, err
}

func (c *Cache) fetch(ctx context.Context, host string) (*Rule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+robotsTxtPath, nil)
	if err != nil {
		return nil, fmt.Errorf("robots: build request for %s: %w", host, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("robots: fetch %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("robots: read body for %s: %w", host, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("robots: parse %s: %w", host, err)
	}

	group := data.FindGroup(UserAgent)
	if group == nil {
		return nil, nil
	}

	rule := &Rule{
		group:      group,
		CrawlDelay: group.CrawlDelay,
	}
	if seconds, requests, ok := parseRequestRate(body, UserAgent); ok && requests > 0 {
		rule.RequestInterval = time.Duration(seconds/float64(requests)*1000) * time.Millisecond
	}
	return rule, nil
}

// CanFetch reports whether rawURLPath is allowed by rule. A nil rule allows
// everything.
func CanFetch(rawURLPath string, rule *Rule) bool {
	if rule == nil || rule.group == nil {
		return true
	}
	return rule.group.Test(rawURLPath)
}

// parseRequestRate scans raw robots.txt lines for a "Request-rate: R/T"
// directive within the block matching userAgent (case-insensitively, "*"
// also matches). temoto/robotstxt does not surface this RFC 9309 extension
// itself, so it is parsed directly here, mirroring the manual handling the
// original Python implementation did with urllib.robotparser.
func parseRequestRate(body []byte, userAgent string) (seconds float64, requests float64, ok bool) {
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	matching := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			matching = value == "*" || strings.EqualFold(value, userAgent)
		case "request-rate":
			if !matching {
				continue
			}
			parts := strings.SplitN(value, "/", 2)
			if len(parts) != 2 {
				continue
			}
			reqs, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			secs, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err1 != nil || err2 != nil || reqs <= 0 {
				continue
			}
			return secs, reqs, true
		}
	}
	return 0, 0, false
}
