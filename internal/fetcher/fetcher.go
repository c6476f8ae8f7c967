// Package fetcher performs the politeness-gated HTTP GETs of SPEC_FULL §4.E,
// built on the teacher's own retry transport, github.com/PuerkitoBio/rehttp,
// wrapping a connection-capped net/http.Transport.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"golang.org/x/time/rate"
)

const (
	// maxResponseSize bounds a single response body, per SPEC_FULL §4.E/§6.
	maxResponseSize = 5 * 1024 * 1024
	// globalRateLimit is a process-wide safety ceiling beneath the
	// per-domain governor (SPEC_FULL §4.E).
	globalRateLimit = 200
	globalBurst     = 50
)

// Outcome is the result of a single fetch attempt: the response's status
// and headers are always populated (the rate-limit governor needs them even
// for a rejected response), while Body is only meaningful when Accepted.
type Outcome struct {
	StatusCode int
	Header     http.Header
	Accepted   bool
	Body       string
}

// Fetcher performs HTTP GETs with the headers, redirect policy, and response
// filtering described in SPEC_FULL §4.E/§6.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// New builds a Fetcher with a rehttp-wrapped transport capped at
// perHostConns connections per host, a process-wide rate.Limiter safety
// ceiling, and the given per-request timeout.
func New(userAgent string, timeout time.Duration, perHostConns int) *Fetcher {
	transport := rehttp.NewTransport(
		&http.Transport{MaxConnsPerHost: perHostConns},
		rehttp.RetryAll(rehttp.RetryMaxRetries(3), rehttp.RetryTemporaryErr()),
		rehttp.ExpJitterDelay(100*time.Millisecond, 2*time.Second),
	)
	return &Fetcher{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(globalRateLimit), globalBurst),
	}
}

// Fetch performs a single GET against rawURL, honouring the process-wide
// rate ceiling, and classifies the response per SPEC_FULL §6: Content-Type
// must contain text/html (or be absent), Content-Language must contain "en"
// (or be absent), and Content-Length must not exceed 5 MiB.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Outcome, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Outcome{}, fmt.Errorf("fetcher: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetcher: build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Cache-Control", "max-age=0")

	resp, err := f.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetcher: GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	outcome := Outcome{StatusCode: resp.StatusCode, Header: resp.Header}
	if !acceptable(resp.Header) {
		return outcome, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return outcome, fmt.Errorf("fetcher: read body for %s: %w", rawURL, err)
	}
	if len(body) > maxResponseSize {
		return outcome, nil
	}

	outcome.Accepted = true
	outcome.Body = strings.ToValidUTF8(string(body), "�")
	return outcome, nil
}

// acceptable applies the Content-Type/Content-Language/Content-Length
// filter of SPEC_FULL §4.E step 6.
func acceptable(header http.Header) bool {
	if cl := header.Get("Content-Length"); cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n > maxResponseSize {
			return false
		}
	}
	if ct := header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "text/html") {
		return false
	}
	if lang := header.Get("Content-Language"); lang != "" && !strings.Contains(strings.ToLower(lang), "en") {
		return false
	}
	return true
}
