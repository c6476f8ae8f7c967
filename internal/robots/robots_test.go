package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckCachesDisallowRule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\nCrawl-delay: 2\n"))
	}))
	defer server.Close()

	cache := NewCache(server.Client(), UserAgent)
	rule, err := cache.Check(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if rule == nil {
		t.Fatalf("Check: expected a non-nil rule")
	}
	if CanFetch("/private", rule) {
		t.Errorf("CanFetch(/private): expected false")
	}
	if !CanFetch("/index", rule) {
		t.Errorf("CanFetch(/index): expected true")
	}
	if rule.CrawlDelay.Seconds() != 2 {
		t.Errorf("CrawlDelay: got %v want 2s", rule.CrawlDelay)
	}
}

func TestCheckCachesNilOn404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache := NewCache(server.Client(), UserAgent)
	rule, err := cache.Check(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if rule != nil {
		t.Errorf("Check: expected nil rule on 404, got %+v", rule)
	}
	if !CanFetch("/anything", rule) {
		t.Errorf("CanFetch: expected true when rule is nil")
	}
}

func TestCheckCachesNilOnEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cache := NewCache(server.Client(), UserAgent)
	rule, err := cache.Check(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if rule != nil {
		t.Errorf("Check: expected nil rule on empty body")
	}
}

func TestRequestRateParsed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nRequest-rate: 1/10\n"))
	}))
	defer server.Close()

	cache := NewCache(server.Client(), UserAgent)
	rule, err := cache.Check(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if rule.RequestInterval.Seconds() != 10 {
		t.Errorf("RequestInterval: got %v want 10s", rule.RequestInterval)
	}
}
