package urlnorm

import (
	"net/url"
	"testing"
)

func TestCanonicaliseStripsTrackingParams(t *testing.T) {
	got, err := Canonicalise("https://d.test/x?utm_source=a&id=7", nil)
	if err != nil {
		t.Fatalf("Canonicalise failed: %v", err)
	}
	want := "https://d.test/x?id=7"
	if got != want {
		t.Errorf("Canonicalise: got %q want %q", got, want)
	}

	got2, err := Canonicalise("https://d.test/x?utm_source=b&id=7", nil)
	if err != nil {
		t.Fatalf("Canonicalise failed: %v", err)
	}
	if got2 != got {
		t.Errorf("Canonicalise: expected dedup to same canonical form, got %q and %q", got, got2)
	}
}

func TestCanonicaliseStripsTrailingSlashAndFragment(t *testing.T) {
	got, err := Canonicalise("https://a.test/path/#section", nil)
	if err != nil {
		t.Fatalf("Canonicalise failed: %v", err)
	}
	if got != "https://a.test/path" {
		t.Errorf("Canonicalise: got %q", got)
	}
}

func TestCanonicaliseIdempotent(t *testing.T) {
	once, err := Canonicalise("https://a.test/path/?ref=x&id=1#frag", nil)
	if err != nil {
		t.Fatalf("Canonicalise failed: %v", err)
	}
	twice, err := Canonicalise(once, nil)
	if err != nil {
		t.Fatalf("Canonicalise failed: %v", err)
	}
	if once != twice {
		t.Errorf("Canonicalise not idempotent: %q != %q", once, twice)
	}
}

func TestCanonicaliseRejectsNonHTTPSchemes(t *testing.T) {
	for _, raw := range []string{"mailto:foo@bar.com", "tel:+123456", "ftp://a.test/x"} {
		if _, err := Canonicalise(raw, nil); err == nil {
			t.Errorf("Canonicalise(%q): expected error, got none", raw)
		}
	}
}

func TestCanonicaliseRejectsBlockedExtensions(t *testing.T) {
	for _, raw := range []string{
		"https://a.test/image.jpg",
		"https://a.test/sheet.css",
		"https://a.test/app.js",
	} {
		if _, err := Canonicalise(raw, nil); err == nil {
			t.Errorf("Canonicalise(%q): expected error, got none", raw)
		}
	}
}

func TestCanonicaliseResolvesRelativeAgainstBase(t *testing.T) {
	base, _ := url.Parse("https://a.test/dir/page")
	got, err := Canonicalise("../sibling", base)
	if err != nil {
		t.Fatalf("Canonicalise failed: %v", err)
	}
	if got != "https://a.test/sibling" {
		t.Errorf("Canonicalise: got %q", got)
	}
}

func TestRegistrableDomainCollapsesSubdomain(t *testing.T) {
	u, _ := url.Parse("https://docs.example.co.uk/path")
	got, err := RegistrableDomain(u)
	if err != nil {
		t.Fatalf("RegistrableDomain failed: %v", err)
	}
	if got != "example.co.uk" {
		t.Errorf("RegistrableDomain: got %q want %q", got, "example.co.uk")
	}
}

func TestHostIsSchemeQualified(t *testing.T) {
	u, _ := url.Parse("https://docs.example.co.uk/path")
	got := Host(u)
	if got != "https://docs.example.co.uk" {
		t.Errorf("Host: got %q", got)
	}
}
