// Package parser builds on the teacher's GoqueryParser (crawler/fetcher/parser.go)
// to extract visible text and outlinks from a fetched page, per SPEC_FULL §4.F.
package parser

import (
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/codepr/isearch/internal/urlnorm"
)

var excludedExts = map[string]bool{
	".css": true, ".js": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".ico": true, ".pdf": true, ".zip": true,
	".gz": true, ".mp4": true, ".mp3": true, ".woff": true, ".woff2": true,
}

// Page is the result of parsing a fetched document: its cleaned visible
// text and the canonical outlinks discovered on it.
type Page struct {
	URL      string
	Text     string
	Outlinks []string
}

// Parser extracts text and links from HTML documents. AddingNewLinks gates
// whether outlinks are retained once the supervisor has reached its crawl
// budget (SPEC_FULL §4.F): text extraction still runs so in-flight pages are
// persisted, but no further frontier growth occurs.
type Parser struct {
	AddingNewLinks atomic.Bool
}

// New returns a Parser with link discovery enabled.
func New() *Parser {
	p := &Parser{}
	p.AddingNewLinks.Store(true)
	return p
}

// Parse builds a DOM from html, strips <style>/<script>, and returns the
// page's visible text plus its canonicalised outlinks resolved against
// pageURL.
func (p *Parser) Parse(pageURL, html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, err
	}
	doc.Find("style,script").Remove()

	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, err
	}

	var outlinks []string
	if p.AddingNewLinks.Load() {
		outlinks = extractLinks(doc, base)
	}

	text := strings.TrimSpace(doc.Text())
	text = stripNUL(text)

	return Page{
		URL:      stripNUL(pageURL),
		Text:     text,
		Outlinks: outlinks,
	}, nil
}

// extractLinks enumerates <a href> targets, filters out mail/tel/blocked
// extensions, resolves relative references against base, and canonicalises
// what remains via internal/urlnorm.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		if excludedExts[strings.ToLower(path.Ext(href))] {
			return
		}
		if i := strings.IndexByte(href, '#'); i >= 0 {
			href = href[:i]
		}
		if href == "" {
			return
		}

		canon, err := urlnorm.Canonicalise(href, base)
		if err != nil {
			return
		}
		if !strings.HasPrefix(canon, "http://") && !strings.HasPrefix(canon, "https://") {
			return
		}
		if seen[canon] {
			return
		}
		seen[canon] = true
		links = append(links, canon)
	})

	return links
}

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
