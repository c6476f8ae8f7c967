package parser

import (
	"strings"
	"testing"
)

func TestParseExtractsTextAndLinks(t *testing.T) {
	html := `<html><head><style>.a{color:red}</style><script>var x=1;</script></head>
<body><h1>Title</h1><p>Hello world</p>
<a href="/about">About</a>
<a href="https://other.test/page?utm_source=x#frag">Other</a>
<a href="mailto:[email protected]">Mail</a>
<a href="/image.png">Image</a>
</body></html>`

	p := New()
	page, err := p.Parse("https://example.test/index", html)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !strings.Contains(page.Text, "Hello world") {
		t.Errorf("Text = %q, want to contain %q", page.Text, "Hello world")
	}
	if strings.Contains(page.Text, "color:red") || strings.Contains(page.Text, "var x=1") {
		t.Errorf("Text contains stripped style/script content: %q", page.Text)
	}

	want := map[string]bool{
		"https://example.test/about": true,
		"https://other.test/page":    true,
	}
	if len(page.Outlinks) != len(want) {
		t.Fatalf("Outlinks = %v, want %d links", page.Outlinks, len(want))
	}
	for _, l := range page.Outlinks {
		if !want[l] {
			t.Errorf("unexpected outlink %q", l)
		}
	}
}

func TestParseSkipsLinksWhenAddingNewLinksDisabled(t *testing.T) {
	html := `<html><body><a href="/a">a</a></body></html>`
	p := New()
	p.AddingNewLinks.Store(false)

	page, err := p.Parse("https://example.test/", html)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(page.Outlinks) != 0 {
		t.Errorf("Outlinks = %v, want none when AddingNewLinks is false", page.Outlinks)
	}
}

func TestParseStripsNULBytes(t *testing.T) {
	html := "<html><body>hello\x00world</body></html>"
	p := New()
	page, err := p.Parse("https://example.test/\x00", html)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if strings.Contains(page.Text, "\x00") || strings.Contains(page.URL, "\x00") {
		t.Errorf("expected NUL bytes stripped, got Text=%q URL=%q", page.Text, page.URL)
	}
}
