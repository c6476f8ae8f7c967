// Package indexer builds the inverted index over the crawled corpus:
// tokenisation, pruning, and chunked upserts into the same internal/store
// schema the crawler populates, per SPEC_FULL §4.I.
package indexer

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// termPattern matches the literal token text used as term identity - no
// stemming, so the exact lower-cased match is the term.
var termPattern = regexp.MustCompile(`[A-Za-z0-9_-]+`)

const punctuation = ".?!,:;—()[]{}'\"/*&~+"

const longTermThreshold = 20

var vowels = map[rune]bool{'a': true, 'e': true, 'i': true, 'o': true, 'u': true, 'y': true}

// Tokenizer extracts and filters terms from page content, mirroring the
// original implementation's get_terms.
type Tokenizer struct {
	stopwords map[string]bool
}

// LoadStopwords reads one stopword per line from path.
func LoadStopwords(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stopwords := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			stopwords[word] = true
		}
	}
	return stopwords, scanner.Err()
}

// NewTokenizer builds a Tokenizer with the given stopword set.
func NewTokenizer(stopwords map[string]bool) *Tokenizer {
	return &Tokenizer{stopwords: stopwords}
}

// Terms extracts the filtered, lower-cased term multiset from content: it
// strips non-ASCII bytes, removes punctuation, matches the term regex,
// drops stopwords, length-filters, and applies the gibberish filter to long
// tokens.
func (t *Tokenizer) Terms(content string) []string {
	ascii := toASCII(content)
	stripped := stripPunctuation(ascii)

	matches := termPattern.FindAllString(stripped, -1)
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		term := strings.ToLower(m)
		if t.stopwords[term] {
			continue
		}
		length := len(term)
		if length <= 1 || length >= 30 {
			continue
		}
		if length > longTermThreshold && isGibberish(term, length) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// isGibberish mirrors the original's heuristic: an unusually long token
// dominated by vowels or digits, relative to its length, is dropped.
func isGibberish(term string, length int) bool {
	vowelCount := 0
	digitCount := 0
	for _, r := range term {
		if vowels[r] {
			vowelCount++
		}
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	if vowelCount > 7 && vowelCount+1 < length/2 {
		return true
	}
	if digitCount > 5 && digitCount+1 < length/2 {
		return true
	}
	return false
}

// toASCII drops any rune outside the 7-bit ASCII range, matching the
// original's content.encode("ascii", "ignore").decode().
func toASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, s)
}
