package indexer

import (
	"reflect"
	"strings"
	"testing"
)

func TestTermsFiltersStopwordsAndPunctuation(t *testing.T) {
	tok := NewTokenizer(map[string]bool{"the": true, "a": true})
	got := tok.Terms("The quick, brown fox! Jumps over a lazy-dog.")
	want := []string{"quick", "brown", "fox", "jumps", "over", "lazy-dog"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
}

func TestTermsLowercases(t *testing.T) {
	tok := NewTokenizer(nil)
	got := tok.Terms("GoLang")
	if len(got) != 1 || got[0] != "golang" {
		t.Errorf("Terms = %v, want [golang]", got)
	}
}

func TestTermsDropsShortAndLongTokens(t *testing.T) {
	tok := NewTokenizer(nil)
	longToken := strings.Repeat("x", 30)
	got := tok.Terms("a " + longToken + " ok")
	if !reflect.DeepEqual(got, []string{"ok"}) {
		t.Errorf("Terms = %v, want [ok]", got)
	}
}

func TestTermsGibberishFilterDropsVowelHeavyLongToken(t *testing.T) {
	tok := NewTokenizer(nil)
	// 25 chars: 10 vowels (>7) with vowels+1 < length/2 - matches the
	// vowel-ratio branch of the gibberish heuristic.
	gibberish := "bcdfghjklmnpqrsaeiouaeiou"
	got := tok.Terms(gibberish)
	if len(got) != 0 {
		t.Errorf("Terms = %v, want gibberish token dropped", got)
	}
}

func TestTermsGibberishFilterKeepsOrdinaryLongWord(t *testing.T) {
	tok := NewTokenizer(nil)
	// 21 chars (> longTermThreshold, so the heuristic runs): 10 vowels,
	// but vowels+1 = 11 is not < 21/2 = 10, so the token is kept.
	got := tok.Terms("internationalizations")
	if len(got) != 1 || got[0] != "internationalizations" {
		t.Errorf("Terms = %v, want [internationalizations] kept", got)
	}
}

func TestTermsDropsNonASCII(t *testing.T) {
	tok := NewTokenizer(nil)
	got := tok.Terms("café naïve")
	want := []string{"caf", "nave"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
}
