package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestChunkLinksRespectsMaxParams(t *testing.T) {
	links := make([]TermPageLink, MaxParams) // 2 cols/row -> spans 2 chunks
	for i := range links {
		links[i] = TermPageLink{TermID: i, PageID: i}
	}

	chunks := ChunkLinks(links)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != len(links) {
		t.Errorf("total rows across chunks = %d, want %d", total, len(links))
	}
}

func TestChunkLinksEmpty(t *testing.T) {
	if chunks := ChunkLinks(nil); chunks != nil {
		t.Errorf("ChunkLinks(nil) = %v, want nil", chunks)
	}
}

func TestIsRetryableDeadlock(t *testing.T) {
	err := &pgconn.PgError{Code: sqlstateDeadlock}
	if !isRetryable(err) {
		t.Errorf("expected deadlock error to be retryable")
	}
}

func TestIsRetryableSerializationFailure(t *testing.T) {
	err := &pgconn.PgError{Code: sqlstateSerialization}
	if !isRetryable(err) {
		t.Errorf("expected serialization failure to be retryable")
	}
}

func TestIsRetryableFalseForOtherErrors(t *testing.T) {
	if isRetryable(errors.New("boom")) {
		t.Errorf("expected generic error to not be retryable")
	}
	if isRetryable(&pgconn.PgError{Code: "42601"}) {
		t.Errorf("expected syntax error to not be retryable")
	}
}

func TestNonNilIntSliceReplacesNilWithEmpty(t *testing.T) {
	got := nonNilIntSlice(nil)
	if got == nil {
		t.Fatalf("nonNilIntSlice(nil) = nil, want non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("nonNilIntSlice(nil) = %v, want empty", got)
	}
}

func TestNonNilIntSlicePassesThroughNonNil(t *testing.T) {
	want := []int{1, 2, 3}
	got := nonNilIntSlice(want)
	if len(got) != len(want) {
		t.Fatalf("nonNilIntSlice(%v) = %v, want unchanged", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("nonNilIntSlice(%v)[%d] = %d, want %d", want, i, got[i], want[i])
		}
	}
}
