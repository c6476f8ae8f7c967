// Package store owns the Postgres connection pool and schema shared by the
// crawler and indexer, built on github.com/jackc/pgx/v5 and pgxpool,
// following SPEC_FULL §4.G/§4.M/§6.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxParams bounds the number of bind parameters in a single batched
// statement, matching the original implementation's MAX_PARAMS constant.
const MaxParams = 15000

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	page_id SERIAL PRIMARY KEY,
	page_url TEXT UNIQUE NOT NULL,
	page_content TEXT NULL
);
CREATE TABLE IF NOT EXISTS links (
	source_page_id INT NOT NULL REFERENCES pages(page_id),
	target_page_id INT NOT NULL REFERENCES pages(page_id),
	PRIMARY KEY (source_page_id, target_page_id)
);
CREATE TABLE IF NOT EXISTS terms (
	term_id SERIAL PRIMARY KEY,
	term TEXT UNIQUE NOT NULL,
	total_pages INT NOT NULL
);
CREATE TABLE IF NOT EXISTS term_page_links (
	term_id INT NOT NULL REFERENCES terms(term_id),
	page_id INT NOT NULL REFERENCES pages(page_id),
	PRIMARY KEY (term_id, page_id)
);
`

// deadlock and serialization-failure SQLSTATEs that warrant a single retry.
const (
	sqlstateDeadlock      = "40P01"
	sqlstateSerialization = "40001"
)

// retryBackoff is the pause before retrying a transaction that failed on a
// transient Postgres conflict.
const retryBackoff = 100 * time.Millisecond

// Store wraps a pgxpool.Pool with the crawler/indexer's schema and queries.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a Store. Callers must call Close.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// PersistPage upserts url/text and replaces its outlink edge set, retrying
// once on a deadlock or serialization failure, per SPEC_FULL §4.G.
func (s *Store) PersistPage(ctx context.Context, pageURL, text string, outlinks []string) error {
	err := s.persistPageOnce(ctx, pageURL, text, outlinks)
	if isRetryable(err) {
		time.Sleep(retryBackoff)
		err = s.persistPageOnce(ctx, pageURL, text, outlinks)
	}
	return err
}

func (s *Store) persistPageOnce(ctx context.Context, pageURL, text string, outlinks []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var pageID int
	err = tx.QueryRow(ctx,
		`INSERT INTO pages(page_url, page_content) VALUES ($1,$2)
		 ON CONFLICT(page_url) DO UPDATE SET page_content = excluded.page_content
		 RETURNING page_id`,
		pageURL, text).Scan(&pageID)
	if err != nil {
		return fmt.Errorf("store: upsert page: %w", err)
	}

	targetIDs, err := upsertPages(ctx, tx, outlinks)
	if err != nil {
		return fmt.Errorf("store: upsert outlinks: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM links WHERE source_page_id = $1 AND target_page_id != ALL($2)`,
		pageID, nonNilIntSlice(targetIDs)); err != nil {
		return fmt.Errorf("store: delete stale links: %w", err)
	}

	batch := &pgx.Batch{}
	for _, targetID := range targetIDs {
		batch.Queue(
			`INSERT INTO links(source_page_id, target_page_id) VALUES ($1,$2)
			 ON CONFLICT DO NOTHING`,
			pageID, targetID)
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("store: insert link: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("store: close link batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// upsertPages ensures every URL in urls exists as a pages row, and resolves
// them to their page_id in no particular order.
func upsertPages(ctx context.Context, tx pgx.Tx, urls []string) ([]int, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, u := range urls {
		batch.Queue(`INSERT INTO pages(page_url) VALUES ($1) ON CONFLICT(page_url) DO NOTHING`, u)
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT page_id FROM pages WHERE page_url = ANY($1)`, urls)
	if err != nil {
		return nil, fmt.Errorf("resolve ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// nonNilIntSlice guards against pgx encoding a nil Go slice as SQL NULL for
// an array bind parameter: target_page_id != ALL(NULL) evaluates to NULL
// (not true) for every row, so a page whose outlinks dropped to zero would
// never have its stale links deleted. A non-nil empty slice encodes as
// '{}', for which != ALL('{}') is true for every row, as intended.
func nonNilIntSlice(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

// isRetryable reports whether err is a Postgres deadlock or serialization
// failure, warranting a single transaction retry per SPEC_FULL §4.G.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateDeadlock || pgErr.Code == sqlstateSerialization
	}
	return false
}

// PageContent is a single row streamed during the indexer's scan phase.
type PageContent struct {
	PageID  int
	Content string
}

// ScanPages streams every page with non-null content via a server-side
// cursor, calling fn for each row, per SPEC_FULL §4.I Phase 1.
func (s *Store) ScanPages(ctx context.Context, fn func(PageContent) error) error {
	rows, err := s.pool.Query(ctx, `SELECT page_id, page_content FROM pages WHERE page_content IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("store: scan pages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pc PageContent
		if err := rows.Scan(&pc.PageID, &pc.Content); err != nil {
			return fmt.Errorf("store: scan row: %w", err)
		}
		if err := fn(pc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpsertTerms upserts (term, totalPages) pairs, chunked so that the
// parameter count never exceeds MaxParams, and returns term -> term_id.
func (s *Store) UpsertTerms(ctx context.Context, totalPages map[string]int) (map[string]int, error) {
	const colsPerRow = 2
	rowsPerChunk := MaxParams / colsPerRow

	terms := make([]string, 0, len(totalPages))
	for term := range totalPages {
		terms = append(terms, term)
	}

	ids := make(map[string]int, len(terms))
	for start := 0; start < len(terms); start += rowsPerChunk {
		end := min(start+rowsPerChunk, len(terms))
		chunk := terms[start:end]

		batch := &pgx.Batch{}
		for _, term := range chunk {
			batch.Queue(
				`INSERT INTO terms(term, total_pages) VALUES ($1,$2)
				 ON CONFLICT(term) DO UPDATE SET total_pages = excluded.total_pages
				 RETURNING term, term_id`,
				term, totalPages[term])
		}
		br := s.pool.SendBatch(ctx, batch)
		for range chunk {
			var term string
			var id int
			if err := br.QueryRow().Scan(&term, &id); err != nil {
				br.Close()
				return nil, fmt.Errorf("store: upsert terms: %w", err)
			}
			ids[term] = id
		}
		if err := br.Close(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// TermPageLink is a single (term_id, page_id) edge row.
type TermPageLink struct {
	TermID int
	PageID int
}

// InsertTermPageLinks chunks and inserts (term_id, page_id) edges, per
// SPEC_FULL §4.I Phase 5. The caller distributes chunks across workers.
func (s *Store) InsertTermPageLinks(ctx context.Context, links []TermPageLink) error {
	if len(links) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range links {
		batch.Queue(
			`INSERT INTO term_page_links(term_id, page_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			l.TermID, l.PageID)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range links {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store: insert term_page_links: %w", err)
		}
	}
	return nil
}

// ChunkLinks splits links into groups sized so that rows*cols <= MaxParams.
func ChunkLinks(links []TermPageLink) [][]TermPageLink {
	const colsPerRow = 2
	rowsPerChunk := MaxParams / colsPerRow

	var chunks [][]TermPageLink
	for start := 0; start < len(links); start += rowsPerChunk {
		end := min(start+rowsPerChunk, len(links))
		chunks = append(chunks, links[start:end])
	}
	return chunks
}

// PagesForTerm returns the URLs of pages linked to term, matching the
// original's retrieve_term_pages query (SPEC_FULL §4.I Phase 6).
func (s *Store) PagesForTerm(ctx context.Context, term string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.page_url FROM pages p
		 JOIN term_page_links tpl ON tpl.page_id = p.page_id
		 JOIN terms t ON t.term_id = tpl.term_id
		 WHERE t.term = $1`,
		term)
	if err != nil {
		return nil, fmt.Errorf("store: pages for term: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}
