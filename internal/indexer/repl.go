package indexer

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// quitCommand is the literal input that ends the REPL, matching the
// original's "(quit)" sentinel.
const quitCommand = "(quit)"

// REPL reads terms from in until quitCommand is entered, printing each
// term's linked page URLs to out, per SPEC_FULL §4.I Phase 6.
func (idx *Indexer) REPL(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Enter term: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		term := scanner.Text()
		if term == quitCommand {
			return nil
		}

		urls, err := idx.store.PagesForTerm(ctx, term)
		if err != nil {
			idx.logger.Error("pages_for_term", err, term)
			continue
		}
		if len(urls) == 0 {
			fmt.Fprintln(out, "no pages found")
			continue
		}
		for _, u := range urls {
			fmt.Fprintln(out, u)
		}
	}
}
