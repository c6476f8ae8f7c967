// Package logging provides the free-form, line-oriented, append-only error
// log described in SPEC_FULL §6 ("log.txt"), plus stdout progress printing,
// following the teacher's own use of the standard library's log.Logger
// rather than a third-party logging framework.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger writes non-fatal errors to an append-only file and progress lines
// to stdout.
type Logger struct {
	errors   *log.Logger
	progress *log.Logger
	file     io.Closer
}

// New opens (or creates) path for append and returns a Logger. Progress is
// always written to stdout.
func New(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	return &Logger{
		errors:   log.New(f, "", log.LstdFlags),
		progress: log.New(os.Stdout, "", log.LstdFlags),
		file:     f,
	}, nil
}

// Error logs a non-fatal error, tagged with the function name it occurred
// in and any contextual values (matching the original's silent_log(e, fn,
// [context...])).
func (l *Logger) Error(fn string, err error, context ...any) {
	l.errors.Printf("%s: %v %v", fn, err, context)
}

// Progress prints a free-form progress line to stdout.
func (l *Logger) Progress(format string, args ...any) {
	l.progress.Printf(format, args...)
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	return l.file.Close()
}
