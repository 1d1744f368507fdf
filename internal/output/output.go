// Package output provides consistent formatting for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer formats CLI output. Write errors are ignored; console output is
// best effort.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Infof prints a plain message.
func (w *Writer) Infof(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Successf prints a completed-action message.
func (w *Writer) Successf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "✓ "+format+"\n", args...)
}

// Warningf prints a warning message.
func (w *Writer) Warningf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "warning: "+format+"\n", args...)
}

// Result prints a numbered result header followed by an indented body.
func (w *Writer) Result(n int, header, body string) {
	_, _ = fmt.Fprintf(w.out, "%d. %s\n", n, header)
	if body == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "   %s\n", line)
	}
}

// Field prints an aligned name/value pair for summary listings.
func (w *Writer) Field(name string, value any) {
	_, _ = fmt.Fprintf(w.out, "%-16s %v\n", name+":", value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
