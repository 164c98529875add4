// Package diag implements the toolchain-wide diagnostic format and error
// counting described in spec §7: one line per error, `<line>: <message>`,
// with a running count that suppresses output when nonzero.
package diag

import (
	"fmt"
	"io"
	"os"
)

// Bag accumulates diagnostics reported through Error. cmd/c6t shares one
// Bag across the preprocessor and parser of every input file and inspects
// Count after each stage to decide whether to proceed.
type Bag struct {
	out    io.Writer
	Count  int
	Worst  []string // the first 20 messages, in report order
}

// New returns a Bag writing to w. Pass os.Stderr for normal CLI use.
func New(w io.Writer) *Bag {
	if w == nil {
		w = os.Stderr
	}
	return &Bag{out: w}
}

// Error reports a diagnostic at the given line and increments Count.
func (b *Bag) Error(line int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(b.out, "%d: %s\n", line, msg)
	b.Count++
	if len(b.Worst) < 20 {
		b.Worst = append(b.Worst, fmt.Sprintf("%d: %s", line, msg))
	}
}

// OK reports whether no diagnostics have been recorded.
func (b *Bag) OK() bool {
	return b.Count == 0
}

// Merge folds another bag's count and messages into this one. Messages
// are appended without applying Error's cap of 20.
func (b *Bag) Merge(other *Bag) {
	b.Count += other.Count
	b.Worst = append(b.Worst, other.Worst...)
}
