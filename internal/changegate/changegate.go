// Package changegate decides whether a page edit is worth saving.
package changegate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// Decision is the outcome of comparing persisted text with a candidate.
type Decision struct {
	Changed bool
	Diff    string // unified diff, empty when unchanged
}

// Canonicalize normalizes line endings and trailing whitespace at the end of
// the page, which the wiki strips on save anyway.
func Canonicalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimRight(s, " \t\n")
}

// Compare diffs the canonical forms of oldText and newText.
func Compare(title, oldText, newText string) Decision {
	a := Canonicalize(oldText) + "\n"
	b := Canonicalize(newText) + "\n"
	if a == b {
		return Decision{}
	}
	edits := myers.ComputeEdits(span.URIFromPath(title), a, b)
	diff := fmt.Sprint(gotextdiff.ToUnified(title, title, a, edits))
	return Decision{Changed: true, Diff: diff}
}

// ShouldWrite reports whether newText differs from oldText.
func ShouldWrite(oldText, newText string) bool {
	return Compare("page", oldText, newText).Changed
}

// Log writes the diff line by line at info level.
func (d Decision) Log(log *slog.Logger) {
	if !d.Changed {
		log.Info("no changes")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(d.Diff, "\n"), "\n") {
		log.Info(line)
	}
}
