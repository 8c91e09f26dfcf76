package matcher

import (
	"fmt"
	"slices"
	"strings"
)

// Span is a half-open [Start, End) byte range into a task input.
type Span struct {
	Start int
	End   int
}

// String renders the span in task-file notation, e.g. "(0,3)".
func (s Span) String() string {
	return fmt.Sprintf("(%d,%d)", s.Start, s.End)
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// MatchResult is the flattened span sequence produced for one input:
// for every match the overall span, followed by one span per capturing
// group in declaration order.
type MatchResult []Span

// String renders the result in task-file notation.
func (r MatchResult) String() string {
	return FormatSpans(r)
}

// FormatSpans renders spans as "(a,b)(c,d)...". An empty sequence renders as "[]".
func FormatSpans(spans []Span) string {
	if len(spans) == 0 {
		return "[]"
	}
	var b strings.Builder
	for _, s := range spans {
		fmt.Fprintf(&b, "(%d,%d)", s.Start, s.End)
	}
	return b.String()
}

// EqualSpans reports whether a and b hold the same pairs in the same order.
func EqualSpans(a, b []Span) bool {
	return slices.Equal(a, b)
}
