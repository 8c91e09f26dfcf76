package matcher

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ErrEngineFault reports that the engine panicked or returned malformed indices.
var ErrEngineFault = errors.New("engine fault")

// Evaluator runs tasks against an Engine and compares produced spans with
// the expected ones.
type Evaluator struct {
	engine Engine
}

// NewEvaluator creates an Evaluator. A nil engine selects coregex.
func NewEvaluator(engine Engine) *Evaluator {
	if engine == nil {
		engine = NewCoregexEngine()
	}
	return &Evaluator{engine: engine}
}

// Evaluate is a shorthand for NewEvaluator(engine).Evaluate.
func Evaluate(engine Engine, pattern, input string, expected []Span) (MatchResult, Outcome) {
	return NewEvaluator(engine).Evaluate(pattern, input, expected)
}

// Evaluate searches input for every match of pattern and compares the
// flattened span sequence with expected.
//
// Compile errors and engine faults produce a Fail outcome carrying the error
// text; they are not distinguished from mismatches.
func (e *Evaluator) Evaluate(pattern, input string, expected []Span) (MatchResult, Outcome) {
	got, err := e.Spans(pattern, input)
	if err != nil {
		return got, Failed(fmt.Sprintf("engine error: %v", err))
	}
	if EqualSpans(got, expected) {
		return got, Passed()
	}
	return got, Failed(fmt.Sprintf("mismatch: got %s, expected %s", FormatSpans(got), FormatSpans(expected)))
}

// Spans collects the spans of all non-overlapping matches of pattern in input,
// scanning left to right from offset 0.
//
// Groups that did not participate in a match are reported as a zero-length
// span at the start of that match. After a zero-length match the cursor moves
// forward by one rune so that patterns matching the empty string terminate.
func (e *Evaluator) Spans(pattern, input string) (result MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEngineFault, r)
		}
	}()

	prog, err := e.engine.Compile(pattern)
	if err != nil {
		return nil, err
	}
	groups := prog.NumGroups()

	cursor := 0
	for cursor <= len(input) {
		loc := prog.FindAt(input, cursor)
		if loc == nil {
			break
		}
		if len(loc) < 2 {
			return result, fmt.Errorf("%w: %d submatch indices", ErrEngineFault, len(loc))
		}

		start, end := loc[0], loc[1]
		if start < cursor || end < start || end > len(input) {
			return result, fmt.Errorf("%w: match (%d,%d) outside [%d,%d]", ErrEngineFault, start, end, cursor, len(input))
		}

		result = append(result, Span{Start: start, End: end})
		for g := 1; g <= groups; g++ {
			gs, ge := -1, -1
			if 2*g+1 < len(loc) {
				gs, ge = loc[2*g], loc[2*g+1]
			}
			if gs < 0 || ge < 0 {
				result = append(result, Span{Start: start, End: start})
				continue
			}
			result = append(result, Span{Start: gs, End: ge})
		}

		if end > start {
			cursor = end
		} else {
			cursor = end + runeWidth(input, end)
		}
	}
	return result, nil
}

// Diff returns a human-readable diff between expected and got, or "" when
// they are equal.
func Diff(expected, got []Span) string {
	return cmp.Diff(expected, got, cmpopts.EquateEmpty())
}

// runeWidth returns the byte width of the rune at offset at, or 1 past the end
// of input and on invalid UTF-8.
func runeWidth(input string, at int) int {
	if at >= len(input) {
		return 1
	}
	_, size := utf8.DecodeRuneInString(input[at:])
	if size < 1 {
		return 1
	}
	return size
}
