package loader_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/loader"
	"github.com/Swind/go-conformance-runner/matcher"
)

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// TestLoader_ParsesLines verifies the four-field task format
// Given: A file with a valid line, a short line, a blank line and a second valid line
// When: Tasks is iterated
// Then: Two tasks are produced with sequence ids 1 and 2 and parsed spans
func TestLoader_ParsesLines(t *testing.T) {
	src := strings.NewReader(`word \w+ hello5 (0,6)
bad pattern

digit \d a1b2 (1,2)(3,4) trailing tokens
`)

	tasks, err := loader.LoadAll(src, loader.WithIDGenerator(counterIDs()))
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}

	first := tasks[0]
	if first.SequenceID != 1 || first.Type != "word" || first.Pattern != `\w+` || first.Input != "hello5" {
		t.Errorf("tasks[0] = %+v, want word \\w+ hello5", first)
	}
	if diff := cmp.Diff([]matcher.Span{{Start: 0, End: 6}}, first.Expected); diff != "" {
		t.Errorf("tasks[0].Expected mismatch (-want +got):\n%s", diff)
	}

	second := tasks[1]
	if second.SequenceID != 2 || second.CorrelationID != "id-2" {
		t.Errorf("tasks[1] ids = (%d, %s), want (2, id-2)", second.SequenceID, second.CorrelationID)
	}
	if diff := cmp.Diff([]matcher.Span{{Start: 1, End: 2}, {Start: 3, End: 4}}, second.Expected); diff != "" {
		t.Errorf("tasks[1].Expected mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExpected(t *testing.T) {
	tests := []struct {
		in   string
		want []matcher.Span
	}{
		{"(0,1)", []matcher.Span{{Start: 0, End: 1}}},
		{"(0,1)junk(2,3)", []matcher.Span{{Start: 0, End: 1}, {Start: 2, End: 3}}},
		{"(a,1)(4,5)", []matcher.Span{{Start: 4, End: 5}}},
		{"(-1,2)", nil},
		{"none", nil},
		{"(99999999999999999999,1)(1,1)", []matcher.Span{{Start: 1, End: 1}}},
	}

	for _, tt := range tests {
		got := loader.ParseExpected(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseExpected(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

// TestLoader_Restart verifies the sequence can be iterated twice
// Given: A loader over a two-line file
// When: Tasks is iterated twice
// Then: Sequence ids repeat and correlation ids are fresh
func TestLoader_Restart(t *testing.T) {
	src := strings.NewReader("a a a (0,1)\nb b b (0,1)\n")
	l := loader.New(src, loader.WithIDGenerator(counterIDs()))

	var seqs []int
	var ids []string
	for range 2 {
		for task, err := range l.Tasks() {
			if err != nil {
				t.Fatalf("Tasks failed: %v", err)
			}
			seqs = append(seqs, task.SequenceID)
			ids = append(ids, task.CorrelationID)
		}
	}

	if diff := cmp.Diff([]int{1, 2, 1, 2}, seqs); diff != "" {
		t.Errorf("sequence ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"id-1", "id-2", "id-3", "id-4"}, ids); diff != "" {
		t.Errorf("correlation ids mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_DefaultIDsAreUnique(t *testing.T) {
	tasks, err := loader.LoadAll(strings.NewReader("a a a (0,1)\na a a (0,1)\n"))
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if tasks[0].CorrelationID == "" || tasks[0].CorrelationID == tasks[1].CorrelationID {
		t.Errorf("correlation ids = %q, %q, want distinct non-empty", tasks[0].CorrelationID, tasks[1].CorrelationID)
	}
}

// TestLoader_EarlyStop verifies breaking out of the loop stops reading
func TestLoader_EarlyStop(t *testing.T) {
	l := loader.New(strings.NewReader("a a a (0,1)\nb b b (0,1)\nc c c (0,1)\n"))

	count := 0
	for _, err := range l.Tasks() {
		if err != nil {
			t.Fatalf("Tasks failed: %v", err)
		}
		count++
		if count == 1 {
			break
		}
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

type failingSource struct {
	seekErr error
	readErr error
}

func (f failingSource) Seek(offset int64, whence int) (int64, error) {
	return 0, f.seekErr
}

func (f failingSource) Read(p []byte) (int, error) {
	return 0, f.readErr
}

var _ io.ReadSeeker = failingSource{}

func TestLoader_SourceErrors(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name string
		src  failingSource
	}{
		{"seek", failingSource{seekErr: errBoom}},
		{"read", failingSource{readErr: errBoom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.LoadAll(tt.src)
			if !errors.Is(err, errBoom) {
				t.Errorf("LoadAll err = %v, want wrapped %v", err, errBoom)
			}
		})
	}
}

func TestLoader_LineTooLong(t *testing.T) {
	long := "a a " + strings.Repeat("x", 2<<20) + " (0,1)\n"
	_, err := loader.LoadAll(strings.NewReader(long))
	if err == nil {
		t.Error("LoadAll err = nil, want error for oversized line")
	}
}

// TestLoader_KeepsSpansOutsideInput verifies impossible spans are kept and logged
// Given: A line whose expected groups are inverted or run past the input
// When: The file is loaded with a debug logger
// Then: The spans are kept as written and one debug line names the first bad span
func TestLoader_KeepsSpansOutsideInput(t *testing.T) {
	var buf bytes.Buffer
	logger := core.NewDefaultLogger(&buf, "debug")

	tasks, err := loader.LoadAll(strings.NewReader("digit \\d a1 (5,2)(0,9)\n"), loader.WithLogger(logger))
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	want := []matcher.Span{{Start: 5, End: 2}, {Start: 0, End: 9}}
	if diff := cmp.Diff(want, tasks[0].Expected); diff != "" {
		t.Errorf("Expected mismatch (-want +got):\n%s", diff)
	}
	if out := buf.String(); !strings.Contains(out, "Expected span outside input") || !strings.Contains(out, "span=\"(5,2)\"") {
		t.Errorf("log output = %q, want debug line for (5,2)", out)
	}
}
