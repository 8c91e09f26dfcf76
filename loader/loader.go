// Package loader reads conformance tasks from a line-oriented task file.
//
// Each line has four whitespace-separated fields:
//
//	<type> <pattern> <input> <expected>
//
// where expected is a run of "(start,end)" groups, for example "(0,1)(2,3)".
// Lines with fewer than four fields are skipped. Groups are kept as written,
// even when start > end or end runs past the input; such a task can never
// pass, and the loader logs it at debug.
//
// The span grammar is tokenized with the standard library regexp package, not
// the engine under test.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/matcher"
)

const maxLineSize = 1 << 20

var spanPattern = regexp.MustCompile(`\((\d+),(\d+)\)`)

// Loader produces tasks from a seekable source.
type Loader struct {
	src    io.ReadSeeker
	newID  func() string
	logger core.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithIDGenerator replaces the correlation id generator.
func WithIDGenerator(gen func() string) Option {
	return func(l *Loader) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// WithLogger sets the logger used for skipped lines.
func WithLogger(logger core.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader over src.
func New(src io.ReadSeeker, opts ...Option) *Loader {
	l := &Loader{
		src:    src,
		newID:  uuid.NewString,
		logger: core.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tasks returns the tasks of the source in file order.
//
// Lines are read on demand. Every call rewinds the source, so the sequence
// can be iterated again; sequence ids restart at 1 and correlation ids are
// generated afresh. A read error is yielded once and ends the sequence.
func (l *Loader) Tasks() iter.Seq2[core.Task, error] {
	return func(yield func(core.Task, error) bool) {
		if _, err := l.src.Seek(0, io.SeekStart); err != nil {
			yield(core.Task{}, fmt.Errorf("rewind task source: %w", err))
			return
		}

		scanner := bufio.NewScanner(l.src)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		lineNo := 0
		seq := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if len(fields) < 4 {
				l.logger.Debug("Skipping malformed task line",
					core.F("line", lineNo),
					core.F("fields", len(fields)))
				continue
			}

			seq++
			task := core.Task{
				SequenceID:    seq,
				CorrelationID: l.newID(),
				Type:          fields[0],
				Pattern:       fields[1],
				Input:         fields[2],
				Expected:      ParseExpected(fields[3]),
			}
			if bad, ok := firstInvalidSpan(task.Expected, len(task.Input)); ok {
				l.logger.Debug("Expected span outside input",
					core.F("line", lineNo),
					core.F("sequenceID", seq),
					core.F("span", bad.String()),
					core.F("inputLen", len(task.Input)))
			}
			if !yield(task, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(core.Task{}, fmt.Errorf("read task line %d: %w", lineNo+1, err))
		}
	}
}

// ParseExpected extracts every "(a,b)" group from s in order. Text between
// groups is ignored, and a group whose numbers do not fit an int is dropped.
func ParseExpected(s string) []matcher.Span {
	var spans []matcher.Span
	for _, m := range spanPattern.FindAllStringSubmatch(s, -1) {
		start, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		end, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		spans = append(spans, matcher.Span{Start: start, End: end})
	}
	return spans
}

// firstInvalidSpan returns the first span not within [0, inputLen] in order.
func firstInvalidSpan(spans []matcher.Span, inputLen int) (matcher.Span, bool) {
	for _, s := range spans {
		if s.Start > s.End || s.End > inputLen {
			return s, true
		}
	}
	return matcher.Span{}, false
}

// LoadAll reads every task of src. It stops at the first read error.
func LoadAll(src io.ReadSeeker, opts ...Option) ([]core.Task, error) {
	var tasks []core.Task
	for task, err := range New(src, opts...).Tasks() {
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
