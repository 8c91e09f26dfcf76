// Package conformance runs regular-expression conformance tasks against a
// matching engine and reports pass/fail counts per task type.
//
// A task file holds one case per line:
//
//	<type> <pattern> <input> <expected>
//
// where expected lists every match left to right, each match as its overall
// span followed by one span per capturing group, in "(start,end)" notation
// with byte offsets. A group that did not take part in a match is written as
// the empty span at the match start.
//
// Matches are searched from the end of the previous match, so a pattern that
// can match the empty string is also tried at the very end of the input. The
// engine reports an empty match there for assertions such as \B or (?m)^ even
// where a whole-input scan would not, and expected spans must list it.
//
// # Quick Start
//
//	reg := prom.NewRegistry()
//	exporter, _ := obs.NewMetricsExporter("", reg, obs.ExporterOptions{})
//
//	opts := conformance.DefaultOptions()
//	opts.Metrics = exporter
//	runner := conformance.NewRunner(opts)
//
//	f, _ := os.Open("tasks.txt")
//	defer f.Close()
//
//	summary, err := runner.Run(ctx, f)
//
// # Key Concepts
//
// Loader: reads the task file lazily. The sequence can be restarted, which
// rewinds the file.
//
// Evaluator: finds every match of a pattern, extracts spans from the engine's
// capture slots and compares them with the expected spans. Compile errors and
// engine panics are ordinary failures.
//
// Executor: evaluates one task up to MaxRetries+1 times with a linear backoff,
// recording every attempt outcome in the metrics.
//
// Scheduler: a fixed pool of MaxConcurrency workers pulling tasks from a FIFO
// queue. A failing task never stops the batch; a task source error or a
// cancelled context does.
//
// # Metrics
//
// task_success_total and task_failure_total count attempt outcomes labeled by
// task_type. With max_retries=2 a task that never passes adds 3 to the failure
// counter.
package conformance
