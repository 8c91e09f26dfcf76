package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	conformance "github.com/Swind/go-conformance-runner"
	"github.com/Swind/go-conformance-runner/broker"
	"github.com/Swind/go-conformance-runner/config"
	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/loader"
	"github.com/Swind/go-conformance-runner/matcher"
	obs "github.com/Swind/go-conformance-runner/observability/prometheus"
)

// Exit codes of the run command.
const (
	exitPassed  = 0
	exitFailed  = 1
	exitAborted = 2
)

const envPrefix = "REGEXRUNNER_"

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "regexrunner",
		Usage:     "Run regular-expression conformance tasks",
		Writer:    stdout,
		ErrWriter: stderr,
		// main maps exit codes itself.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			runCommand(stdout, stderr),
			checkCommand(stdout),
		},
	}
}

func runCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run every task of a task file and report pass/fail counts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tasks", Aliases: []string{"t"}, EnvVars: []string{envPrefix + "TASK_FILE"}, Usage: "task file to run"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{envPrefix + "CONFIG"}, Usage: "YAML config file"},
			&cli.IntFlag{Name: "concurrency", EnvVars: []string{envPrefix + "MAX_CONCURRENCY"}, Usage: "maximum tasks in flight"},
			&cli.IntFlag{Name: "retries", EnvVars: []string{envPrefix + "MAX_RETRIES"}, Usage: "retries per failing task"},
			&cli.DurationFlag{Name: "backoff", EnvVars: []string{envPrefix + "BACKOFF_UNIT"}, Usage: "backoff unit; retry i waits unit*(i+1)"},
			&cli.DurationFlag{Name: "max-backoff", EnvVars: []string{envPrefix + "MAX_BACKOFF"}, Usage: "cap on a single backoff, 0 for none"},
			&cli.StringFlag{Name: "metrics-addr", EnvVars: []string{envPrefix + "METRICS_ADDR"}, Usage: "serve /metrics on this address, empty to disable"},
			&cli.StringFlag{Name: "amqp-url", EnvVars: []string{envPrefix + "AMQP_URL"}, Usage: "publish results to this broker"},
			&cli.StringFlag{Name: "amqp-queue", EnvVars: []string{envPrefix + "AMQP_QUEUE"}, Usage: "result queue name"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{envPrefix + "LOG_LEVEL"}, Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "print-metrics", Usage: "print the metrics text after the run"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), exitAborted)
			}
			return runAction(c.Context, cfg, c.Bool("print-metrics"), stdout, stderr)
		},
	}
}

// loadConfig layers defaults, the config file, then flags and their
// environment variables.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}

	if c.IsSet("tasks") {
		cfg.TaskFile = c.String("tasks")
	}
	if c.IsSet("concurrency") {
		cfg.MaxConcurrency = c.Int("concurrency")
	}
	if c.IsSet("retries") {
		cfg.MaxRetries = c.Int("retries")
	}
	if c.IsSet("backoff") {
		cfg.BackoffUnit = c.Duration("backoff")
	}
	if c.IsSet("max-backoff") {
		cfg.MaxBackoff = c.Duration("max-backoff")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.IsSet("amqp-url") {
		cfg.AMQP.URL = c.String("amqp-url")
	}
	if c.IsSet("amqp-queue") {
		cfg.AMQP.Queue = c.String("amqp-queue")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	if cfg.TaskFile == "" {
		return cfg, errors.New("no task file: set --tasks or task_file")
	}
	return cfg, cfg.Validate()
}

func runAction(ctx context.Context, cfg config.Config, printMetrics bool, stdout, stderr io.Writer) error {
	logger := core.NewDefaultLogger(stderr, cfg.LogLevel)

	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := obs.NewMetricsExporter(cfg.MetricsNamespace, reg, obs.ExporterOptions{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("register metrics: %v", err), exitAborted)
	}
	poller, err := obs.NewSnapshotPoller(cfg.MetricsNamespace, reg, time.Second)
	if err != nil {
		return cli.Exit(fmt.Sprintf("register pool metrics: %v", err), exitAborted)
	}

	opts := conformance.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		Retry:          cfg.RetryPolicy(),
		Metrics:        exporter,
		Logger:         logger,
	}

	if cfg.AMQP.URL != "" {
		publisher, err := broker.Dial(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			return cli.Exit(fmt.Sprintf("connect result broker: %v", err), exitAborted)
		}
		defer publisher.Close()
		opts.Sink = publisher
		logger.Info("Publishing results", core.F("queue", cfg.AMQP.Queue))
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer shutdown()
	}

	f, err := os.Open(cfg.TaskFile)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open task file: %v", err), exitAborted)
	}
	defer f.Close()

	runner := conformance.NewRunner(opts)
	poller.AddPool("conformance", runner.Scheduler())
	poller.Start(ctx)

	summary, runErr := runner.Run(ctx, f)
	poller.Stop()

	for _, run := range summary.Failures {
		fmt.Fprintf(stdout, "FAIL #%d %s %s %s: %s\n",
			run.Task.SequenceID, run.Task.Type, run.Task.Pattern, run.Task.Input, run.Terminal().Reason)
	}
	fmt.Fprintf(stdout, "loaded=%d passed=%d failed=%d\n", summary.Loaded, summary.Passed, summary.Failed)

	if printMetrics {
		text, err := obs.Render(reg)
		if err != nil {
			logger.Warn("Rendering metrics failed", core.F("error", err))
		} else {
			fmt.Fprint(stdout, text)
		}
	}

	switch {
	case runErr != nil:
		return cli.Exit(runErr.Error(), exitAborted)
	case summary.Failed > 0:
		return cli.Exit("", exitFailed)
	default:
		return nil
	}
}

// serveMetrics serves reg on addr/metrics until the returned func is called.
func serveMetrics(addr string, reg *prom.Registry, logger core.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", core.F("addr", addr), core.F("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func checkCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Parse a task file and print its tasks without running them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tasks", Aliases: []string{"t"}, Required: true, Usage: "task file to parse"},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("tasks"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("open task file: %v", err), exitAborted)
			}
			defer f.Close()

			tasks, err := loader.LoadAll(f)
			if err != nil {
				return cli.Exit(fmt.Sprintf("read task file: %v", err), exitAborted)
			}

			for _, task := range tasks {
				fmt.Fprintf(stdout, "#%d\t%s\t%s\t%s\t%s\n",
					task.SequenceID, task.Type, task.Pattern, task.Input, matcher.FormatSpans(task.Expected))
			}
			fmt.Fprintf(stdout, "%d tasks\n", len(tasks))
			return nil
		},
	}
}
