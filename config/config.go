// Package config holds the runner settings read from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/Swind/go-conformance-runner/core"
)

const (
	DefaultMaxConcurrency = 5
	DefaultMaxRetries     = 2
	DefaultBackoffUnit    = 100 * time.Millisecond
	DefaultMetricsAddr    = ":2112"
	DefaultLogLevel       = "info"
)

// Config defines the data model of runner.yml.
type Config struct {
	MaxConcurrency   int           `yaml:"max_concurrency"`
	MaxRetries       int           `yaml:"max_retries"`
	BackoffUnit      time.Duration `yaml:"backoff_unit"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	TaskFile         string        `yaml:"task_file"`
	MetricsAddr      string        `yaml:"metrics_addr"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
	LogLevel         string        `yaml:"log_level"`
	AMQP             AMQPConfig    `yaml:"amqp"`
}

// AMQPConfig defines the optional result queue. An empty URL disables publishing.
type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		MaxRetries:     DefaultMaxRetries,
		BackoffUnit:    DefaultBackoffUnit,
		MetricsAddr:    DefaultMetricsAddr,
		LogLevel:       DefaultLogLevel,
		AMQP:           AMQPConfig{Queue: "conformance-results"},
	}
}

// Load reads the YAML file at path over the defaults. Keys missing from the
// file keep their default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings no run can start with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries))
	}
	if c.BackoffUnit < 0 || c.MaxBackoff < 0 {
		errs = append(errs, errors.New("backoff durations must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the retry settings.
func (c Config) RetryPolicy() core.RetryPolicy {
	return core.RetryPolicy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BackoffUnit,
		MaxDelay:   c.MaxBackoff,
	}
}
