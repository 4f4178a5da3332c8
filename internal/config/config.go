// Package config defines process configuration and its loading hooks.
//
// Conventions:
// - New() builds a Config with defaults.
// - Load layers a YAML file and environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/formguide/internal/domain/model"
)

// Input formats.
const (
	FormatCSV      = "csv"
	FormatFeeds    = "feeds"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Input is a participation CSV, a feed directory, or empty when the
	// input comes from the database.
	Input string `koanf:"input"`
	// InputFormat is one of csv, feeds, sqlite, postgres.
	InputFormat string `koanf:"input_format"`

	// Driver and DSN select the database used as input or sink.
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`

	// Output is the enriched CSV path. Empty disables the CSV sink.
	Output string `koanf:"output"`

	// Policy decides what happens to malformed records: strict or skip.
	Policy string `koanf:"policy"`

	// Creators lists the variable creators to run, in order. Empty means the default set.
	Creators []string `koanf:"creators"`
	// Normalize runs the race-group normalizers after each race.
	Normalize bool `koanf:"normalize"`
	// FillMissing writes 0 instead of an empty cell for absent statistics.
	FillMissing bool `koanf:"fill_missing"`

	// ProgressEvery reports progress every N records. Zero disables it.
	ProgressEvery int `koanf:"progress_every"`

	// CrawlWorkers and CrawlQueueSize size the crawler.
	CrawlWorkers   int `koanf:"crawl_workers"`
	CrawlQueueSize int `koanf:"crawl_queue_size"`
	// BaseURL is the results page endpoint.
	BaseURL string `koanf:"base_url"`
	// RequestTimeoutMS bounds each page request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		InputFormat:      FormatCSV,
		Driver:           FormatSQLite,
		Policy:           string(model.PolicySkip),
		ProgressEvery:    10_000,
		CrawlWorkers:     runtime.NumCPU() * 2,
		CrawlQueueSize:   1024,
		BaseURL:          "https://racing.hkjc.com/racing/information/English/Racing/LocalResults.aspx",
		RequestTimeoutMS: 30_000,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// MalformedPolicy parses Policy.
func (c *Config) MalformedPolicy() (model.Policy, error) {
	p, err := model.ParsePolicy(c.Policy)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return p, nil
}

// Validate checks field combinations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.InputFormat {
	case FormatCSV, FormatFeeds, FormatSQLite, FormatPostgres:
	default:
		return fmt.Errorf("%w: unknown input_format %q", ErrInvalidConfig, c.InputFormat)
	}
	switch c.Driver {
	case FormatSQLite, FormatPostgres:
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	if _, err := c.MalformedPolicy(); err != nil {
		return err
	}
	if c.ProgressEvery < 0 || c.CrawlQueueSize < 0 || c.RequestTimeoutMS < 0 {
		return fmt.Errorf("%w: sizes and timeouts must not be negative", ErrInvalidConfig)
	}
	for i, name := range c.Creators {
		c.Creators[i] = strings.TrimSpace(name)
	}
	return nil
}
