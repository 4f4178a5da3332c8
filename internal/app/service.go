// Package service wires the enrichment pipeline: it loads participations,
// drops duplicates, runs the forward pass and hands the result to the sinks.
// It also drives the crawler and serves run results to the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/formguide/internal/adapters/mq/worker"
	"github.com/okian/formguide/internal/adapters/repository"
	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/enrich"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/types"
	"github.com/okian/formguide/internal/domain/variables"
	"github.com/okian/formguide/pkg/logger"
)

// Default service configuration constants.
const (
	defaultProgressEvery = 10_000
	defaultQueueSize     = 1024
	maxRunsKept          = 50
)

// Service runs enrichment passes and crawls.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine  *variables.Engine
	store   repository.Store
	fetcher worker.Fetcher

	// Configuration
	policy        model.Policy
	output        string
	fillMissing   bool
	progressEvery int
	crawlWorkers  int
	queueSize     int
	baseURL       string

	// State
	startedAt  time.Time
	runs       []types.RunSummary
	lastReport enrich.Report
	byHorse    map[string][]types.HorseRun

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEngine sets the variable engine. The default runs the default creators.
func WithEngine(e *variables.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithStore sets the SQL sink and source.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithOutput sets the enriched CSV path. Empty disables the CSV sink.
func WithOutput(path string) Option {
	return func(s *Service) {
		s.output = path
	}
}

// WithPolicy sets the malformed-record policy.
func WithPolicy(p model.Policy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

// WithFillMissing writes 0 for absent statistics in the CSV sink.
func WithFillMissing(fill bool) Option {
	return func(s *Service) {
		s.fillMissing = fill
	}
}

// WithProgressEvery reports progress every n records. Zero disables it.
func WithProgressEvery(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.progressEvery = n
		}
	}
}

// WithCrawlWorkers sets the number of crawl workers.
func WithCrawlWorkers(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.crawlWorkers = count
		}
	}
}

// WithQueueSize sets the capacity of the crawl queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithBaseURL sets the results page endpoint.
func WithBaseURL(base string) Option {
	return func(s *Service) {
		if base != "" {
			s.baseURL = base
		}
	}
}

// WithFetcher sets the page fetcher used by the crawler.
func WithFetcher(f worker.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		engine:        variables.MustEngine(variables.Default()),
		policy:        model.PolicySkip,
		progressEvery: defaultProgressEvery,
		crawlWorkers:  runtime.NumCPU() * 2,
		queueSize:     defaultQueueSize,
		baseURL:       scrape.DefaultBaseURL,
		startedAt:     time.Now(),
		byHorse:       make(map[string][]types.HorseRun),
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = scrape.NewFetcher(scrape.WithLogger(s.logger.Named("fetcher")))
	}
	return s
}

// Engine returns the variable engine used by Enrich.
func (s *Service) Engine() *variables.Engine { return s.engine }

// Close releases the store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
		"runs":          len(s.runs),
		"columns":       s.engine.Columns(),
		"policy":        string(s.policy),
		"persistent":    s.store != nil,
	}
	if n := len(s.runs); n > 0 {
		last := s.runs[n-1]
		rep := s.lastReport
		stats["lastRun"] = map[string]interface{}{
			"id":             last.ID,
			"records":        last.Records,
			"skipped":        last.Skipped,
			"duplicates":     last.Duplicates,
			"races":          rep.Races,
			"horses":         rep.HorseEntities,
			"jockeys":        rep.JockeyEntities,
			"durationMs":     last.Duration().Milliseconds(),
			"horseCalls":     rep.Invocations.Horse,
			"jockeyCalls":    rep.Invocations.Jockey,
			"skippedCreates": rep.Invocations.Skipped,
		}
	}
	return stats
}

// HorseHistory returns the latest enriched rows of a horse. The store is
// consulted when configured, otherwise the last in-memory run.
func (s *Service) HorseHistory(ctx context.Context, horseID string) ([]types.HorseRun, error) {
	if s.store != nil {
		return s.store.HorseHistory(ctx, horseID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.byHorse[horseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]types.HorseRun(nil), rows...), nil
}

// Runs returns up to limit run summaries, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]types.RunSummary, error) {
	if s.store != nil {
		return s.store.Runs(ctx, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RunSummary, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.runs[i])
	}
	return out, nil
}

// remember keeps the summary and the per-horse view of a finished run.
func (s *Service) remember(run types.RunSummary, rep enrich.Report, records []model.EnrichedRecord) {
	byHorse := make(map[string][]types.HorseRun)
	for _, r := range records {
		byHorse[r.HorseID] = append(byHorse[r.HorseID], types.NewHorseRun(run.ID, r))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	if len(s.runs) > maxRunsKept {
		s.runs = s.runs[len(s.runs)-maxRunsKept:]
	}
	s.lastReport = rep
	s.byHorse = byHorse
}
