// Package worker runs the crawl: workers take jobs off the queue, fetch and
// parse the result page, and hand the race to a sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/formguide/internal/adapters/mq/queue"
	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/pkg/logger"
	"github.com/okian/formguide/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	progressInterval        = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Error stages reported to metrics.
const (
	stageFetch = "fetch"
	stageParse = "parse"
	stageEmpty = "empty"
	stageSink  = "sink"
)

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Fetcher downloads and parses one result page.
type Fetcher interface {
	FetchRace(ctx context.Context, url string) (scrape.Page, error)
}

// Sink receives every parsed race. Implementations must be safe for
// concurrent use.
type Sink interface {
	WriteRace(race model.Race) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// FailureFunc is told about every job that did not produce a race.
type FailureFunc func(ctx context.Context, job Job, err error)

// Worker processes jobs using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// counters is shared by the workers of a pool.
type counters struct {
	active atomic.Int64
	parsed atomic.Int64
	failed atomic.Int64
}

// InMemoryWorker implements Worker for crawl jobs.
type InMemoryWorker struct {
	queue   Queue
	fetcher Fetcher
	sink    Sink
	name    string
	onFail  FailureFunc
	stats   *counters

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, fetcher Fetcher, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		fetcher:  fetcher,
		sink:     sink,
		name:     "worker",
		stats:    &counters{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Warn(ctx, "crawl job failed",
					logger.String("url", job.URL),
					logger.Error(err),
				)
				if w.onFail != nil {
					w.onFail(ctx, job, err)
				}
			}
		}
	}
}

// Shutdown stops the worker after the job in hand.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// processJob fetches one page and writes its race to the sink.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	metrics.UpdateWorkerActiveCount(int(w.stats.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.stats.active.Add(-1)))
	}()

	page, err := w.fetcher.FetchRace(ctx, job.URL)
	if err != nil {
		w.stats.failed.Add(1)
		stage := stageFetch
		switch {
		case errors.Is(err, scrape.ErrNoResult):
			stage = stageEmpty
		case errors.Is(err, scrape.ErrParse):
			stage = stageParse
		}
		metrics.RecordPageError(stage)
		metrics.RecordErrorByComponent("worker", stage)
		return fmt.Errorf("race %s %s #%d: %w", job.Date.Format(model.DateLayout), job.Racecourse, job.RaceNo, err)
	}

	race := page.Race
	if race.URL == "" {
		race.URL = job.URL
	}
	if race.Racecourse == "" {
		race.Racecourse = job.Racecourse
	}
	if err := w.sink.WriteRace(race); err != nil {
		w.stats.failed.Add(1)
		metrics.RecordPageError(stageSink)
		metrics.RecordErrorByComponent("worker", stageSink)
		return fmt.Errorf("write race %s: %w", job.URL, err)
	}

	w.stats.parsed.Add(1)
	metrics.RecordPageParsed()
	w.logger.Debug(ctx, "race parsed",
		logger.String("url", job.URL),
		logger.Int("runners", len(race.Results)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *counters

	shutdown     chan struct{}
	shutdownOnce sync.Once

	logger logger.Logger
}

// NewPool creates a new worker pool. Options apply to every worker; names
// are assigned per worker.
func NewPool(workerCount int, q Queue, fetcher Fetcher, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	stats := &counters{}
	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		stats:    stats,
		shutdown: make(chan struct{}),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option{}, opts...),
			WithName("worker-"+strconv.Itoa(i)),
			withCounters(stats),
		)
		pool.workers[i] = NewInMemoryWorker(q, fetcher, sink, wopts...)
	}
	cfg := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}
	pool.logger = cfg.logger.Named("worker-pool")

	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.reportProgress(ctx)
}

// reportProgress logs crawl progress until the pool stops.
func (p *Pool) reportProgress(ctx context.Context) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.logger.Info(ctx, "crawl progress",
				logger.Int64("parsed", p.stats.parsed.Load()),
				logger.Int64("failed", p.stats.failed.Load()),
			)
		}
	}
}

// Parsed returns the number of races handed to the sink.
func (p *Pool) Parsed() int { return int(p.stats.parsed.Load()) }

// Failed returns the number of jobs that did not produce a race.
func (p *Pool) Failed() int { return int(p.stats.failed.Load()) }

// Wait blocks until every worker has returned, which happens once the queue
// is closed and drained, or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	return nil
}

// Join tells every worker to stop and blocks until each Run has returned, with
// no deadline. A worker inside a job finishes that job first, so the fetcher
// must honour the context handed to Start.
func (p *Pool) Join() {
	p.shutdownOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.shutdownOnce.Do(func() { close(w.shutdown) })
		<-w.done
	}
}

// Shutdown closes the queue and stops every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = true
		}
	}
	if timedOut {
		return fmt.Errorf("pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
