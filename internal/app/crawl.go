package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/formguide/internal/adapters/csvio"
	"github.com/okian/formguide/internal/adapters/mq/queue"
	"github.com/okian/formguide/internal/adapters/mq/worker"
	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/dedupe"
	"github.com/okian/formguide/pkg/logger"
)

// enqueueBackoff is the pause before retrying a full queue.
const enqueueBackoff = 10 * time.Millisecond

// FailedPage is a crawl target that produced no race.
type FailedPage struct {
	Target scrape.Target
	Err    error
}

// CrawlReport summarizes one crawl.
type CrawlReport struct {
	Targets int
	Races   int
	Failed  []FailedPage
}

// Crawl fetches every race of meetings and writes them as feed files into
// dir. Pages that fail are reported, not retried.
func (s *Service) Crawl(ctx context.Context, meetings []scrape.Meeting, dir string) (CrawlReport, error) {
	targets := scrape.Targets(s.baseURL, meetings)
	rep := CrawlReport{Targets: len(targets)}
	log := s.logger.Named("crawl")

	fw, err := csvio.NewFeedWriter(dir)
	if err != nil {
		return rep, err
	}

	var failMu sync.Mutex
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	pool := worker.NewPool(s.crawlWorkers, q, s.fetcher, fw,
		worker.WithLogger(log),
		worker.WithFailureHandler(func(_ context.Context, j worker.Job, err error) {
			failMu.Lock()
			rep.Failed = append(rep.Failed, FailedPage{Target: j, Err: err})
			failMu.Unlock()
		}),
	)
	pool.Start(ctx)
	log.Info(ctx, "crawl started", logger.Int("targets", len(targets)), logger.Int("meetings", len(meetings)))

	seen := dedupe.NewInMemoryDeduper()
	enqueueErr := s.enqueue(ctx, q, seen, targets)
	_ = q.Close()

	waitErr := pool.Wait(ctx)
	// Wait gives up on a cancelled ctx while workers may still be mid-job;
	// they must all be gone before the feeds close and rep is read.
	pool.Join()
	closeErr := fw.Close()
	rep.Races = fw.Count()

	log.Info(ctx, "crawl finished",
		logger.Int("races", rep.Races),
		logger.Int("failed", len(rep.Failed)),
	)
	switch {
	case enqueueErr != nil:
		return rep, enqueueErr
	case waitErr != nil:
		return rep, fmt.Errorf("crawl: %w", waitErr)
	case closeErr != nil:
		return rep, fmt.Errorf("close feeds: %w", closeErr)
	}
	return rep, nil
}

// enqueue submits each distinct target, waiting while the queue is full.
func (s *Service) enqueue(ctx context.Context, q *queue.InMemoryQueue, seen dedupe.Deduper, targets []scrape.Target) error {
	for _, t := range targets {
		if seen.SeenAndRecord(ctx, t.URL) {
			continue
		}
		for !q.Enqueue(ctx, t) {
			select {
			case <-ctx.Done():
				seen.Unrecord(ctx, t.URL)
				return fmt.Errorf("enqueue %s: %w", t.URL, ctx.Err())
			case <-time.After(enqueueBackoff):
			}
		}
	}
	return nil
}
