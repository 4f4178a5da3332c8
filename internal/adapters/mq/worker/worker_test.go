package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/formguide/internal/adapters/mq/queue"
	"github.com/okian/formguide/internal/adapters/mq/worker"
	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(j queue.Job) { mq.jobs <- j } //nolint:gocritic // hugeParam

type mockFetcher struct {
	mu     sync.Mutex
	errors map[string]error
	calls  int
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{errors: make(map[string]error)}
}

func (mf *mockFetcher) FetchRace(_ context.Context, url string) (scrape.Page, error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	mf.calls++
	if err, ok := mf.errors[url]; ok {
		return scrape.Page{}, err
	}
	return scrape.Page{Race: model.Race{
		Date:       model.MustDate("2024-09-08"),
		RaceNumber: len(url),
		Results:    []model.Result{{HorseID: "H1", Position: "01"}},
	}}, nil
}

func (mf *mockFetcher) setError(url string, err error) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	mf.errors[url] = err
}

type mockSink struct {
	mu    sync.Mutex
	races []model.Race
	err   error
}

func (ms *mockSink) WriteRace(r model.Race) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return ms.err
	}
	ms.races = append(ms.races, r)
	return nil
}

func (ms *mockSink) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.races)
}

func job(url string) queue.Job {
	return queue.Job{URL: url, Date: model.MustDate("2024-09-08"), Racecourse: "ST", RaceNo: 1}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		q := newMockQueue()
		fetcher := newMockFetcher()
		sink := &mockSink{}

		convey.Convey("When the queue delivers jobs and is closed", func() {
			fetcher.setError("bad", fmt.Errorf("%w: boom", scrape.ErrFetch))
			var failed []string
			w := worker.NewInMemoryWorker(q, fetcher, sink,
				worker.WithName("test-worker"),
				worker.WithFailureHandler(func(_ context.Context, j queue.Job, err error) {
					failed = append(failed, j.URL)
				}),
			)
			q.add(job("page-1"))
			q.add(job("bad"))
			_ = q.Close()

			w.Run(context.Background())

			convey.Convey("Then good pages reach the sink with the job URL", func() {
				convey.So(sink.count(), convey.ShouldEqual, 1)
				convey.So(sink.races[0].URL, convey.ShouldEqual, "page-1")
				convey.So(sink.races[0].Racecourse, convey.ShouldEqual, "ST")
			})

			convey.Convey("Then failures are reported", func() {
				convey.So(failed, convey.ShouldResemble, []string{"bad"})
			})
		})

		convey.Convey("When the sink fails", func() {
			sink.err = errors.New("disk full")
			var failures int
			w := worker.NewInMemoryWorker(q, fetcher, sink,
				worker.WithFailureHandler(func(context.Context, queue.Job, error) { failures++ }),
			)
			q.add(job("page-1"))
			_ = q.Close()
			w.Run(context.Background())

			convey.Convey("Then the job counts as failed", func() {
				convey.So(failures, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When shutting down a running worker", func() {
			w := worker.NewInMemoryWorker(q, fetcher, sink)
			go w.Run(context.Background())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := w.Shutdown(ctx)

			convey.Convey("Then it should shutdown gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, fetcher, sink)
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then worker should stop", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		fetcher := newMockFetcher()
		sink := &mockSink{}
		fetcher.setError("missing", fmt.Errorf("%w: missing", scrape.ErrNoResult))

		pool := worker.NewPool(4, q, fetcher, sink)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When jobs are queued and the queue is closed", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(ctx, job(fmt.Sprintf("page-%d", i))), convey.ShouldBeTrue)
			}
			convey.So(q.Enqueue(ctx, job("missing")), convey.ShouldBeTrue)
			_ = q.Close()

			err := pool.Wait(ctx)

			convey.Convey("Then every job is processed once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.count(), convey.ShouldEqual, 20)
				convey.So(pool.Parsed(), convey.ShouldEqual, 20)
				convey.So(pool.Failed(), convey.ShouldEqual, 1)
				convey.So(fetcher.calls, convey.ShouldEqual, 21)
			})
		})

		convey.Convey("When shutting down", func() {
			err := pool.Shutdown(ctx)

			convey.Convey("Then it should shutdown gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerPoolDefaults(t *testing.T) {
	convey.Convey("Given a pool with no explicit size", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockFetcher(), &mockSink{})

		convey.Convey("Then it should be created successfully", func() {
			convey.So(pool, convey.ShouldNotBeNil)
			convey.So(pool.Parsed(), convey.ShouldEqual, 0)
		})
	})
}

// stallingFetcher holds each fetch until ctx ends, then fails a little later.
type stallingFetcher struct {
	started chan struct{}
}

func (f *stallingFetcher) FetchRace(ctx context.Context, url string) (scrape.Page, error) {
	f.started <- struct{}{}
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	return scrape.Page{}, fmt.Errorf("%w: %s: %w", scrape.ErrFetch, url, ctx.Err())
}

func TestWorkerPoolJoin(t *testing.T) {
	convey.Convey("Given a pool whose workers are stuck in a fetch", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		fetcher := &stallingFetcher{started: make(chan struct{}, 2)}
		var mu sync.Mutex
		var failed []string
		pool := worker.NewPool(2, q, fetcher, &mockSink{},
			worker.WithFailureHandler(func(_ context.Context, j queue.Job, _ error) {
				mu.Lock()
				defer mu.Unlock()
				failed = append(failed, j.URL)
			}),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)
		convey.So(q.Enqueue(ctx, job("a")), convey.ShouldBeTrue)
		convey.So(q.Enqueue(ctx, job("b")), convey.ShouldBeTrue)
		<-fetcher.started
		<-fetcher.started

		convey.Convey("When ctx is cancelled and the pool joined", func() {
			cancel()
			_ = pool.Wait(ctx)
			pool.Join()

			convey.Convey("Then every in-flight job reported before Join returned", func() {
				mu.Lock()
				defer mu.Unlock()
				convey.So(failed, convey.ShouldHaveLength, 2)
				convey.So(pool.Failed(), convey.ShouldEqual, 2)
			})
		})
	})
}
