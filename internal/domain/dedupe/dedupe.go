// Package dedupe drops repeated participations and crawl targets.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/formguide/internal/domain/model"
)

// Deduper records seen keys so each participation or page is handled at most once.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be submitted again, e.g. after a crawl job
	// was refused by a full queue.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. In bounded mode an insertion
// list evicts the oldest key once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
// The default is unbounded: one enrichment pass must never forget a key.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	if d.maxSize > 0 {
		d.order = list.New()
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.order == nil {
		d.seen[id] = nil
		d.size.Add(1)
		return false
	}
	if len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushBack(id)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	if el != nil {
		d.order.Remove(el)
	}
	d.size.Add(-1)
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(string))
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Records keeps the first occurrence of each participation, by (date,
// race_index, horse_id), in input order. It returns the kept records and the
// number dropped. Callers that need the same survivor for any input order sort
// first with model.Compare. d must be unbounded, or keys can be forgotten
// mid-pass.
func Records(ctx context.Context, d Deduper, records []model.ParticipationRecord) ([]model.ParticipationRecord, int) {
	out := make([]model.ParticipationRecord, 0, len(records))
	dups := 0
	for _, r := range records {
		if d.SeenAndRecord(ctx, r.ID()) {
			dups++
			continue
		}
		out = append(out, r)
	}
	return out, dups
}
