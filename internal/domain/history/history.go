// Package history keeps per-entity participation histories in replay order.
package history

import (
	"slices"

	"github.com/okian/formguide/internal/domain/model"
)

// Index maps an entity key (horse id, jockey key) to the ordered participations
// appended for it so far. It only grows. Index is not safe for concurrent use;
// the enrichment driver owns it for the duration of one pass.
type Index struct {
	name    string
	entries map[string][]model.ParticipationRecord
	size    int
}

// New creates an empty index. The name labels it in logs and metrics.
func New(name string, opts ...Option) *Index {
	idx := &Index{name: name}
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	idx.entries = make(map[string][]model.ParticipationRecord, cfg.entities)
	return idx
}

// Name returns the index label.
func (i *Index) Name() string { return i.name }

// Lookup returns the history for id, empty when the entity was never seen.
// The result is clipped: appending to it never writes into the index.
func (i *Index) Lookup(id string) []model.ParticipationRecord {
	return slices.Clip(i.entries[id])
}

// Append adds r to the end of id's history. Callers append in consumption order.
func (i *Index) Append(id string, r model.ParticipationRecord) {
	i.entries[id] = append(i.entries[id], r)
	i.size++
}

// Len returns the number of entities with at least one record.
func (i *Index) Len() int { return len(i.entries) }

// Size returns the total number of records across all entities.
func (i *Index) Size() int { return i.size }
