// Package variables computes derived statistics for a participation from the
// participations that strictly precede it.
//
// A Creator is a pure function of (current record, prior history) that writes
// only into the statistics of the record being enriched. Creators declare which
// history they need, so the driver can route the horse or the jockey history.
// An Engine owns an explicit, ordered list of creators; there is no global
// registration.
package variables

import (
	"fmt"

	"github.com/okian/formguide/internal/domain/model"
)

// Scope names the history a creator consumes.
type Scope int

// Supported scopes.
const (
	ScopeHorse Scope = iota
	ScopeJockey
)

func (s Scope) String() string {
	switch s {
	case ScopeHorse:
		return "horse"
	case ScopeJockey:
		return "jockey"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Func computes statistics for cur from a non-empty history and writes them to out.
type Func func(cur model.ParticipationRecord, history []model.ParticipationRecord, out model.Stats)

// Creator is one named, independently testable statistic producer.
type Creator struct {
	Name    string
	Scope   Scope
	Columns []string
	Compute Func
}

// GroupFunc computes cross-sectional statistics over one complete race.
type GroupFunc func(group []*model.EnrichedRecord)

// GroupCreator runs after the forward pass over every record of a race.
// It must only read information known before the race started.
type GroupCreator struct {
	Name    string
	Columns []string
	Compute GroupFunc
}

// Invocations counts creator calls for one record.
type Invocations struct {
	Horse   int
	Jockey  int
	Skipped int
}

// Engine applies an ordered list of creators to enriched records.
type Engine struct {
	creators []Creator
	groups   []GroupCreator
	columns  []string
}

// NewEngine validates and freezes the creator lists. Column names must be
// unique across all creators.
func NewEngine(creators []Creator, groups ...GroupCreator) (*Engine, error) {
	e := &Engine{
		creators: append([]Creator(nil), creators...),
		groups:   append([]GroupCreator(nil), groups...),
	}
	seen := make(map[string]string)
	claim := func(owner string, cols []string) error {
		for _, c := range cols {
			if prev, ok := seen[c]; ok {
				return fmt.Errorf("%w: column %q produced by %s and %s", ErrDuplicateColumn, c, prev, owner)
			}
			seen[c] = owner
			e.columns = append(e.columns, c)
		}
		return nil
	}
	for _, c := range e.creators {
		if c.Compute == nil {
			return nil, fmt.Errorf("%w: creator %q has no compute function", ErrInvalidCreator, c.Name)
		}
		if c.Scope != ScopeHorse && c.Scope != ScopeJockey {
			return nil, fmt.Errorf("%w: creator %q has %s", ErrInvalidCreator, c.Name, c.Scope)
		}
		if err := claim(c.Name, c.Columns); err != nil {
			return nil, err
		}
	}
	for _, g := range e.groups {
		if g.Compute == nil {
			return nil, fmt.Errorf("%w: group creator %q has no compute function", ErrInvalidCreator, g.Name)
		}
		if err := claim(g.Name, g.Columns); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustEngine is NewEngine that panics on error.
func MustEngine(creators []Creator, groups ...GroupCreator) *Engine {
	e, err := NewEngine(creators, groups...)
	if err != nil {
		panic(err)
	}
	return e
}

// Columns returns every derived column: creator columns in registration order,
// then group creator columns.
func (e *Engine) Columns() []string {
	return append([]string(nil), e.columns...)
}

// Creators returns the registered creators in order.
func (e *Engine) Creators() []Creator {
	return append([]Creator(nil), e.creators...)
}

// HasGroupCreators reports whether a race-group stage is configured.
func (e *Engine) HasGroupCreators() bool { return len(e.groups) > 0 }

// Enrich runs every creator against the history of its scope. A creator whose
// history is empty is skipped and its columns stay absent.
func (e *Engine) Enrich(rec *model.EnrichedRecord, horse, jockey []model.ParticipationRecord) Invocations {
	var inv Invocations
	for _, c := range e.creators {
		h := horse
		if c.Scope == ScopeJockey {
			h = jockey
		}
		if len(h) == 0 {
			inv.Skipped++
			continue
		}
		c.Compute(rec.ParticipationRecord, h, rec.Stats)
		if c.Scope == ScopeJockey {
			inv.Jockey++
		} else {
			inv.Horse++
		}
	}
	return inv
}

// EnrichGroup runs every group creator over one complete race.
func (e *Engine) EnrichGroup(group []*model.EnrichedRecord) {
	if len(group) == 0 {
		return
	}
	for _, g := range e.groups {
		g.Compute(group)
	}
}
