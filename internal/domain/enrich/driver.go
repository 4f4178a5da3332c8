// Package enrich runs the forward pass that turns participations into
// enriched records without look-ahead.
//
// Records are ordered by (date, race_index) and consumed one race at a time.
// Every record of a race is enriched from the histories as they stood before
// the race; only then are the race's records appended to the horse and jockey
// histories. A record therefore never sees itself, a same-race rival, or any
// later race.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/okian/formguide/internal/domain/history"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/variables"
	"github.com/okian/formguide/pkg/logger"
)

// History index names.
const (
	IndexHorse  = "horse"
	IndexJockey = "jockey"
)

// ProgressFunc receives the number of enriched records and the pass total.
type ProgressFunc func(done, total int)

// Report summarizes one pass.
type Report struct {
	Input          int
	Processed      int
	Skipped        int
	Races          int
	HorseEntities  int
	HorseRecords   int
	JockeyEntities int
	JockeyRecords  int
	Invocations    variables.Invocations
	Duration       time.Duration
}

// Driver is single-threaded and holds no state between passes, so one Driver
// may run many passes, but not concurrently.
type Driver struct {
	engine        *variables.Engine
	logger        logger.Logger
	policy        model.Policy
	progressEvery int
	progress      ProgressFunc
	capacityHint  int
}

// NewDriver creates a driver over an engine.
func NewDriver(engine *variables.Engine, opts ...Option) *Driver {
	d := &Driver{
		engine: engine,
		logger: logger.Nop(),
		policy: model.PolicySkip,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Engine returns the engine the driver applies.
func (d *Driver) Engine() *variables.Engine { return d.engine }

// Process enriches records and returns them in chronological order.
// ctx is used for logging only; a pass is not cancellable.
func (d *Driver) Process(ctx context.Context, records []model.ParticipationRecord) ([]model.EnrichedRecord, error) {
	out, _, err := d.Run(ctx, records)
	return out, err
}

// Run is Process that also reports pass statistics.
func (d *Driver) Run(ctx context.Context, records []model.ParticipationRecord) ([]model.EnrichedRecord, Report, error) {
	start := time.Now()
	rep := Report{Input: len(records)}

	valid, err := d.validate(ctx, records, &rep)
	if err != nil {
		return nil, rep, err
	}
	Sort(valid)

	horses := history.New(IndexHorse, history.WithCapacityHint(d.capacityHint))
	jockeys := history.New(IndexJockey, history.WithCapacityHint(d.capacityHint))
	out := make([]model.EnrichedRecord, len(valid))
	var groups [][2]int

	for lo := 0; lo < len(valid); {
		hi := lo + 1
		key := valid[lo].Key()
		for hi < len(valid) && valid[hi].Key().Equal(key) {
			hi++
		}

		for i := lo; i < hi; i++ {
			r := valid[i]
			out[i] = model.NewEnrichedRecord(r)
			var jh []model.ParticipationRecord
			if jk := r.JockeyKey(); jk != "" {
				jh = jockeys.Lookup(jk)
			}
			inv := d.engine.Enrich(&out[i], horses.Lookup(r.HorseID), jh)
			rep.Invocations.Horse += inv.Horse
			rep.Invocations.Jockey += inv.Jockey
			rep.Invocations.Skipped += inv.Skipped
			rep.Processed++
			if d.progress != nil && rep.Processed%d.progressEvery == 0 {
				d.progress(rep.Processed, len(valid))
			}
		}

		for _, r := range valid[lo:hi] {
			horses.Append(r.HorseID, r)
			if jk := r.JockeyKey(); jk != "" {
				jockeys.Append(jk, r)
			}
		}

		groups = append(groups, [2]int{lo, hi})
		lo = hi
	}

	if d.engine.HasGroupCreators() {
		for _, g := range groups {
			ptrs := make([]*model.EnrichedRecord, 0, g[1]-g[0])
			for i := g[0]; i < g[1]; i++ {
				ptrs = append(ptrs, &out[i])
			}
			d.engine.EnrichGroup(ptrs)
		}
	}

	if d.progress != nil && rep.Processed%d.progressEvery != 0 {
		d.progress(rep.Processed, len(valid))
	}

	rep.Races = len(groups)
	rep.HorseEntities, rep.HorseRecords = horses.Len(), horses.Size()
	rep.JockeyEntities, rep.JockeyRecords = jockeys.Len(), jockeys.Size()
	rep.Duration = time.Since(start)

	d.logger.Debug(ctx, "enrichment pass finished",
		logger.Int("records", rep.Processed),
		logger.Int("skipped", rep.Skipped),
		logger.Int("races", rep.Races),
		logger.Int("horses", rep.HorseEntities),
		logger.Int("jockeys", rep.JockeyEntities),
		logger.Duration("duration", rep.Duration),
	)
	return out, rep, nil
}

// validate applies the malformed-record policy and returns the usable records.
func (d *Driver) validate(ctx context.Context, records []model.ParticipationRecord, rep *Report) ([]model.ParticipationRecord, error) {
	valid := make([]model.ParticipationRecord, 0, len(records))
	for i, r := range records {
		err := r.Validate()
		if err == nil {
			valid = append(valid, r)
			continue
		}
		var mre *model.MalformedRecordError
		if errors.As(err, &mre) && mre.Line == 0 {
			mre.Line = i + 1
		}
		if d.policy.Handle(err) != nil {
			return nil, fmt.Errorf("enrich: %w", err)
		}
		rep.Skipped++
		d.logger.Warn(ctx, "skipping malformed record", logger.Error(err), logger.Int("position", i+1))
	}
	return valid, nil
}

// Sort orders records by (date, race_index). Ties are broken by horse id,
// jockey key and then the remaining fields, so the order does not depend on
// the input order.
func Sort(records []model.ParticipationRecord) {
	slices.SortStableFunc(records, model.Compare)
}
