// Package csvio reads and writes the CSV files of the pipeline: denormalized
// participations, the four scraper feeds, and enriched output.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/pkg/logger"
)

// ReadReport counts what a reader did with its rows.
type ReadReport struct {
	Rows    int
	Skipped int
}

// table is a header-indexed CSV stream.
type table struct {
	r      *csv.Reader
	index  map[string]int
	opts   options
	source string
}

func openTable(r io.Reader, source string, opts options) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}
	t := &table{r: cr, index: make(map[string]int, len(header)), opts: opts, source: source}
	for i, h := range header {
		if _, dup := t.index[normalizeHeader(h)]; !dup {
			t.index[normalizeHeader(h)] = i
		}
	}
	return t, nil
}

// lookup returns the position of the first of names present in the header.
func (t *table) lookup(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.index[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func (t *table) require(names ...string) error {
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			return fmt.Errorf("%s: %w: %s", t.source, ErrMissingColumn, n)
		}
	}
	return nil
}

// each calls fn for every data row with its 1-based line number. A row error
// is handed to the policy: strict returns it, skip logs and counts it.
func (t *table) each(ctx context.Context, fn func(line int, row []string) error) (ReadReport, error) {
	var rep ReadReport
	for {
		row, err := t.r.Read()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		rep.Rows++
		var line int
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return rep, fmt.Errorf("%s: %w", t.source, err)
			}
			line = pe.Line
			err = &model.MalformedRecordError{Line: pe.Line, Err: pe.Err}
		} else {
			line, _ = t.r.FieldPos(0)
			err = fn(line, row)
		}
		if err == nil {
			continue
		}
		if t.opts.policy.Handle(err) != nil {
			return rep, fmt.Errorf("%s: %w", t.source, err)
		}
		rep.Skipped++
		t.opts.logger.Warn(ctx, "skipping malformed row",
			logger.String("source", t.source),
			logger.Int("line", line),
			logger.Error(err),
		)
	}
}

// cell returns the value at i, or "" for short rows.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// ReadParticipations decodes a denormalized participation CSV. Columns are
// matched by name, case-insensitively, with legacy aliases; unknown columns are
// ignored. horse_id, date and race_index are required. Placement codes are kept
// exactly as written.
func ReadParticipations(ctx context.Context, r io.Reader, opts ...Option) ([]model.ParticipationRecord, ReadReport, error) {
	o := newOptions(opts)
	t, err := openTable(r, "participations", o)
	if err != nil {
		return nil, ReadReport{}, err
	}
	if err := t.require("horse_id", "date", "race_index"); err != nil {
		return nil, ReadReport{}, err
	}

	type bound struct {
		col column
		pos int
	}
	var cols []bound
	for _, c := range participationColumns {
		if i, ok := t.lookup(append([]string{c.name}, c.aliases...)...); ok {
			cols = append(cols, bound{c, i})
		}
	}

	var out []model.ParticipationRecord
	rep, err := t.each(ctx, func(line int, row []string) error {
		var rec model.ParticipationRecord
		for _, b := range cols {
			v := cell(row, b.pos)
			if err := b.col.set(&rec, v); err != nil {
				return &model.MalformedRecordError{Line: line, Field: b.col.name, Value: v, Err: err}
			}
		}
		if err := rec.Validate(); err != nil {
			var mre *model.MalformedRecordError
			if errors.As(err, &mre) {
				mre.Line = line
			}
			return err
		}
		if rec.Season == "" {
			rec.Season = model.SeasonOf(rec.Date)
		}
		out = append(out, rec)
		return nil
	})
	return out, rep, err
}
