package csvio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/placement"
)

// Feed file names written by the crawler.
const (
	RacesFile     = "races.csv"
	ResultsFile   = "results.csv"
	SectimeFile   = "sectime.csv"
	IncidentsFile = "incident.csv"
)

// maxSections is the number of sectional time columns on a race row.
const maxSections = 6

// ReadRaces decodes races.csv.
func ReadRaces(ctx context.Context, r io.Reader, opts ...Option) ([]model.Race, ReadReport, error) {
	t, err := openTable(r, RacesFile, newOptions(opts))
	if err != nil {
		return nil, ReadReport{}, err
	}
	if err := t.require("date", "race_number"); err != nil {
		return nil, ReadReport{}, err
	}
	var out []model.Race
	rep, err := t.each(ctx, func(line int, row []string) error {
		rr := &rowReader{t: t, row: row, line: line}
		race := model.Race{
			Date:       rr.date("date"),
			Racecourse: rr.str("racecourse"),
			RaceNumber: rr.int("race_number"),
			RaceIndex:  rr.int("race_index"),
			ClassName:  rr.str("class_name"),
			Distance:   rr.int("distance"),
			Rating:     rr.str("rating"),
			Name:       rr.str("name"),
			Prize:      rr.int64("prize"),
			Going:      rr.str("going"),
			Track:      rr.str("track"),
			Course:     rr.str("course"),
			URL:        rr.str("url"),
		}
		for i := 1; i <= maxSections; i++ {
			if v := rr.optFloat(fmt.Sprintf("sec%d_time", i)); v != nil {
				race.Sections = append(race.Sections, *v)
			}
		}
		if rr.err != nil {
			return rr.err
		}
		out = append(out, race)
		return nil
	})
	return out, rep, err
}

// ReadResults decodes results.csv. Plain ranks are padded to two digits.
func ReadResults(ctx context.Context, r io.Reader, opts ...Option) ([]model.Result, ReadReport, error) {
	t, err := openTable(r, ResultsFile, newOptions(opts))
	if err != nil {
		return nil, ReadReport{}, err
	}
	if err := t.require("date", "race_number", "horse_id"); err != nil {
		return nil, ReadReport{}, err
	}
	var out []model.Result
	rep, err := t.each(ctx, func(line int, row []string) error {
		rr := &rowReader{t: t, row: row, line: line}
		res := model.Result{
			Date:                rr.date("date"),
			RaceNumber:          rr.int("race_number"),
			RaceIndex:           rr.int("race_index"),
			Position:            placement.Normalize(rr.str("position")),
			HorseNumber:         rr.int("horse_number"),
			HorseName:           rr.str("horse_name"),
			HorseID:             rr.str("horse_id"),
			Jockey:              rr.str("jockey"),
			JockeyID:            rr.str("jockey_id"),
			Trainer:             rr.str("trainer"),
			TrainerID:           rr.str("trainer_id"),
			ActualWeight:        rr.int("actual_weight"),
			DeclaredHorseWeight: rr.int("declar_horse_wt"),
			Draw:                rr.int("draw"),
			LBW:                 rr.str("lbw"),
			RunningPosition:     rr.str("running_position"),
			FinishTime:          rr.finishTime("finish_time"),
			WinOdds:             rr.float("win_odds"),
		}
		if rr.err != nil {
			return rr.err
		}
		if res.HorseID == "" {
			return &model.MalformedRecordError{Line: line, Field: "horse_id", Err: model.ErrMissingField}
		}
		out = append(out, res)
		return nil
	})
	return out, rep, err
}

// ReadSectionals decodes sectime.csv.
func ReadSectionals(ctx context.Context, r io.Reader, opts ...Option) ([]model.SectionalTime, ReadReport, error) {
	t, err := openTable(r, SectimeFile, newOptions(opts))
	if err != nil {
		return nil, ReadReport{}, err
	}
	if err := t.require("date", "race_number", "section"); err != nil {
		return nil, ReadReport{}, err
	}
	var out []model.SectionalTime
	rep, err := t.each(ctx, func(line int, row []string) error {
		rr := &rowReader{t: t, row: row, line: line}
		st := model.SectionalTime{
			Date:          rr.date("date"),
			RaceNumber:    rr.int("race_number"),
			PositionFinal: placement.Normalize(rr.str("position_final")),
			HorseNumber:   rr.int("horse_number"),
			HorseName:     rr.str("horse_name"),
			HorseCode:     rr.str("horse_code"),
			HorseID:       rr.str("horse_id"),
			Section:       rr.int("section"),
			Position:      rr.int("position"),
			LBW:           rr.str("lbw"),
			Time:          rr.float("time"),
			Subtime1:      rr.optFloat("subtime1"),
			Subtime2:      rr.optFloat("subtime2"),
		}
		if rr.err != nil {
			return rr.err
		}
		out = append(out, st)
		return nil
	})
	return out, rep, err
}

// ReadIncidents decodes incident.csv.
func ReadIncidents(ctx context.Context, r io.Reader, opts ...Option) ([]model.Incident, ReadReport, error) {
	t, err := openTable(r, IncidentsFile, newOptions(opts))
	if err != nil {
		return nil, ReadReport{}, err
	}
	if err := t.require("date", "race_number"); err != nil {
		return nil, ReadReport{}, err
	}
	var out []model.Incident
	rep, err := t.each(ctx, func(line int, row []string) error {
		rr := &rowReader{t: t, row: row, line: line}
		inc := model.Incident{
			Date:          rr.date("date"),
			RaceNumber:    rr.int("race_number"),
			PositionFinal: placement.Normalize(rr.str("position_final")),
			HorseNumber:   rr.int("horse_number"),
			HorseName:     rr.str("horse_name"),
			HorseCode:     rr.str("horse_code"),
			HorseID:       rr.str("horse_id"),
			Description:   rr.str("incident"),
		}
		if rr.err != nil {
			return rr.err
		}
		out = append(out, inc)
		return nil
	})
	return out, rep, err
}

// LoadFeeds reads the four feed files of a crawl directory and links them into
// races. races.csv and results.csv are required; the other two are optional.
func LoadFeeds(ctx context.Context, dir string, opts ...Option) ([]model.Race, ReadReport, error) {
	var total ReadReport
	add := func(r ReadReport) {
		total.Rows += r.Rows
		total.Skipped += r.Skipped
	}

	var races []model.Race
	if err := withFile(filepath.Join(dir, RacesFile), false, func(r io.Reader) error {
		var rep ReadReport
		var err error
		races, rep, err = ReadRaces(ctx, r, opts...)
		add(rep)
		return err
	}); err != nil {
		return nil, total, err
	}

	var results []model.Result
	if err := withFile(filepath.Join(dir, ResultsFile), false, func(r io.Reader) error {
		var rep ReadReport
		var err error
		results, rep, err = ReadResults(ctx, r, opts...)
		add(rep)
		return err
	}); err != nil {
		return nil, total, err
	}

	var sectionals []model.SectionalTime
	if err := withFile(filepath.Join(dir, SectimeFile), true, func(r io.Reader) error {
		var rep ReadReport
		var err error
		sectionals, rep, err = ReadSectionals(ctx, r, opts...)
		add(rep)
		return err
	}); err != nil {
		return nil, total, err
	}

	var incidents []model.Incident
	if err := withFile(filepath.Join(dir, IncidentsFile), true, func(r io.Reader) error {
		var rep ReadReport
		var err error
		incidents, rep, err = ReadIncidents(ctx, r, opts...)
		add(rep)
		return err
	}); err != nil {
		return nil, total, err
	}

	return model.Link(races, results, sectionals, incidents), total, nil
}

// withFile opens path and calls fn. Optional files that do not exist, and
// empty optional files, are skipped.
func withFile(path string, optional bool, fn func(io.Reader) error) error {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()
	err = fn(f)
	if optional && errors.Is(err, ErrEmptyInput) {
		return nil
	}
	return err
}
