package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/okian/formguide/internal/domain/model"
)

// WriteParticipations writes records in the canonical participation layout.
func WriteParticipations(w io.Writer, records []model.ParticipationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ParticipationColumns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(participationColumns))
	for i := range records {
		for j, c := range participationColumns {
			row[j] = c.get(&records[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write participation %s: %w", records[i].ID(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EnrichedWriter streams enriched records: the participation columns, then the
// derived columns in the order given.
type EnrichedWriter struct {
	cw          *csv.Writer
	derived     []string
	fillMissing bool
	header      bool
	row         []string
}

// NewEnrichedWriter creates a writer for the given derived columns, usually
// variables.Engine.Columns().
func NewEnrichedWriter(w io.Writer, derived []string, opts ...Option) *EnrichedWriter {
	o := newOptions(opts)
	return &EnrichedWriter{
		cw:          csv.NewWriter(w),
		derived:     append([]string(nil), derived...),
		fillMissing: o.fillMissing,
		row:         make([]string, len(participationColumns)+len(derived)),
	}
}

// Header returns the full column list.
func (e *EnrichedWriter) Header() []string {
	return append(ParticipationColumns(), e.derived...)
}

// Write appends records, emitting the header first.
func (e *EnrichedWriter) Write(records ...model.EnrichedRecord) error {
	if !e.header {
		if err := e.cw.Write(e.Header()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		e.header = true
	}
	n := len(participationColumns)
	for i := range records {
		r := &records[i]
		for j, c := range participationColumns {
			e.row[j] = c.get(&r.ParticipationRecord)
		}
		for j, name := range e.derived {
			v, ok := r.Stats.Get(name)
			switch {
			case ok:
				e.row[n+j] = formatFloat(v)
			case e.fillMissing:
				e.row[n+j] = "0"
			default:
				e.row[n+j] = ""
			}
		}
		if err := e.cw.Write(e.row); err != nil {
			return fmt.Errorf("write enriched %s: %w", r.ID(), err)
		}
	}
	return nil
}

// Flush writes buffered rows, emitting the header if nothing was written yet.
func (e *EnrichedWriter) Flush() error {
	if !e.header {
		if err := e.Write(); err != nil {
			return err
		}
	}
	e.cw.Flush()
	return e.cw.Error()
}

// WriteEnriched writes a whole pass.
func WriteEnriched(w io.Writer, derived []string, records []model.EnrichedRecord, opts ...Option) error {
	ew := NewEnrichedWriter(w, derived, opts...)
	if err := ew.Write(records...); err != nil {
		return err
	}
	return ew.Flush()
}

// Feed headers, in the layout the loaders expect.
var (
	raceHeader = []string{
		"date", "racecourse", "race_number", "race_index", "class_name", "distance", "rating", "name",
		"prize", "going", "track", "course",
		"sec1_time", "sec2_time", "sec3_time", "sec4_time", "sec5_time", "sec6_time", "url",
	}
	resultHeader = []string{
		"date", "race_number", "race_index", "position", "horse_number", "horse_name", "horse_id",
		"jockey", "jockey_id", "trainer", "trainer_id", "actual_weight", "declar_horse_wt", "draw",
		"lbw", "running_position", "finish_time", "win_odds",
	}
	sectimeHeader = []string{
		"date", "race_number", "position_final", "horse_number", "horse_name", "horse_code", "horse_id",
		"section", "position", "lbw", "time", "subtime1", "subtime2",
	}
	incidentHeader = []string{
		"date", "race_number", "position_final", "horse_number", "horse_name", "horse_code", "horse_id",
		"incident",
	}
)

// FeedWriter writes crawled races into the four feed files of a directory.
// It is safe for concurrent use.
type FeedWriter struct {
	mu      sync.Mutex
	files   []*os.File
	races   *csv.Writer
	results *csv.Writer
	sectime *csv.Writer
	inc     *csv.Writer
	count   int
}

// NewFeedWriter creates dir and the feed files, truncating existing ones.
func NewFeedWriter(dir string) (*FeedWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create feed dir: %w", err)
	}
	fw := &FeedWriter{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name)) //nolint:gosec // dir comes from operator configuration
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
		fw.files = append(fw.files, f)
		w := csv.NewWriter(f)
		return w, w.Write(header)
	}
	var err error
	if fw.races, err = open(RacesFile, raceHeader); err == nil {
		if fw.results, err = open(ResultsFile, resultHeader); err == nil {
			if fw.sectime, err = open(SectimeFile, sectimeHeader); err == nil {
				fw.inc, err = open(IncidentsFile, incidentHeader)
			}
		}
	}
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	return fw, nil
}

// WriteRace writes a race and its nested results, sectionals and incidents.
func (fw *FeedWriter) WriteRace(race model.Race) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	date := formatDate(race.Date)
	sec := make([]string, maxSections)
	for i := 0; i < maxSections && i < len(race.Sections); i++ {
		sec[i] = formatFloat(race.Sections[i])
	}
	row := []string{
		date, race.Racecourse, strconv.Itoa(race.RaceNumber), strconv.Itoa(race.RaceIndex), race.ClassName,
		strconv.Itoa(race.Distance), race.Rating, race.Name, strconv.FormatInt(race.Prize, 10),
		race.Going, race.Track, race.Course,
	}
	row = append(append(row, sec...), race.URL)
	if err := fw.races.Write(row); err != nil {
		return fmt.Errorf("write race: %w", err)
	}

	for _, r := range race.Results {
		if err := fw.results.Write([]string{
			date, strconv.Itoa(race.RaceNumber), strconv.Itoa(race.RaceIndex), r.Position,
			strconv.Itoa(r.HorseNumber), r.HorseName, r.HorseID, r.Jockey, r.JockeyID, r.Trainer, r.TrainerID,
			strconv.Itoa(r.ActualWeight), strconv.Itoa(r.DeclaredHorseWeight), strconv.Itoa(r.Draw),
			r.LBW, r.RunningPosition, formatFloat(r.FinishTime), formatFloat(r.WinOdds),
		}); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	for _, s := range race.Sectionals {
		if err := fw.sectime.Write([]string{
			date, strconv.Itoa(race.RaceNumber), s.PositionFinal, strconv.Itoa(s.HorseNumber), s.HorseName,
			s.HorseCode, s.HorseID, strconv.Itoa(s.Section), strconv.Itoa(s.Position), s.LBW,
			formatFloat(s.Time), optional(s.Subtime1), optional(s.Subtime2),
		}); err != nil {
			return fmt.Errorf("write sectional: %w", err)
		}
	}

	for _, inc := range race.Incidents {
		if err := fw.inc.Write([]string{
			date, strconv.Itoa(race.RaceNumber), inc.PositionFinal, strconv.Itoa(inc.HorseNumber),
			inc.HorseName, inc.HorseCode, inc.HorseID, inc.Description,
		}); err != nil {
			return fmt.Errorf("write incident: %w", err)
		}
	}
	fw.count++
	return nil
}

// Count returns the number of races written.
func (fw *FeedWriter) Count() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.count
}

// Close flushes and closes every feed file.
func (fw *FeedWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	var first error
	for _, w := range []*csv.Writer{fw.races, fw.results, fw.sectime, fw.inc} {
		if w == nil {
			continue
		}
		w.Flush()
		if err := w.Error(); err != nil && first == nil {
			first = err
		}
	}
	for _, f := range fw.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	fw.files = nil
	return first
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
