package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/types"
	"github.com/okian/formguide/pkg/logger"
	"github.com/okian/formguide/pkg/metrics"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default store configuration constants.
const (
	defaultBatchSize    = 500
	defaultMaxOpenConns = 4
	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

//go:embed schema.sql
var schema string

var participationColumns = []string{
	"date", "race_index", "horse_id", "horse_name", "horse_number", "jockey_id", "jockey",
	"trainer_id", "trainer", "season", "race_number", "racecourse", "track", "course",
	"distance", "going", "race_class", "draw", "rating", "actual_weight",
	"declared_horse_weight", "gear", "placing", "lbw", "running_position", "finish_time", "win_odds",
}

var enrichedColumns = []string{
	"run_id", "seq", "date", "race_index", "race_number", "racecourse", "horse_id", "horse_name",
	"jockey_id", "jockey", "distance", "race_class", "placing", "stats",
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db           *sql.DB
	driver       string
	batchSize    int
	maxOpenConns int
	logger       logger.Logger

	upsertParticipation string
	insertEnriched      string
}

// Open connects to dsn with driver, applies the schema and returns the store.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s, err := New(ctx, db, driver, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle and applies the schema.
func New(ctx context.Context, db *sql.DB, driver string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		db:           db,
		driver:       driver,
		batchSize:    defaultBatchSize,
		maxOpenConns: defaultMaxOpenConns,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("repository")

	// One connection keeps an in-memory sqlite database alive and
	// serializes writers.
	if driver == DriverSQLite {
		s.maxOpenConns = 1
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	updates := make([]string, 0, len(participationColumns)-3)
	for _, c := range participationColumns[3:] {
		updates = append(updates, c+" = excluded."+c)
	}
	s.upsertParticipation = s.rebind(fmt.Sprintf(
		"INSERT INTO participations (%s) VALUES (%s) ON CONFLICT (date, race_index, horse_id) DO UPDATE SET %s",
		strings.Join(participationColumns, ", "),
		placeholders(len(participationColumns)),
		strings.Join(updates, ", "),
	))
	s.insertEnriched = s.rebind(fmt.Sprintf(
		"INSERT INTO enriched (%s) VALUES (%s)",
		strings.Join(enrichedColumns, ", "),
		placeholders(len(enrichedColumns)),
	))
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Milliseconds()))
}

// inBatches runs fn over n items in transactions of at most batchSize rows.
func (s *SQLStore) inBatches(ctx context.Context, n int, fn func(tx *sql.Tx, from, to int) error) error {
	for from := 0; from < n; from += s.batchSize {
		to := min(from+s.batchSize, n)
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := fn(tx, from, to); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

// SaveParticipations upserts raw participations.
func (s *SQLStore) SaveParticipations(ctx context.Context, records []model.ParticipationRecord) (int, error) {
	defer observe("save_participations", time.Now())

	err := s.inBatches(ctx, len(records), func(tx *sql.Tx, from, to int) error {
		stmt, err := tx.PrepareContext(ctx, s.upsertParticipation)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()
		for i := from; i < to; i++ {
			r := &records[i]
			if _, err := stmt.ExecContext(ctx,
				r.Date.Format(model.DateLayout), r.RaceIndex, r.HorseID, r.HorseName, r.HorseNumber,
				r.JockeyID, r.Jockey, r.TrainerID, r.Trainer, r.Season, r.RaceNumber, r.Racecourse,
				r.Track, r.Course, r.Distance, r.Going, r.RaceClass, r.Draw, r.Rating, r.ActualWeight,
				r.DeclaredHorseWeight, r.Gear, r.Position, r.LBW, r.RunningPosition, r.FinishTime, r.WinOdds,
			); err != nil {
				return fmt.Errorf("upsert participation %s: %w", r.ID(), err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "save_participations")
		return 0, err
	}
	metrics.RecordRowsWritten("participations", len(records))
	s.logger.Debug(ctx, "participations saved", logger.Int("rows", len(records)))
	return len(records), nil
}

// LoadParticipations returns every stored participation.
func (s *SQLStore) LoadParticipations(ctx context.Context) ([]model.ParticipationRecord, error) {
	defer observe("load_participations", time.Now())

	q := fmt.Sprintf("SELECT %s FROM participations ORDER BY date, race_index, horse_id",
		strings.Join(participationColumns, ", "))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query participations: %w", err)
	}
	defer rows.Close()

	var out []model.ParticipationRecord
	for rows.Next() {
		var (
			r    model.ParticipationRecord
			date string
		)
		if err := rows.Scan(
			&date, &r.RaceIndex, &r.HorseID, &r.HorseName, &r.HorseNumber,
			&r.JockeyID, &r.Jockey, &r.TrainerID, &r.Trainer, &r.Season, &r.RaceNumber, &r.Racecourse,
			&r.Track, &r.Course, &r.Distance, &r.Going, &r.RaceClass, &r.Draw, &r.Rating, &r.ActualWeight,
			&r.DeclaredHorseWeight, &r.Gear, &r.Position, &r.LBW, &r.RunningPosition, &r.FinishTime, &r.WinOdds,
		); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		if r.Date, err = model.ParseDate(date); err != nil {
			return nil, &model.MalformedRecordError{Line: len(out) + 1, Field: "date", Value: date, Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participations: %w", err)
	}
	return out, nil
}

// SaveRun stores a run summary together with its enriched records.
func (s *SQLStore) SaveRun(ctx context.Context, run types.RunSummary, records []model.EnrichedRecord) error {
	defer observe("save_run", time.Now())

	cols, err := json.Marshal(run.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}
	insertRun := s.rebind("INSERT INTO runs (id, started_at, finished_at, column_names, records, skipped, duplicates) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, insertRun,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		string(cols), run.Records, run.Skipped, run.Duplicates,
	); err != nil {
		metrics.RecordErrorByComponent("repository", "save_run")
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	err = s.inBatches(ctx, len(records), func(tx *sql.Tx, from, to int) error {
		stmt, err := tx.PrepareContext(ctx, s.insertEnriched)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for i := from; i < to; i++ {
			r := &records[i]
			stats, err := json.Marshal(r.Stats)
			if err != nil {
				return fmt.Errorf("encode stats %s: %w", r.ID(), err)
			}
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, r.Date.Format(model.DateLayout), r.RaceIndex, r.RaceNumber, r.Racecourse,
				r.HorseID, r.HorseName, r.JockeyID, r.Jockey, r.Distance, r.RaceClass, r.Position, string(stats),
			); err != nil {
				return fmt.Errorf("insert enriched %s: %w", r.ID(), err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "save_run")
		// Earlier batches are already committed; a run is stored whole or not at all.
		if derr := s.deleteRun(context.WithoutCancel(ctx), run.ID); derr != nil {
			s.logger.Error(ctx, "partial run left behind", logger.String("run_id", run.ID), logger.Error(derr))
			return errors.Join(err, derr)
		}
		return err
	}
	metrics.RecordRowsWritten("runs", 1)
	metrics.RecordRowsWritten("enriched", len(records))
	s.logger.Info(ctx, "run saved", logger.String("run_id", run.ID), logger.Int("rows", len(records)))
	return nil
}

// deleteRun removes a run and its enriched rows in one transaction.
func (s *SQLStore) deleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM enriched WHERE run_id = ?"), runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete enriched %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM runs WHERE id = ?"), runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// HorseHistory returns the enriched rows of a horse from its latest run.
func (s *SQLStore) HorseHistory(ctx context.Context, horseID string) ([]types.HorseRun, error) {
	defer observe("horse_history", time.Now())

	var runID string
	latest := s.rebind(`SELECT e.run_id FROM enriched e JOIN runs r ON r.id = e.run_id
		WHERE e.horse_id = ? ORDER BY r.finished_at DESC, r.id DESC LIMIT 1`)
	err := s.db.QueryRowContext(ctx, latest, horseID).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("horse %q: %w", horseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find latest run: %w", err)
	}

	q := s.rebind(`SELECT date, race_index, race_number, racecourse, horse_id, horse_name, jockey_id,
		jockey, distance, race_class, placing, stats FROM enriched WHERE run_id = ? AND horse_id = ? ORDER BY seq`)
	rows, err := s.db.QueryContext(ctx, q, runID, horseID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []types.HorseRun
	for rows.Next() {
		hr := types.HorseRun{RunID: runID}
		var stats string
		if err := rows.Scan(&hr.Date, &hr.RaceIndex, &hr.RaceNumber, &hr.Racecourse, &hr.HorseID,
			&hr.HorseName, &hr.JockeyID, &hr.Jockey, &hr.Distance, &hr.RaceClass, &hr.Position, &stats); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &hr.Stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		if hr.Stats == nil {
			hr.Stats = map[string]float64{}
		}
		out = append(out, hr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Runs returns up to limit run summaries, newest first. A limit below one
// returns every run.
func (s *SQLStore) Runs(ctx context.Context, limit int) ([]types.RunSummary, error) {
	defer observe("runs", time.Now())

	q := "SELECT id, started_at, finished_at, column_names, records, skipped, duplicates FROM runs ORDER BY finished_at DESC, id DESC"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []types.RunSummary
	for rows.Next() {
		var (
			run                  types.RunSummary
			started, finished, c string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &c, &run.Records, &run.Skipped, &run.Duplicates); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(c), &run.Columns); err != nil {
			return nil, fmt.Errorf("run %s columns: %w", run.ID, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
