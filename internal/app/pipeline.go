package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/okian/formguide/internal/adapters/csvio"
	"github.com/okian/formguide/internal/domain/dedupe"
	"github.com/okian/formguide/internal/domain/enrich"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/types"
	"github.com/okian/formguide/pkg/logger"
	"github.com/okian/formguide/pkg/metrics"
)

// Input formats accepted by Load.
const (
	SourceCSV      = "csv"
	SourceFeeds    = "feeds"
	SourceDatabase = "database"
)

// ErrNoStore is returned when a database source or sink is requested
// without a store.
var ErrNoStore = errors.New("no store configured")

// Source names where participations come from.
type Source struct {
	Format string // csv, feeds or database
	Path   string // file or directory; unused for database
}

// Result is the outcome of one enrichment run.
type Result struct {
	Summary types.RunSummary
	Report  enrich.Report
	Records []model.EnrichedRecord
}

// Load reads participations from src.
func (s *Service) Load(ctx context.Context, src Source) ([]model.ParticipationRecord, error) {
	opts := []csvio.Option{
		csvio.WithPolicy(s.policy),
		csvio.WithLogger(s.logger.Named("csvio")),
	}
	switch src.Format {
	case SourceCSV, "":
		f, err := os.Open(src.Path) //nolint:gosec // path comes from operator configuration
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		records, rep, err := csvio.ReadParticipations(ctx, f, opts...)
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "participations read",
			logger.String("path", src.Path),
			logger.Int("rows", rep.Rows),
			logger.Int("skipped", rep.Skipped),
		)
		return records, nil
	case SourceFeeds:
		races, rep, err := csvio.LoadFeeds(ctx, src.Path, opts...)
		if err != nil {
			return nil, err
		}
		records := model.Flatten(races)
		s.logger.Info(ctx, "feeds linked",
			logger.String("dir", src.Path),
			logger.Int("races", len(races)),
			logger.Int("participations", len(records)),
			logger.Int("skipped", rep.Skipped),
		)
		return records, nil
	case SourceDatabase:
		if s.store == nil {
			return nil, ErrNoStore
		}
		return s.store.LoadParticipations(ctx)
	}
	return nil, fmt.Errorf("unknown source format %q", src.Format)
}

// Enrich runs one pass over records and writes the result to every
// configured sink.
func (s *Service) Enrich(ctx context.Context, records []model.ParticipationRecord) (Result, error) {
	run := types.RunSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Columns:   s.engine.Columns(),
	}
	log := s.logger.With(logger.String("run_id", run.ID))

	// Canonical order first, so the kept duplicate is the same for any input
	// order. The deduper stays unbounded for the whole pass.
	ordered := slices.Clone(records)
	enrich.Sort(ordered)
	unique, dups := dedupe.Records(ctx, dedupe.NewInMemoryDeduper(), ordered)
	metrics.RecordDuplicates(dups)
	if dups > 0 {
		log.Info(ctx, "duplicate participations dropped", logger.Int("duplicates", dups))
	}

	driver := enrich.NewDriver(s.engine,
		enrich.WithLogger(log.Named("driver")),
		enrich.WithPolicy(s.policy),
		enrich.WithCapacityHint(len(unique)),
		enrich.WithProgress(s.progressEvery, func(done, total int) {
			metrics.UpdateProgress(done)
			log.Info(ctx, "enrichment progress", logger.Int("done", done), logger.Int("total", total))
		}),
	)
	out, rep, err := driver.Run(ctx, unique)
	if err != nil {
		metrics.RecordRun("error")
		return Result{}, err
	}
	run.FinishedAt = time.Now().UTC()
	run.Records = rep.Processed
	run.Skipped = rep.Skipped
	run.Duplicates = dups
	s.observe(rep)

	if err := s.sink(ctx, run, unique, out); err != nil {
		metrics.RecordRun("error")
		return Result{}, err
	}
	s.remember(run, rep, out)
	metrics.RecordRun("ok")
	log.Info(ctx, "enrichment finished",
		logger.Int("records", run.Records),
		logger.Int("skipped", run.Skipped),
		logger.Int("races", rep.Races),
		logger.Duration("duration", rep.Duration),
	)
	return Result{Summary: run, Report: rep, Records: out}, nil
}

func (s *Service) observe(rep enrich.Report) {
	metrics.RecordRecordsProcessed(rep.Processed)
	for i := 0; i < rep.Skipped; i++ {
		metrics.RecordRecordSkipped()
	}
	metrics.RecordCreatorInvocations(enrich.IndexHorse, rep.Invocations.Horse)
	metrics.RecordCreatorInvocations(enrich.IndexJockey, rep.Invocations.Jockey)
	metrics.RecordPassDuration(rep.Duration.Seconds())
	metrics.UpdateHistorySize(enrich.IndexHorse, rep.HorseEntities, rep.HorseRecords)
	metrics.UpdateHistorySize(enrich.IndexJockey, rep.JockeyEntities, rep.JockeyRecords)
	metrics.UpdateProgress(rep.Processed)
}

// sink writes the CSV output and the store rows.
func (s *Service) sink(ctx context.Context, run types.RunSummary, input []model.ParticipationRecord, out []model.EnrichedRecord) error {
	if s.output != "" {
		if err := s.writeCSV(out); err != nil {
			return err
		}
		s.logger.Info(ctx, "enriched csv written", logger.String("path", s.output), logger.Int("rows", len(out)))
	}
	if s.store != nil {
		valid := make([]model.ParticipationRecord, 0, len(input))
		for _, r := range input {
			if r.Validate() == nil {
				valid = append(valid, r)
			}
		}
		if _, err := s.store.SaveParticipations(ctx, valid); err != nil {
			return fmt.Errorf("save participations: %w", err)
		}
		if err := s.store.SaveRun(ctx, run, out); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}
	return nil
}

func (s *Service) writeCSV(out []model.EnrichedRecord) (err error) {
	if dir := filepath.Dir(s.output); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(s.output) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return csvio.WriteEnriched(f, s.engine.Columns(), out, csvio.WithFillMissing(s.fillMissing))
}
