// Package repository persists participations and enrichment runs in a SQL
// database. sqlite and postgres are supported.
package repository

import (
	"context"

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/types"
)

// Store provides read/write access to participations and enrichment runs.
type Store interface {
	// SaveParticipations upserts raw participations keyed by race and horse.
	// Returns the number of rows written.
	SaveParticipations(ctx context.Context, records []model.ParticipationRecord) (int, error)

	// LoadParticipations returns every stored participation ordered by
	// date, race index and horse id.
	LoadParticipations(ctx context.Context) ([]model.ParticipationRecord, error)

	// SaveRun stores a run summary together with its enriched records.
	SaveRun(ctx context.Context, run types.RunSummary, records []model.EnrichedRecord) error

	// HorseHistory returns the enriched rows of a horse from the latest run
	// that covered it, oldest first. Returns ErrNotFound if the horse is unknown.
	HorseHistory(ctx context.Context, horseID string) ([]types.HorseRun, error)

	// Runs returns up to limit run summaries, newest first.
	Runs(ctx context.Context, limit int) ([]types.RunSummary, error)

	// Close releases the database handle.
	Close() error
}
