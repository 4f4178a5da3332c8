// Package types contains the JSON shapes shared by the repository and the HTTP API.
package types

import (
	"time"

	"github.com/okian/formguide/internal/domain/model"
)

// HorseRun is one enriched participation as served to clients.
type HorseRun struct {
	RunID      string             `json:"run_id"`
	Date       string             `json:"date"`
	RaceIndex  int                `json:"race_index"`
	RaceNumber int                `json:"race_number,omitempty"`
	Racecourse string             `json:"racecourse,omitempty"`
	HorseID    string             `json:"horse_id"`
	HorseName  string             `json:"horse_name,omitempty"`
	JockeyID   string             `json:"jockey_id,omitempty"`
	Jockey     string             `json:"jockey,omitempty"`
	Distance   int                `json:"distance,omitempty"`
	RaceClass  string             `json:"race_class,omitempty"`
	Position   string             `json:"position"`
	Stats      map[string]float64 `json:"stats"`
}

// NewHorseRun converts an enriched record produced by run runID.
// Absent statistics stay absent in Stats.
func NewHorseRun(runID string, r model.EnrichedRecord) HorseRun {
	stats := r.Stats.Clone()
	if stats == nil {
		stats = map[string]float64{}
	}
	return HorseRun{
		RunID:      runID,
		Date:       r.Date.Format(model.DateLayout),
		RaceIndex:  r.RaceIndex,
		RaceNumber: r.RaceNumber,
		Racecourse: r.Racecourse,
		HorseID:    r.HorseID,
		HorseName:  r.HorseName,
		JockeyID:   r.JockeyID,
		Jockey:     r.Jockey,
		Distance:   r.Distance,
		RaceClass:  r.RaceClass,
		Position:   r.Position,
		Stats:      stats,
	}
}

// RunSummary describes one enrichment run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Columns    []string  `json:"columns"`
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
