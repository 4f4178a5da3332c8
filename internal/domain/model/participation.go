// Package model contains domain models passed between layers.
package model

import (
	"cmp"
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date layout used by every feed.
const DateLayout = "2006-01-02"

// ParticipationRecord is one horse's involvement in one race, with its outcome.
// Records are passed by value and never mutated after the source produces them.
type ParticipationRecord struct {
	HorseID     string
	HorseName   string
	HorseNumber int
	JockeyID    string
	Jockey      string
	TrainerID   string
	Trainer     string

	Date       time.Time // calendar date at UTC midnight
	Season     string    // e.g. "2024-25"
	RaceIndex  int       // season-wide race number
	RaceNumber int       // race number within the meeting
	Racecourse string
	Track      string
	Course     string
	Distance   int // metres
	Going      string
	RaceClass  string

	Draw                int
	Rating              int
	ActualWeight        int
	DeclaredHorseWeight int
	Gear                string

	Position        string  // placement code, e.g. "01", "3", "WV", "1 DH"
	LBW             string  // lengths behind winner, e.g. "-", "1/2", "SH"
	RunningPosition string  // space separated, e.g. "3 3 1"
	FinishTime      float64 // seconds
	WinOdds         float64
}

// RaceKey identifies a race: participations sharing a key ran simultaneously.
type RaceKey struct {
	Date      time.Time
	RaceIndex int
}

// String renders the key as "2006-01-02#index".
func (k RaceKey) String() string {
	return fmt.Sprintf("%s#%d", k.Date.Format(DateLayout), k.RaceIndex)
}

// Before reports whether k sorts strictly before other.
func (k RaceKey) Before(other RaceKey) bool {
	if !k.Date.Equal(other.Date) {
		return k.Date.Before(other.Date)
	}
	return k.RaceIndex < other.RaceIndex
}

// Equal reports whether both keys name the same race.
func (k RaceKey) Equal(other RaceKey) bool {
	return k.RaceIndex == other.RaceIndex && k.Date.Equal(other.Date)
}

// Key returns the race the record belongs to.
func (r ParticipationRecord) Key() RaceKey {
	return RaceKey{Date: r.Date, RaceIndex: r.RaceIndex}
}

// ID is the natural identity of a participation: one horse in one race.
func (r ParticipationRecord) ID() string {
	return fmt.Sprintf("%s/%d/%s", r.Date.Format(DateLayout), r.RaceIndex, r.HorseID)
}

// JockeyKey identifies the jockey for history purposes. The results page only
// links riders with a profile, so the name stands in when the id is missing.
func (r ParticipationRecord) JockeyKey() string {
	if r.JockeyID != "" {
		return r.JockeyID
	}
	if r.Jockey != "" {
		return "name:" + r.Jockey
	}
	return ""
}

// Validate checks the identity fields the pipeline relies on.
func (r ParticipationRecord) Validate() error {
	switch {
	case r.HorseID == "":
		return &MalformedRecordError{Field: "horse_id", Err: ErrMissingField}
	case r.Date.IsZero():
		return &MalformedRecordError{Field: "date", Value: r.HorseID, Err: ErrMissingField}
	}
	return nil
}

// ParseDate parses an ISO calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// MustDate parses an ISO date and panics on error. Intended for tests and fixtures.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// DaysBetween returns whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// Compare orders records by race, horse and jockey, then by every remaining
// field, so only identical records compare equal. It returns -1, 0 or +1.
func Compare(a, b ParticipationRecord) int {
	return cmp.Or(
		a.Date.Compare(b.Date),
		cmp.Compare(a.RaceIndex, b.RaceIndex),
		cmp.Compare(a.HorseID, b.HorseID),
		cmp.Compare(a.JockeyKey(), b.JockeyKey()),
		cmp.Compare(a.Position, b.Position),
		cmp.Compare(a.RaceNumber, b.RaceNumber),
		cmp.Compare(a.HorseName, b.HorseName),
		cmp.Compare(a.HorseNumber, b.HorseNumber),
		cmp.Compare(a.JockeyID, b.JockeyID),
		cmp.Compare(a.Jockey, b.Jockey),
		cmp.Compare(a.TrainerID, b.TrainerID),
		cmp.Compare(a.Trainer, b.Trainer),
		cmp.Compare(a.Season, b.Season),
		cmp.Compare(a.Racecourse, b.Racecourse),
		cmp.Compare(a.Track, b.Track),
		cmp.Compare(a.Course, b.Course),
		cmp.Compare(a.Distance, b.Distance),
		cmp.Compare(a.Going, b.Going),
		cmp.Compare(a.RaceClass, b.RaceClass),
		cmp.Compare(a.Draw, b.Draw),
		cmp.Compare(a.Rating, b.Rating),
		cmp.Compare(a.ActualWeight, b.ActualWeight),
		cmp.Compare(a.DeclaredHorseWeight, b.DeclaredHorseWeight),
		cmp.Compare(a.Gear, b.Gear),
		cmp.Compare(a.LBW, b.LBW),
		cmp.Compare(a.RunningPosition, b.RunningPosition),
		cmp.Compare(a.FinishTime, b.FinishTime),
		cmp.Compare(a.WinOdds, b.WinOdds),
	)
}
