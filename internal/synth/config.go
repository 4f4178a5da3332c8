package synth

import (
	"fmt"
	"time"

	"github.com/okian/formguide/internal/domain/model"
)

// Config holds configuration for the generator.
type Config struct {
	Seed            uint64    // same seed, same history
	Start           time.Time // first meeting date
	Meetings        int       // number of race days
	RacesPerMeeting int
	FieldSize       int // runners per race, at most Horses
	Horses          int // size of the horse pool
	Jockeys         int // size of the jockey pool
	Workers         int // meetings generated concurrently
	WithdrawnRate   float64
}

// DefaultConfig returns a season's worth of small meetings.
func DefaultConfig() Config {
	return Config{
		Seed:            defaultSeed,
		Start:           model.MustDate(defaultStart),
		Meetings:        defaultMeetings,
		RacesPerMeeting: defaultRacesPerMeeting,
		FieldSize:       defaultFieldSize,
		Horses:          defaultHorses,
		Jockeys:         defaultJockeys,
		Workers:         defaultWorkers,
		WithdrawnRate:   defaultWithdrawnRate,
	}
}

// Validate reports the first setting that cannot produce races.
func (c Config) Validate() error {
	switch {
	case c.Meetings < 1:
		return fmt.Errorf("%w: meetings must be positive", ErrInvalidConfig)
	case c.RacesPerMeeting < 1:
		return fmt.Errorf("%w: races_per_meeting must be positive", ErrInvalidConfig)
	case c.FieldSize < 1:
		return fmt.Errorf("%w: field_size must be positive", ErrInvalidConfig)
	case c.Horses < c.FieldSize:
		return fmt.Errorf("%w: %d horses cannot fill a field of %d", ErrInvalidConfig, c.Horses, c.FieldSize)
	case c.Jockeys < c.FieldSize:
		return fmt.Errorf("%w: %d jockeys cannot ride a field of %d", ErrInvalidConfig, c.Jockeys, c.FieldSize)
	case c.WithdrawnRate < 0 || c.WithdrawnRate >= 1:
		return fmt.Errorf("%w: withdrawn_rate must be in [0,1)", ErrInvalidConfig)
	case c.Start.IsZero():
		return fmt.Errorf("%w: start date is required", ErrInvalidConfig)
	}
	return nil
}
