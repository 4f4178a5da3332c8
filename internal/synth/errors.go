package synth

import "errors"

// ErrInvalidConfig is returned when a generator config cannot produce races.
var ErrInvalidConfig = errors.New("invalid synth config")
