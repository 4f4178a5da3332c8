package csvio

import "errors"

// Sentinel error kinds for this package.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyInput    = errors.New("empty input")
)
