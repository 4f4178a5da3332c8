package variables

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownCreator  = errors.New("unknown variable creator")
	ErrInvalidCreator  = errors.New("invalid variable creator")
	ErrDuplicateColumn = errors.New("duplicate derived column")
)
