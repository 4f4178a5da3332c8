package scrape

import "errors"

// Sentinel error kinds for this package.
var (
	ErrParse    = errors.New("parse result page")
	ErrFetch    = errors.New("fetch result page")
	ErrNoResult = errors.New("page has no race result")
)
