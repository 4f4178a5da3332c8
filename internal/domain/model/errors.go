package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrMissingField    = errors.New("missing field")
	ErrUnknownPolicy   = errors.New("unknown malformed-record policy")
)

// MalformedRecordError describes a row that could not be turned into a usable
// ParticipationRecord.
type MalformedRecordError struct {
	Line  int // 1-based source line or row number, 0 when unknown
	Field string
	Value string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	var b strings.Builder
	b.WriteString("malformed record")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %s", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, "=%q", e.Value)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Is makes every MalformedRecordError match ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// Policy decides what happens to a malformed record.
type Policy string

// Supported policies.
const (
	// PolicyStrict aborts the pass on the first malformed record.
	PolicyStrict Policy = "strict"
	// PolicySkip drops the record, and the caller logs a warning.
	PolicySkip Policy = "skip"
)

// ParsePolicy converts a config string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStrict:
		return PolicyStrict, nil
	case "", PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Handle applies the policy to err. It returns err when the pass must abort and
// nil when the record should be skipped.
func (p Policy) Handle(err error) error {
	if err == nil || p != PolicyStrict {
		return nil
	}
	return err
}
