package model

import "sort"

// Stats maps a derived statistic name to its value. A missing key means the
// statistic could not be computed, which is not the same as a zero value.
type Stats map[string]float64

// Set records a statistic.
func (s Stats) Set(name string, v float64) { s[name] = v }

// Get returns a statistic and whether it was computed.
func (s Stats) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Has reports whether a statistic was computed.
func (s Stats) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the computed statistic names in lexical order.
func (s Stats) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// EnrichedRecord is a participation plus the statistics derived for it from
// strictly earlier participations.
type EnrichedRecord struct {
	ParticipationRecord
	Stats Stats
}

// NewEnrichedRecord wraps a participation with an empty statistics set.
func NewEnrichedRecord(r ParticipationRecord) EnrichedRecord {
	return EnrichedRecord{ParticipationRecord: r, Stats: make(Stats)}
}
