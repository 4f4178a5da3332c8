package variables

import (
	"fmt"
	"strings"
)

// Default returns the required creators in their canonical order.
func Default() []Creator {
	return []Creator{Runs(), SeasonalRuns(), Recency(), JockeySeasonalRuns()}
}

// Builtin returns every creator shipped with the package: the required ones,
// then the optional ones.
func Builtin() []Creator {
	return append(Default(), Form(), DistanceChange(), JockeyRuns())
}

// BuiltinGroups returns every shipped race-group creator.
func BuiltinGroups() []GroupCreator {
	return []GroupCreator{NormalizedDraw(), NormalizedActualWeight(), NormalizedRating(), RaceClassLevel()}
}

// Select resolves creator names against Builtin, keeping the order of names.
// An empty list selects Default.
func Select(names []string) ([]Creator, error) {
	if len(names) == 0 {
		return Default(), nil
	}
	byName := make(map[string]Creator)
	for _, c := range Builtin() {
		byName[c.Name] = c
	}
	out := make([]Creator, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		c, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCreator, n)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, c)
	}
	return out, nil
}

// SelectGroups resolves group creator names against BuiltinGroups.
// An empty list selects all of them.
func SelectGroups(names []string) ([]GroupCreator, error) {
	if len(names) == 0 {
		return BuiltinGroups(), nil
	}
	byName := make(map[string]GroupCreator)
	for _, g := range BuiltinGroups() {
		byName[g.Name] = g
	}
	out := make([]GroupCreator, 0, len(names))
	for _, n := range names {
		g, ok := byName[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCreator, n)
		}
		out = append(out, g)
	}
	return out, nil
}
