// Package placement interprets finishing-position codes from the results page.
//
// Codes are either a finishing rank ("01", "3", "12") or a special code for
// runners that did not finish normally (withdrawn, pulled up, disqualified).
// Dead heats carry a suffix ("1 DH").
package placement

import (
	"strconv"
	"strings"
)

// Special codes published for runners without a normal finishing rank.
const (
	Withdrawn            = "WV"
	WithdrawnAfterVet    = "WV-A"
	WithdrawnByStewards  = "WX"
	WithdrawnAfterStarts = "WX-A"
	PulledUp             = "PU"
	UnseatedRider        = "UR"
	Fell                 = "FE"
	DidNotFinish         = "DNF"
	TookNoPart           = "TNP"
	Disqualified         = "DISQ"
	DeadHeatSuffix       = "DH"
)

// topCodes lists the exact codes recognized as a 1st, 2nd or 3rd place finish.
// Dead-heat codes such as "1 DH" are intentionally absent, so a shared win is
// not counted.
var topCodes = map[string]int{
	"01": 1,
	"02": 2,
	"03": 3,
}

// Top returns the place (1, 2 or 3) for an exact top-three code, or 0.
func Top(code string) int {
	return topCodes[code]
}

// IsTop reports whether code is exactly the code for finishing place n (1..3).
func IsTop(code string, n int) bool {
	p := Top(code)
	return p != 0 && p == n
}

// Numeric parses a plain integer rank. Special codes and dead-heat suffixes
// are not numeric.
func Numeric(code string) (int, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, false
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Normalize zero-pads plain integer ranks to the two-digit form used in the
// feeds ("1" -> "01") and trims whitespace. Other codes pass through, with a
// dead-heat rank padded as well ("1 DH" -> "01 DH").
func Normalize(code string) string {
	code = strings.Join(strings.Fields(code), " ")
	if n, ok := Numeric(code); ok {
		return pad(n)
	}
	if IsDeadHeat(code) {
		head := strings.Fields(code)[0]
		if n, ok := Numeric(head); ok {
			return pad(n) + " " + DeadHeatSuffix
		}
	}
	return code
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// IsDeadHeat reports whether the code carries the dead-heat suffix.
func IsDeadHeat(code string) bool {
	f := strings.Fields(code)
	return len(f) == 2 && f[1] == DeadHeatSuffix
}

// Finished reports whether the code describes a runner that completed the race,
// including dead heats.
func Finished(code string) bool {
	if _, ok := Numeric(code); ok {
		return true
	}
	if IsDeadHeat(code) {
		_, ok := Numeric(strings.Fields(code)[0])
		return ok
	}
	return false
}
