package scrape

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var sixty = decimal.NewFromInt(60)

// blank reports cells the results page uses for "no value".
func blank(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "-", "--", "---", "N/A":
		return true
	}
	return false
}

// ParsePrize converts "HK$1,170,000" to whole dollars.
func ParsePrize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if blank(s) {
		return 0, nil
	}
	s = strings.NewReplacer("HK$", "", "$", "", ",", "").Replace(s)
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: prize %q: %v", ErrParse, s, err)
	}
	return d.IntPart(), nil
}

// ParseFinishTime converts "1:09.45" (or plain "69.45") to seconds rounded to
// hundredths. Runners without a time yield 0.
func ParseFinishTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if blank(s) {
		return 0, nil
	}
	total := decimal.Zero
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: finish time %q", ErrParse, s)
	}
	for _, p := range parts {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return 0, fmt.Errorf("%w: finish time %q: %v", ErrParse, s, err)
		}
		total = total.Mul(sixty).Add(d)
	}
	return total.Round(2).InexactFloat64(), nil
}

// ParseDecimal converts odds and sectional times. Blank cells yield 0.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if blank(s) {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q: %v", ErrParse, s, err)
	}
	return d.InexactFloat64(), nil
}

// ParseOptionalDecimal is ParseDecimal that keeps blanks as nil.
func ParseOptionalDecimal(s string) (*float64, error) {
	if blank(s) {
		return nil, nil
	}
	v, err := ParseDecimal(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseInt converts weights, draws and numbers. Blank cells yield 0.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if blank(s) {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("%w: integer %q", ErrParse, s)
	}
	return int(d.IntPart()), nil
}
