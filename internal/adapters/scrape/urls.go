package scrape

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the HKJC local results page.
const DefaultBaseURL = "https://racing.hkjc.com/racing/information/English/Racing/LocalResults.aspx"

// queryDateLayout is the RaceDate format of result page URLs.
const queryDateLayout = "2006/01/02"

// Meeting is one race day: where it runs and how many races it has.
type Meeting struct {
	Date       time.Time
	Racecourse string // "ST" or "HV"
	MaxRace    int
}

// Target is one result page to crawl.
type Target struct {
	URL        string
	Date       time.Time
	Racecourse string
	RaceNo     int
}

// ResultURL builds the result page URL of one race.
func ResultURL(base string, date time.Time, racecourse string, raceNo int) string {
	if base == "" {
		base = DefaultBaseURL
	}
	q := url.Values{}
	q.Set("RaceDate", date.Format(queryDateLayout))
	q.Set("Racecourse", racecourse)
	q.Set("RaceNo", fmt.Sprint(raceNo))
	// The site expects the slashes of RaceDate unescaped.
	return base + "?" + strings.ReplaceAll(q.Encode(), "%2F", "/")
}

// Targets expands meetings into one target per race.
func Targets(base string, meetings []Meeting) []Target {
	var out []Target
	for _, m := range meetings {
		for n := 1; n <= m.MaxRace; n++ {
			out = append(out, Target{
				URL:        ResultURL(base, m.Date, m.Racecourse, n),
				Date:       m.Date,
				Racecourse: m.Racecourse,
				RaceNo:     n,
			})
		}
	}
	return out
}

// pageDateLayouts lists the date formats seen in page URLs and headers.
var pageDateLayouts = []string{"2006/01/02", "02/01/2006", "2006-01-02"}

// ParseDate parses a race date in any format the site uses.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range pageDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrParse, s)
}

// queryParam returns a query parameter of a possibly relative link.
func queryParam(link, name string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}
