package csvio

import (
	"context"
	"io"
	"strings"

	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/model"
)

// ReadMeetings decodes a race-day list with columns date, racecourse and
// max_race. Dates may use any format of the results site.
func ReadMeetings(ctx context.Context, r io.Reader, opts ...Option) ([]scrape.Meeting, ReadReport, error) {
	t, err := openTable(r, "meetings", newOptions(opts))
	if err != nil {
		return nil, ReadReport{}, err
	}
	if err := t.require("date", "racecourse", "max_race"); err != nil {
		return nil, ReadReport{}, err
	}
	var out []scrape.Meeting
	rep, err := t.each(ctx, func(line int, row []string) error {
		rr := &rowReader{t: t, row: row, line: line}
		raw := rr.str("date")
		d, err := scrape.ParseDate(raw)
		if err != nil {
			return &model.MalformedRecordError{Line: line, Field: "date", Value: raw, Err: err}
		}
		m := scrape.Meeting{
			Date:       d,
			Racecourse: strings.ToUpper(rr.str("racecourse")),
			MaxRace:    rr.int("max_race"),
		}
		if rr.err != nil {
			return rr.err
		}
		out = append(out, m)
		return nil
	})
	return out, rep, err
}
