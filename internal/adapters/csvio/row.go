package csvio

import (
	"strings"
	"time"

	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/model"
)

// rowReader decodes named cells and keeps the first conversion error.
type rowReader struct {
	t    *table
	row  []string
	line int
	err  error
}

func (r *rowReader) str(name string) string {
	i, ok := r.t.index[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(cell(r.row, i))
}

func (r *rowReader) fail(name, v string, err error) {
	if r.err == nil && err != nil {
		r.err = &model.MalformedRecordError{Line: r.line, Field: name, Value: v, Err: err}
	}
}

func (r *rowReader) int(name string) int {
	v := r.str(name)
	n, err := scrape.ParseInt(v)
	r.fail(name, v, err)
	return n
}

func (r *rowReader) int64(name string) int64 {
	v := r.str(name)
	n, err := scrape.ParsePrize(v)
	r.fail(name, v, err)
	return n
}

func (r *rowReader) float(name string) float64 {
	v := r.str(name)
	n, err := scrape.ParseDecimal(v)
	r.fail(name, v, err)
	return n
}

func (r *rowReader) optFloat(name string) *float64 {
	v := r.str(name)
	n, err := scrape.ParseOptionalDecimal(v)
	r.fail(name, v, err)
	return n
}

func (r *rowReader) finishTime(name string) float64 {
	v := r.str(name)
	n, err := scrape.ParseFinishTime(v)
	r.fail(name, v, err)
	return n
}

func (r *rowReader) date(name string) time.Time {
	v := r.str(name)
	d, err := model.ParseDate(v)
	r.fail(name, v, err)
	return d
}
