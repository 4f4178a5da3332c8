package csvio

import (
	"strconv"
	"strings"
	"time"

	"github.com/okian/formguide/internal/domain/model"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(model.DateLayout)
}

// normalizeHeader lowercases a header cell and strips a UTF-8 BOM.
func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.TrimSpace(s))
}
