package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/formguide/pkg/logger"
	"github.com/okian/formguide/pkg/metrics"
)

// RequestIDHeader carries the id assigned to every request. A client supplied
// id is kept.
const RequestIDHeader = "X-Request-Id"

// Instrument wraps a handler with request metrics, a request id and an access
// log line. Server errors are logged at warn, everything else at debug.
func Instrument(endpoint string, log logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(elapsed.Milliseconds()))

		fields := []logger.Field{
			logger.String("request_id", id),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("elapsed", elapsed),
		}
		kind, severity, failed := classify(rec.status)
		if !failed {
			log.Debug(r.Context(), "request", fields...)
			return
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		metrics.RecordErrorByType(kind, severity)
		if severity == severityHigh {
			log.Warn(r.Context(), "request failed", fields...)
		} else {
			log.Debug(r.Context(), "request rejected", fields...)
		}
	}
}

const (
	severityHigh   = "high"
	severityMedium = "medium"
)

// classify maps a status to an error kind and severity. Statuses below 400
// are not failures.
func classify(status int) (kind, severity string, failed bool) {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", severityHigh, true
	case status == http.StatusNotFound:
		return "not_found", severityMedium, true
	case status >= http.StatusBadRequest:
		return "client_error", severityMedium, true
	}
	return "", "", false
}

// statusRecorder remembers the status a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
