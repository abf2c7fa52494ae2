package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/peloton/pkg/metrics"
)

// instrument records request count, latency and failures of one route.
// Failures are labelled with the code writeError put in the body, so the
// error metric and the JSON response always agree.
func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		began := time.Now()
		h(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(route, r.Method, status)
		metrics.RecordHTTPRequestDuration(route, r.Method, status, float64(time.Since(began).Microseconds())/1000)
		if rec.status >= http.StatusBadRequest {
			kind := rec.code
			if kind == "" {
				kind = "http_" + status
			}
			metrics.RecordErrorByComponent("http", kind)
		}
	}
}

// statusRecorder remembers the status and error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// failed notes the error code of a failure response when w is instrumented.
func failed(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
}
