// Package httpmetrics counts and times served HTTP requests with OpenCensus.
package httpmetrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyRoute  = tag.MustNewKey("route")
	keyMethod = tag.MustNewKey("method")
	keyStatus = tag.MustNewKey("status")
)

type Wrapper struct {
	requestCount     *stats.Int64Measure
	requestCountView *view.View

	latency     *stats.Float64Measure
	latencyView *view.View

	inner http.Handler
}

// New wraps inner.  Requests are tagged with the mux pattern that matched
// them, so that path parameters do not blow up the tag cardinality.
func New(inner http.Handler) *Wrapper {
	h := &Wrapper{}

	h.requestCount = stats.Int64("kurudhi/requests", "Requests handled", stats.UnitDimensionless)
	h.requestCountView = &view.View{
		Name:        "kurudhi/requests",
		Description: "Counter of requests that have been handled",
		TagKeys:     []tag.Key{keyRoute, keyMethod, keyStatus},
		Measure:     h.requestCount,
		Aggregation: view.Count(),
	}

	h.latency = stats.Float64("kurudhi/latency", "Request latency", stats.UnitMilliseconds)
	h.latencyView = &view.View{
		Name:        "kurudhi/latency",
		Description: "Distribution of request latencies",
		TagKeys:     []tag.Key{keyRoute, keyMethod},
		Measure:     h.latency,
		Aggregation: view.Distribution(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	}

	h.inner = inner
	return h
}

func (h *Wrapper) RegisterMetrics() error {
	return view.Register(h.requestCountView, h.latencyView)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Wrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	h.inner.ServeHTTP(rec, r)

	elapsed := time.Since(start)
	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}

	slog.InfoContext(r.Context(), "Served request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("elapsed", elapsed))

	stats.RecordWithOptions(
		r.Context(),
		stats.WithTags(
			tag.Insert(keyRoute, route),
			tag.Insert(keyMethod, r.Method),
			tag.Insert(keyStatus, strconv.Itoa(rec.status)),
		),
		stats.WithMeasurements(
			h.requestCount.M(1),
			h.latency.M(float64(elapsed)/float64(time.Millisecond)),
		))
}
