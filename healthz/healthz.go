// Package healthz serves liveness and readiness probes.
package healthz

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything that can check its backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler always reports healthy.
type Handler struct {
}

func New() *Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("200 OK"))
}

// Ready reports ready only while every dependency answers a ping.
type Ready struct {
	deps    map[string]Pinger
	timeout time.Duration
}

func NewReady(timeout time.Duration, deps map[string]Pinger) *Ready {
	return &Ready{deps: deps, timeout: timeout}
}

func (h *Ready) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			slog.ErrorContext(ctx, "Readiness check failed", slog.String("dependency", name), slog.Any("err", err))
			http.Error(w, "503 Service Unavailable: "+name, http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("200 OK"))
}
