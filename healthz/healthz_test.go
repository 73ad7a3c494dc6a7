package healthz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func TestReady(t *testing.T) {
	testCases := []struct {
		desc       string
		err        error
		wantStatus int
	}{
		{"store reachable", nil, http.StatusOK},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			h := NewReady(time.Second, map[string]Pinger{"store": &fakePinger{err: tc.err}})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
			if rec.Code != tc.wantStatus {
				t.Errorf("Bad status; got %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	New().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "200 OK" {
		t.Errorf("Bad response; got %d %q", rec.Code, rec.Body.String())
	}
}
