package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/llmhub/llmhub/internal/logger"
)

func fakeService(healthy *atomic.Bool, tools string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if !healthy.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		case "/tools":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(tools))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestPollRegistersHealthyService(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := fakeService(&healthy, `{"tools":[{"name":"inference","schema":{"type":"object"}},{"name":"list_models"}]}`)
	defer srv.Close()

	reg := NewServiceRegistry()
	p := NewPoller([]Target{{Name: "bridge", URL: srv.URL}}, reg, 30*time.Second, logger.Nop())

	p.Cycle(context.Background())

	got := reg.Get("bridge")
	if got == nil {
		t.Fatal("service not registered after poll")
	}
	if !got.Healthy {
		t.Error("service should be marked healthy")
	}
	if len(got.Tools) != 2 {
		t.Errorf("got %d tools, want 2", len(got.Tools))
	}
	if _, ok := got.Tools["inference"]; !ok {
		t.Error("inference tool missing from entry")
	}
}

func TestPollRemovesUnhealthyService(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := fakeService(&healthy, `{"tools":[{"name":"inference"}]}`)
	defer srv.Close()

	reg := NewServiceRegistry()
	p := NewPoller([]Target{{Name: "bridge", URL: srv.URL}}, reg, 30*time.Second, logger.Nop())

	p.Cycle(context.Background())
	if reg.Get("bridge") == nil {
		t.Fatal("service not registered")
	}

	healthy.Store(false)
	p.Cycle(context.Background())
	if reg.Get("bridge") != nil {
		t.Error("unhealthy service still registered after poll")
	}
}

func TestPollRemovesServiceOnToolFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reg := NewServiceRegistry()
	reg.Upsert(entry("bridge", srv.URL, true, "inference"))
	p := NewPoller([]Target{{Name: "bridge", URL: srv.URL}}, reg, 30*time.Second, logger.Nop())

	p.Cycle(context.Background())
	if reg.Get("bridge") != nil {
		t.Error("service with broken tool listing should be removed")
	}
}

func TestPollUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	reg := NewServiceRegistry()
	p := NewPoller([]Target{{Name: "bridge", URL: srv.URL}}, reg, 30*time.Second, logger.Nop())

	p.Cycle(context.Background())
	if reg.Count() != 0 {
		t.Error("unreachable target must not be registered")
	}
}
