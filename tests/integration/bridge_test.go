package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llmhub/llmhub/internal/discovery"
	"github.com/llmhub/llmhub/internal/httpserver"
	"github.com/llmhub/llmhub/internal/httpserver/deps"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/maintenance"
	"github.com/llmhub/llmhub/internal/metrics"
	"github.com/llmhub/llmhub/internal/recovery"
	"github.com/llmhub/llmhub/internal/registry"
	"github.com/llmhub/llmhub/internal/resource"
	redisstore "github.com/llmhub/llmhub/internal/store/redis"
	"github.com/llmhub/llmhub/internal/tools"
	"github.com/llmhub/llmhub/internal/translate"
	"github.com/llmhub/llmhub/internal/upstream"
)

// fakeBackend emulates an OpenAI-compatible inference server with one
// loaded model.
type fakeBackend struct {
	completions atomic.Int64
	lastPayload atomic.Value // map[string]interface{}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"id": "llama-3-8b", "object": "model", "owned_by": "local"},
			},
		})
	})
	mux.HandleFunc("POST /v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.completions.Add(1)
		f.lastPayload.Store(payload)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "abc123",
			"object":  "text_completion",
			"created": 1700000000,
			"model":   payload["model"],
			"choices": []map[string]interface{}{
				{"text": "hello from the model", "index": 0, "finish_reason": "stop"},
			},
			"usage": map[string]interface{}{"prompt_tokens": 2, "completion_tokens": 5, "total_tokens": 7},
		})
	})
	return mux
}

// newBridge wires the full bridge component graph against the fake
// backend and serves its router from an httptest server. Discovery runs
// one forced cycle so the model registry is populated.
func newBridge(t *testing.T, backend *fakeBackend) (*httptest.Server, *fakeBackend) {
	t.Helper()

	if backend == nil {
		backend = &fakeBackend{}
	}
	upstreamSrv := httptest.NewServer(backend.handler())
	t.Cleanup(upstreamSrv.Close)

	log := logger.Nop()
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	monitor := resource.NewMonitor(resource.Options{
		Interval:      time.Minute,
		MaxCPUPercent: 50,
		MaxMemPercent: 50,
	}, m, log)

	client := upstream.New(upstream.Options{
		BaseURL:          upstreamSrv.URL,
		Timeout:          5 * time.Second,
		MaxRetries:       0,
		BreakerThreshold: 5,
		BreakerCoolOff:   time.Minute,
	}, monitor, m, log)

	cache := redisstore.NewCompletionCache(nil, 0)
	maint := maintenance.New(maintenance.Options{TempDir: t.TempDir()}, nil, client, monitor, cache, log)
	recoverer := recovery.New(recovery.Options{MaxAttempts: 3, Cooldown: time.Minute}, client, maint, m, log)

	models := registry.NewModelRegistry()
	poller := discovery.NewPoller(client, models, recoverer, monitor, m, log,
		30*time.Second, 300*time.Second)
	if _, err := poller.Force(context.Background()); err != nil {
		t.Fatalf("initial discovery failed: %v", err)
	}

	translator := translate.New(client, models, nil, log)

	d := deps.Deps{
		Logger:      log,
		StartTime:   time.Now(),
		Version:     "test",
		TimeNow:     time.Now,
		Metrics:     promReg,
		Upstream:    client,
		Models:      models,
		Discovery:   poller,
		Resource:    monitor,
		Maintenance: maint,
		Recovery:    recoverer,
		Translator:  translator,
		Catalog:     tools.Defaults(),
	}

	srv := httptest.NewServer(httpserver.NewRouter(log, d))
	t.Cleanup(srv.Close)
	return srv, backend
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s response: %v", url, err)
	}
	return resp.StatusCode, body
}

func postJSON(t *testing.T, url string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s response: %v", url, err)
	}
	return resp.StatusCode, body
}

func TestHealthReportsHealthyWithModels(t *testing.T) {
	srv, _ := newBridge(t, nil)

	code, body := getJSON(t, srv.URL+"/health")
	if code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	components, _ := body["components"].(map[string]interface{})
	md, _ := components["model_discovery"].(map[string]interface{})
	if md["model_count"] != float64(1) {
		t.Errorf("model_count = %v, want 1", md["model_count"])
	}
	if md["status"] != "healthy" {
		t.Errorf("model_discovery status = %v, want healthy", md["status"])
	}
}

func TestListToolsServesCatalog(t *testing.T) {
	srv, _ := newBridge(t, nil)

	code, body := getJSON(t, srv.URL+"/tools")
	if code != http.StatusOK {
		t.Fatalf("GET /tools = %d, want 200", code)
	}
	rawTools, _ := body["tools"].([]interface{})
	names := make(map[string]bool, len(rawTools))
	for _, raw := range rawTools {
		spec, _ := raw.(map[string]interface{})
		name, _ := spec["name"].(string)
		names[name] = true
	}
	if !names[tools.ToolInference] || !names[tools.ToolListModels] {
		t.Errorf("catalog tools = %v, want inference and list_models", names)
	}
}

func TestExecuteInference(t *testing.T) {
	srv, backend := newBridge(t, nil)

	code, body := postJSON(t, srv.URL+"/mcp/tools/inference", map[string]interface{}{
		"parameters": map[string]interface{}{
			"prompt": "say hello",
			"model":  "llama-3-8b",
		},
	})
	if code != http.StatusOK {
		t.Fatalf("POST /mcp/tools/inference = %d, body %v", code, body)
	}
	if body["id"] != "cmpl-abc123" {
		t.Errorf("id = %v, want cmpl-abc123", body["id"])
	}
	choices, _ := body["choices"].([]interface{})
	if len(choices) != 1 {
		t.Fatalf("choices = %v, want 1 entry", body["choices"])
	}
	choice, _ := choices[0].(map[string]interface{})
	if choice["text"] != "hello from the model" {
		t.Errorf("choice text = %v", choice["text"])
	}

	// Defaults are filled in before the request reaches the backend.
	sent, _ := backend.lastPayload.Load().(map[string]interface{})
	if sent["temperature"] != 0.7 {
		t.Errorf("forwarded temperature = %v, want 0.7", sent["temperature"])
	}
	if sent["max_tokens"] != float64(1000) {
		t.Errorf("forwarded max_tokens = %v, want 1000", sent["max_tokens"])
	}
}

func TestExecuteListModels(t *testing.T) {
	srv, _ := newBridge(t, nil)

	code, body := postJSON(t, srv.URL+"/mcp/tools/list_models", map[string]interface{}{
		"parameters": map[string]interface{}{},
	})
	if code != http.StatusOK {
		t.Fatalf("POST /mcp/tools/list_models = %d, body %v", code, body)
	}
	if body["object"] != "list" {
		t.Errorf("object = %v, want list", body["object"])
	}
	data, _ := body["data"].([]interface{})
	if len(data) != 1 {
		t.Fatalf("data = %v, want 1 model", body["data"])
	}
	model, _ := data[0].(map[string]interface{})
	if model["id"] != "llama-3-8b" {
		t.Errorf("model id = %v, want llama-3-8b", model["id"])
	}
}

func TestExecuteValidation(t *testing.T) {
	srv, backend := newBridge(t, nil)

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{name: "missing prompt", params: map[string]interface{}{"model": "llama-3-8b"}},
		{name: "missing model", params: map[string]interface{}{"prompt": "hi"}},
		{name: "temperature out of range", params: map[string]interface{}{
			"prompt": "hi", "model": "llama-3-8b", "temperature": 3.0,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := postJSON(t, srv.URL+"/mcp/tools/inference", map[string]interface{}{
				"parameters": tt.params,
			})
			if code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %v", code, body)
			}
		})
	}

	if n := backend.completions.Load(); n != 0 {
		t.Errorf("backend received %d completion calls, want 0", n)
	}
}

func TestUnknownToolReturns404(t *testing.T) {
	srv, _ := newBridge(t, nil)

	code, _ := postJSON(t, srv.URL+"/mcp/tools/nonsense", map[string]interface{}{
		"parameters": map[string]interface{}{},
	})
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestDiscoverForcesCycle(t *testing.T) {
	srv, _ := newBridge(t, nil)

	code, body := postJSON(t, srv.URL+"/discover", map[string]interface{}{})
	if code != http.StatusOK {
		t.Fatalf("POST /discover = %d, body %v", code, body)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["model_count"] != float64(1) {
		t.Errorf("model_count = %v, want 1", body["model_count"])
	}
}

func TestStatusExposesSubsystems(t *testing.T) {
	srv, _ := newBridge(t, nil)

	code, body := getJSON(t, srv.URL+"/status")
	if code != http.StatusOK {
		t.Fatalf("GET /status = %d", code)
	}
	if body["service"] != "bridge" {
		t.Errorf("service = %v, want bridge", body["service"])
	}
	for _, key := range []string{"upstream", "recovery", "discovery", "resource", "maintenance"} {
		if _, ok := body[key]; !ok {
			t.Errorf("status payload missing %q section", key)
		}
	}
}
