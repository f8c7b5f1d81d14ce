package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/engine"
	"github.com/xela07ax/epi-orchestrator/internal/infra"
	"github.com/xela07ax/epi-orchestrator/internal/repository/memory"
	"github.com/xela07ax/epi-orchestrator/internal/server/handler"
	"github.com/xela07ax/epi-orchestrator/internal/service"
)

// newTestServer собирает полный стек на memory-хранилище, как собирает
// его main, но без Postgres, Redis и метрик-листенера.
func newTestServer(t *testing.T, allowClear bool) *httptest.Server {
	t.Helper()

	cfg := &infra.Config{}
	cfg.Server.RateLimitRPS = 1000
	cfg.Server.RateLimitBurst = 1000

	logger := zap.NewNop()
	store := memory.New()
	orch := engine.NewOrchestrator(store, nil, engine.NewMetrics(nil), logger)
	query := service.NewQueryService(store, 50, 500, allowClear, logger)

	srv := New(cfg, logger,
		handler.NewEventHandler(orch, logger),
		handler.NewOrchestrationHandler(orch, logger),
		handler.NewQueryHandler(query, logger),
	)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRootBanner(t *testing.T) {
	ts := newTestServer(t, false)

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if payload["message"] != "EPI Orchestrator API" || payload["version"] != Version {
		t.Errorf("banner = %v", payload)
	}
}

func TestSubmitFaceEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/events/face",
		`{"detected": true, "confidence": 0.9, "quality_score": 0.8}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, payload)
	}
	if payload["id"] == "" || payload["id"] == nil {
		t.Errorf("response without id: %v", payload)
	}

	// Уверенность вне [0,1] отклоняется, не прижимается.
	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/events/face",
		`{"detected": true, "confidence": 1.5, "quality_score": 0.8}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if payload["error"] != "validation_error" {
		t.Errorf("error payload = %v", payload)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/events/face", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitEpiEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/events/epi",
		`{"epi_type": "helmet", "detected": true, "properly_worn": true, "confidence": 0.9}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/events/epi",
		`{"epi_type": "cape", "detected": true, "confidence": 0.9}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "unknown EPI type") {
		t.Errorf("message = %v", payload["message"])
	}
}

func TestOrchestrateEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	resp, payload := doJSON(t, http.MethodPost, ts.URL+"/api/orchestrate", `{
		"face_event": {"detected": true, "confidence": 0.9, "quality_score": 0.8},
		"epi_events": [{"epi_type": "helmet", "detected": true, "properly_worn": true, "confidence": 0.85}],
		"person_id": "worker-1"
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, payload)
	}
	if payload["decision"] != "approved" {
		t.Errorf("decision = %v, reason = %v", payload["decision"], payload["reason"])
	}
	if payload["confidence_score"] != 0.85 {
		t.Errorf("confidence_score = %v, want 0.85", payload["confidence_score"])
	}

	// Без required_epis действует требование каски по умолчанию.
	resp, payload = doJSON(t, http.MethodPost, ts.URL+"/api/orchestrate", `{
		"face_event": {"detected": true, "confidence": 0.9, "quality_score": 0.8}
	}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, payload)
	}
	if payload["decision"] != "rejected" {
		t.Errorf("decision = %v, want rejected", payload["decision"])
	}
	if payload["confidence_score"] != 0.0 {
		t.Errorf("confidence_score = %v, want 0", payload["confidence_score"])
	}
}

func TestHistoryAndStatsEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	doJSON(t, http.MethodPost, ts.URL+"/api/orchestrate", `{
		"face_event": {"detected": true, "confidence": 0.9, "quality_score": 0.8},
		"epi_events": [{"epi_type": "helmet", "detected": true, "properly_worn": true, "confidence": 0.85}]
	}`)

	resp, payload := doJSON(t, http.MethodGet, ts.URL+"/api/events/history", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, key := range []string{"face_events", "epi_events", "decisions"} {
		items, ok := payload[key].([]any)
		if !ok || len(items) != 1 {
			t.Errorf("history[%q] = %v, want one record", key, payload[key])
		}
	}

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["total_face_events"] != 1.0 || payload["approved_decisions"] != 1.0 {
		t.Errorf("stats = %v", payload)
	}

	resp, payload = doJSON(t, http.MethodGet, ts.URL+"/api/events/history?limit=abc", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if payload["message"] != "limit: must be an integer" {
		t.Errorf("message = %v", payload["message"])
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/events/history?limit=-5", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", resp.StatusCode)
	}
}

func TestDecisionsEndpointStatusFilter(t *testing.T) {
	ts := newTestServer(t, false)

	doJSON(t, http.MethodPost, ts.URL+"/api/orchestrate", `{
		"face_event": {"detected": false}
	}`)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/decisions?status=rejected", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/decisions error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var decisions []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decisions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decisions) != 1 || decisions[0]["decision"] != "rejected" {
		t.Errorf("decisions = %v", decisions)
	}

	resp2, payload := doJSON(t, http.MethodGet, ts.URL+"/api/decisions?status=bogus", "")
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown status code = %d, want 400", resp2.StatusCode)
	}
	if payload["error"] != "validation_error" {
		t.Errorf("error payload = %v", payload)
	}
}

func TestClearEndpoint(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		ts := newTestServer(t, false)
		resp, payload := doJSON(t, http.MethodDelete, ts.URL+"/api/events/clear", "")
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
		if payload["error"] != "clear_disabled" {
			t.Errorf("error payload = %v", payload)
		}
	})

	t.Run("enabled by flag", func(t *testing.T) {
		ts := newTestServer(t, true)
		doJSON(t, http.MethodPost, ts.URL+"/api/events/face",
			`{"detected": true, "confidence": 0.9, "quality_score": 0.8}`)

		resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/events/clear", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}

		_, payload := doJSON(t, http.MethodGet, ts.URL+"/api/stats", "")
		if payload["total_face_events"] != 0.0 {
			t.Errorf("stats after clear = %v", payload)
		}
	})
}

func TestRateLimit(t *testing.T) {
	cfg := &infra.Config{}
	cfg.Server.RateLimitRPS = 1
	cfg.Server.RateLimitBurst = 1

	logger := zap.NewNop()
	store := memory.New()
	orch := engine.NewOrchestrator(store, nil, engine.NewMetrics(nil), logger)
	query := service.NewQueryService(store, 50, 500, false, logger)

	srv := New(cfg, logger,
		handler.NewEventHandler(orch, logger),
		handler.NewOrchestrationHandler(orch, logger),
		handler.NewQueryHandler(query, logger),
	)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	// Burst 1: первый запрос проходит, немедленный второй отбрасывается.
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", resp.StatusCode)
	}
}
