package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Gimer0x/code-api-client/internal/testutil"
	"github.com/Gimer0x/code-api-client/pkg/api"
)

func newGatewayClient(t *testing.T, backend *testutil.MockBackend) *api.Client {
	t.Helper()
	client, err := api.New(api.DefaultConfig(backend.URL()))
	if err != nil {
		t.Fatalf("Failed to create API client: %v", err)
	}
	return client
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint_NoRedis(t *testing.T) {
	handler := readyHandler(nil)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 without Redis, got %d", w.Result().StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	// Creating a client registers all promauto metrics.
	newGatewayClient(t, backend)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, "api_inflight_active") {
		t.Error("Expected metrics output to contain api_inflight_active")
	}
}

func TestProxyHandler_ForwardsGet(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetResponse("/courses", testutil.NewJSONResponse(`[{"id": 1}]`))

	handler := proxyHandler(newGatewayClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("GET", "/api/courses", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != `[{"id": 1}]` {
		t.Errorf("Body = %s", body)
	}
}

func TestProxyHandler_ForwardsPostBody(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetResponse("/courses", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       `{"id": 2}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	handler := proxyHandler(newGatewayClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("POST", "/api/courses", strings.NewReader(`{"title": "Go"}`))
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}
}

func TestProxyHandler_RejectsInvalidBody(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	handler := proxyHandler(newGatewayClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("POST", "/api/courses", strings.NewReader("{broken"))
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
	if backend.RequestCount() != 0 {
		t.Error("Invalid body should not reach the backend")
	}
}

func TestProxyHandler_MapsRateLimit(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetResponse("/limited", testutil.NewRateLimitResponse("7"))

	handler := proxyHandler(newGatewayClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("GET", "/api/limited", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Expected Retry-After header on rate-limited response")
	}
}

func TestProxyHandler_MapsUpstreamError(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()
	backend.SetResponse("/missing", testutil.NewErrorResponse(http.StatusNotFound, "not found"))

	handler := proxyHandler(newGatewayClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("GET", "/api/missing", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Result().StatusCode)
	}
}

func TestProxyHandler_MapsTransportError(t *testing.T) {
	backend := testutil.NewMockBackend()
	baseURL := backend.URL()
	backend.Close()

	client, err := api.New(api.DefaultConfig(baseURL))
	if err != nil {
		t.Fatalf("Failed to create API client: %v", err)
	}
	handler := proxyHandler(client, zerolog.Nop())

	req := httptest.NewRequest("GET", "/api/courses", nil)
	w := httptest.NewRecorder()

	handler(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Result().StatusCode)
	}
}
