package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"decision-core/internal/broker"
	"decision-core/internal/events"
	"decision-core/internal/instance"
	"decision-core/internal/risk"
	"decision-core/internal/signal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) *Server {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	sim := broker.NewSim(broker.SimConfig{}, bus)

	def := instance.Definition{
		ID:         "inst-1",
		Symbol:     "EURUSD",
		Timeframe:  instance.Duration(time.Minute),
		Enabled:    true,
		Session:    instance.SessionConfig{Start: 0, End: 24},
		Indicators: instance.IndicatorConfig{FastMA: 2, SlowMA: 3, ATRPeriod: 2},
		Signal:     instance.SignalConfig{Variant: signal.VariantCrossover},
		Sizing:     instance.SizingConfig{Mode: risk.SizeFixed, FixedVolume: 0.1, StopATRMult: 2},
		Venue:      instance.VenueConfig{MinVolume: 0.01},
	}
	runner, err := instance.NewRunner(def, instance.Deps{Bus: bus, Exec: sim, Equity: sim.Equity})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	return NewServer(nil, []*instance.Runner{runner}, sim.Equity,
		"test-jwt-secret", "test-admin-secret", SystemMeta{Version: "test", UseMockFeed: true})
}

func doRequest(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, s *Server) string {
	t.Helper()
	w := doRequest(s, http.MethodPost, "/api/auth/login", "", `{"secret":"test-admin-secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func TestHealthAndSystemStatusArePublic(t *testing.T) {
	s := testServer(t)

	if w := doRequest(s, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}

	w := doRequest(s, http.MethodGet, "/api/system/status", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("system status = %d", w.Code)
	}
	var resp struct {
		Instances int     `json:"instances"`
		Running   int     `json:"running"`
		Equity    float64 `json:"equity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Instances != 1 || resp.Running != 1 || resp.Equity != 10000 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := testServer(t)

	if w := doRequest(s, http.MethodGet, "/api/instances", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", w.Code)
	}
	if w := doRequest(s, http.MethodGet, "/api/instances", "not-a-token", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status with garbage token = %d, want 401", w.Code)
	}
}

func TestLoginRejectsWrongSecret(t *testing.T) {
	s := testServer(t)
	w := doRequest(s, http.MethodPost, "/api/auth/login", "", `{"secret":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want 401", w.Code)
	}
}

func TestPauseResumeFlow(t *testing.T) {
	s := testServer(t)
	token := loginToken(t, s)

	w := doRequest(s, http.MethodGet, "/api/instances", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", w.Code, w.Body.String())
	}

	if w := doRequest(s, http.MethodPost, "/api/instances/inst-1/pause", token, ""); w.Code != http.StatusOK {
		t.Fatalf("pause status = %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/instances/inst-1", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var st instance.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Paused {
		t.Fatal("instance should report paused")
	}

	if w := doRequest(s, http.MethodPost, "/api/instances/inst-1/resume", token, ""); w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}
	if s.Runners[0].Paused() {
		t.Fatal("instance should be running again")
	}
}

func TestUnknownInstanceIs404(t *testing.T) {
	s := testServer(t)
	token := loginToken(t, s)

	if w := doRequest(s, http.MethodGet, "/api/instances/ghost", token, ""); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
