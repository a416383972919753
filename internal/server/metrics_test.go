package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/habitloop/habitloop/internal/chatbot"
)

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	newServerMetrics(reg)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

// Test_Metrics_ChatCounterIncremented verifies that a completed chatbot
// request shows up in the gathered metrics with its outcome label.
func Test_Metrics_ChatCounterIncremented(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	_, token := registerUser(t, s, "alice")

	w := doJSON(t, s, http.MethodPost, "/chatbot/ask", token, `{"message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("ask: expected 200, got %d", w.Code)
	}

	reg, ok := s.cfg.MetricsGatherer.(*prometheus.Registry)
	if !ok {
		t.Fatal("test server gatherer is not a *prometheus.Registry")
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "habitloop_chat_requests_total" {
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" && lp.GetValue() == "ok" {
						if m.GetCounter().GetValue() != 1 {
							t.Errorf("want counter=1, got %v", m.GetCounter().GetValue())
						}
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("habitloop_chat_requests_total{outcome=\"ok\"} not found in gathered metrics")
	}
}

// Test_Metrics_ClientErrorsGetOwnOutcome verifies a rejected empty message
// is counted as invalid, keeping the error series free of client mistakes.
func Test_Metrics_ClientErrorsGetOwnOutcome(t *testing.T) {
	t.Parallel()

	s, coach := newTestServer(t)
	_, token := registerUser(t, s, "alice")
	coach.askErr = chatbot.ErrEmptyQuery

	w := doJSON(t, s, http.MethodPost, "/chatbot/ask", token, `{"message":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("ask: expected 400, got %d", w.Code)
	}

	reg := s.cfg.MetricsGatherer.(*prometheus.Registry)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	counts := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "habitloop_chat_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" {
					counts[lp.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if counts[outcomeInvalid] != 1 {
		t.Errorf("want invalid=1, got %v", counts[outcomeInvalid])
	}
	if counts[outcomeError] != 0 {
		t.Errorf("want error=0, got %v", counts[outcomeError])
	}
}

func Test_Metrics_InFlightGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	m.chatInFlight.Inc()
	m.chatInFlight.Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "habitloop_chat_in_flight" {
			v := mf.GetMetric()[0].GetGauge().GetValue()
			if v != 2 {
				t.Errorf("want in_flight=2, got %v", v)
			}
			return
		}
	}
	t.Error("habitloop_chat_in_flight not found in gathered metrics")
}

// Test_Metrics_HTTPRequestsLabeled verifies the per-endpoint counter records
// the handler name rather than the raw path.
func Test_Metrics_HTTPRequestsLabeled(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	reg := s.cfg.MetricsGatherer.(*prometheus.Registry)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() != "habitloop_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == labelHandler && lp.GetValue() == "health" {
					return
				}
			}
		}
	}
	t.Error("habitloop_http_requests_total{handler=\"health\"} not found")
}
