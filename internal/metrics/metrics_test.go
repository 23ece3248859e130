package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sjawhar/interview-agent/internal/session"
)

func TestObserverCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded(session.ReasonCompleted)
	m.TurnCompleted(2*time.Second, true)
	m.UpstreamFailure(session.StageLLM)
	m.UpstreamFailure(session.StageLLM)
	m.PersistFailed(false)
	m.PersistFailed(true)

	if got := testutil.ToFloat64(m.activeSessions); got != 1 {
		t.Fatalf("expected 1 active session, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsEnded.WithLabelValues(session.ReasonCompleted)); got != 1 {
		t.Fatalf("expected 1 completed session, got %v", got)
	}
	if got := testutil.ToFloat64(m.fallbackReplies); got != 1 {
		t.Fatalf("expected 1 fallback, got %v", got)
	}
	if got := testutil.ToFloat64(m.upstreamFailures.WithLabelValues("llm")); got != 2 {
		t.Fatalf("expected 2 llm failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.persistFailures); got != 2 {
		t.Fatalf("expected 2 persist failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.persistAlarms); got != 1 {
		t.Fatalf("expected 1 alarm, got %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/interviews/{id}/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, id := range []string{"a", "b"} {
		resp, err := http.Get(srv.URL + "/api/interviews/" + id + "/status")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		_ = resp.Body.Close()
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/interviews/{id}/status", "404"))
	if got != 2 {
		t.Fatalf("expected 2 requests under the route pattern, got %v", got)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "interview_agent_http_requests_total") {
		t.Fatal("expected http metrics in exposition")
	}
}
