package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/inboxdraft/internal/instrumentation"
)

func sessionRequest(cookie *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return r
}

func issueSession(t *testing.T, m *SessionManager) (string, *http.Cookie) {
	t.Helper()

	rec := httptest.NewRecorder()
	id := m.Ensure(rec, sessionRequest(nil))
	if id == "" {
		t.Fatal("Ensure() returned empty session ID")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName {
		t.Fatalf("expected one session cookie, got %v", cookies)
	}
	return id, cookies[0]
}

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	m := NewSessionManager(time.Hour, nil, nil)
	t.Cleanup(m.Stop)
	return m
}

func TestEnsureIsIdempotentForKnownSession(t *testing.T) {
	m := newTestSessionManager(t)

	id, cookie := issueSession(t, m)

	rec := httptest.NewRecorder()
	again := m.Ensure(rec, sessionRequest(cookie))
	if again != id {
		t.Errorf("Ensure() = %q, want existing session %q", again, id)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("existing session must not reissue the cookie")
	}
}

func TestEnsureIgnoresUnknownCookie(t *testing.T) {
	m := newTestSessionManager(t)

	forged := &http.Cookie{Name: SessionCookieName, Value: "not-a-session"}
	rec := httptest.NewRecorder()
	id := m.Ensure(rec, sessionRequest(forged))

	if id == "not-a-session" {
		t.Error("unknown cookie value must not be adopted as a session")
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Error("a fresh session cookie must be issued")
	}
}

func TestTakeStateIsSingleUse(t *testing.T) {
	m := newTestSessionManager(t)

	id, _ := issueSession(t, m)
	m.SetState(id, "state-token")

	if got := m.TakeState(id); got != "state-token" {
		t.Errorf("TakeState() = %q, want state-token", got)
	}
	if got := m.TakeState(id); got != "" {
		t.Errorf("second TakeState() = %q, want empty", got)
	}
}

func TestSetStateOverwritesPending(t *testing.T) {
	m := newTestSessionManager(t)

	id, _ := issueSession(t, m)
	m.SetState(id, "first")
	m.SetState(id, "second")

	if got := m.TakeState(id); got != "second" {
		t.Errorf("TakeState() = %q, want second", got)
	}
}

func TestClearRemovesSession(t *testing.T) {
	m := newTestSessionManager(t)

	id, cookie := issueSession(t, m)
	m.SetState(id, "pending")

	rec := httptest.NewRecorder()
	m.Clear(rec, sessionRequest(cookie))

	if _, ok := m.resolve(sessionRequest(cookie)); ok {
		t.Error("session must be gone after Clear")
	}
	if got := m.TakeState(id); got != "" {
		t.Errorf("TakeState() after Clear = %q, want empty", got)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Errorf("Clear() must expire the cookie, got %v", cookies)
	}
}

func TestCleanupKeepsActiveSessionsGaugeInStep(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	m := NewSessionManager(time.Hour, nil, metrics)
	t.Cleanup(m.Stop)

	issueSession(t, m)
	liveID, _ := issueSession(t, m)

	if got := activeSessionsValue(t, reader); got != 2 {
		t.Fatalf("active_sessions = %d after two sessions, want 2", got)
	}

	// Backdate all but one session past the timeout and sweep.
	m.mu.Lock()
	for id, info := range m.sessions {
		if id != liveID {
			info.lastAccess = time.Now().Add(-2 * time.Hour)
		}
	}
	m.mu.Unlock()

	m.removeExpired(time.Now())

	m.mu.Lock()
	remaining := len(m.sessions)
	m.mu.Unlock()
	if remaining != 1 {
		t.Errorf("%d sessions remain after cleanup, want 1", remaining)
	}
	if got := activeSessionsValue(t, reader); got != 1 {
		t.Errorf("active_sessions = %d after cleanup, want 1", got)
	}
}

func activeSessionsValue(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}

	for _, scope := range rm.ScopeMetrics {
		for _, met := range scope.Metrics {
			if met.Name != "active_sessions" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("active_sessions has unexpected data type %T", met.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}

	t.Fatal("active_sessions metric not found")
	return 0
}
