package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxdraft/internal/instrumentation"
)

// SessionCookieName keys the server-side session.
const SessionCookieName = "inboxdraft_session"

// DefaultSessionTimeout expires sessions that have been idle for a day.
const DefaultSessionTimeout = 24 * time.Hour

const cleanupInterval = 10 * time.Minute

// sessionInfo tracks per-session state for cleanup.
type sessionInfo struct {
	oauthState string
	lastAccess time.Time
}

// SessionManager keeps server-side sessions keyed by a random cookie
// value. A session carries the pending OAuth state token; nothing
// sensitive lives in the cookie itself.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionInfo

	timeout       time.Duration
	cleanupTicker *time.Ticker
	cleanupDone   chan struct{}
	logger        *slog.Logger
	metrics       *instrumentation.Metrics
}

// NewSessionManager creates a session manager and starts its cleanup
// goroutine. Call Stop when done.
func NewSessionManager(timeout time.Duration, logger *slog.Logger, metrics *instrumentation.Metrics) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &SessionManager{
		sessions:      make(map[string]*sessionInfo),
		timeout:       timeout,
		cleanupTicker: time.NewTicker(cleanupInterval),
		cleanupDone:   make(chan struct{}),
		logger:        logger,
		metrics:       metrics,
	}

	go m.cleanupExpiredSessions()

	return m
}

// Ensure returns the request's session ID, creating a session and
// setting the cookie when none exists yet.
func (m *SessionManager) Ensure(w http.ResponseWriter, r *http.Request) string {
	if id, ok := m.resolve(r); ok {
		return id
	}

	id := uuid.NewString()

	m.mu.Lock()
	m.sessions[id] = &sessionInfo{lastAccess: time.Now()}
	m.mu.Unlock()

	m.metrics.IncrementActiveSessions(r.Context())

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// resolve returns the session ID from the request cookie if the session
// is still alive, refreshing its last-access time.
func (m *SessionManager) resolve(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[cookie.Value]
	if !ok {
		return "", false
	}
	info.lastAccess = time.Now()
	return cookie.Value, true
}

// SetState stores a pending OAuth state token, replacing any previous
// one.
func (m *SessionManager) SetState(sessionID, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.sessions[sessionID]; ok {
		info.oauthState = state
		info.lastAccess = time.Now()
	}
}

// TakeState returns the pending OAuth state token and clears it. The
// token is single-use: a second call returns "".
func (m *SessionManager) TakeState(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[sessionID]
	if !ok {
		return ""
	}
	state := info.oauthState
	info.oauthState = ""
	return state
}

// Clear removes the request's session and expires the cookie. Stored
// credentials are untouched.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		m.mu.Lock()
		if _, ok := m.sessions[cookie.Value]; ok {
			delete(m.sessions, cookie.Value)
			m.metrics.DecrementActiveSessions(r.Context())
		}
		m.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (m *SessionManager) cleanupExpiredSessions() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.removeExpired(time.Now())
		case <-m.cleanupDone:
			return
		}
	}
}

// removeExpired drops sessions idle past the timeout, decrementing the
// active-session gauge for each one so it stays in step with the map.
func (m *SessionManager) removeExpired(now time.Time) {
	ctx := context.Background()

	m.mu.Lock()
	expired := 0
	for id, info := range m.sessions {
		if now.Sub(info.lastAccess) > m.timeout {
			delete(m.sessions, id)
			m.metrics.DecrementActiveSessions(ctx)
			expired++
		}
	}
	m.mu.Unlock()

	if expired > 0 {
		m.logger.Info("cleaned up expired sessions", "count", expired)
	}
}

// Stop stops the session cleanup goroutine.
func (m *SessionManager) Stop() {
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}
	if m.cleanupDone != nil {
		close(m.cleanupDone)
	}
}
