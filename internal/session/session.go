// Package session keeps one set of storefront components per shopper, keyed by a cookie.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/checkout"
	"github.com/abgdnv/storefront/internal/notice"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/google/uuid"
)

// Session is the state a single-page client would hold for one shopper.
type Session struct {
	ID       string
	Catalog  *catalog.View
	Cart     *cart.Synchronizer
	Checkout *checkout.Orchestrator
	Notices  *notice.Queue
}

// Factory builds the components of a new session.
type Factory func(id string) *Session

type entry struct {
	session  *Session
	lastSeen time.Time
}

type Manager struct {
	factory    Factory
	cookieName string
	secure     bool
	idleTTL    time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewManager(factory Factory, cookieName string, secure bool, idleTTL time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		factory:    factory,
		cookieName: cookieName,
		secure:     secure,
		idleTTL:    idleTTL,
		logger:     logger.With("component", "session"),
		now:        time.Now,
		sessions:   make(map[string]*entry),
	}
}

type ctxKey struct{}

// FromContext returns the session attached by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}

// Middleware attaches the shopper's session to the request, starting one when the cookie
// is missing, malformed or expired.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(m.cookieName); err == nil {
			id = c.Value
		}
		s, created := m.acquire(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    s.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secure,
				SameSite: http.SameSiteLaxMode,
			})
			m.logger.DebugContext(r.Context(), "session started", "session_id", s.ID)
		}
		ctx := web.WithSessionID(r.Context(), s.ID)
		ctx = context.WithValue(ctx, ctxKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) acquire(id string) (*Session, bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := uuid.Parse(id); err == nil {
		if e, ok := m.sessions[id]; ok && now.Sub(e.lastSeen) < m.idleTTL {
			e.lastSeen = now
			return e.session, false
		}
	}
	id = uuid.NewString()
	s := m.factory(id)
	m.sessions[id] = &entry{session: s, lastSeen: now}
	return s, true
}

// Sweep drops sessions idle for longer than the TTL and returns how many were dropped.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) >= m.idleTTL {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired sessions dropped", "count", n)
			}
		}
	}
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
