package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Cheertaboi/coupon-form-service/internal/form"
	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// Observer is told when sessions open and close.
type Observer interface {
	SessionOpened()
	SessionClosed()
}

// Manager is the registry of open form sessions.
type Manager struct {
	opts     form.Options
	ttl      time.Duration
	observer Observer
	log      *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a registry whose sessions are built from opts. opts.Loop
// is ignored: each session is its own loop.
func NewManager(opts form.Options, ttl time.Duration, observer Observer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		opts:     opts,
		ttl:      ttl,
		observer: observer,
		log:      logger.With("component", "sessions"),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// OpenCreate starts a session for a new coupon.
func (m *Manager) OpenCreate(ctx context.Context) (*Session, error) {
	return m.open(ctx, ModeCreate, 0, func(opts form.Options) (*form.Controller, error) {
		return form.NewCreate(opts)
	})
}

// OpenEdit starts a session seeded from a persisted coupon.
func (m *Manager) OpenEdit(ctx context.Context, coupon models.Coupon) (*Session, error) {
	return m.open(ctx, ModeEdit, coupon.ID, func(opts form.Options) (*form.Controller, error) {
		return form.NewEdit(coupon.Record(), opts)
	})
}

func (m *Manager) open(ctx context.Context, mode string, couponID int64, build func(form.Options) (*form.Controller, error)) (*Session, error) {
	s := newSession(mode, m.log, m.now())
	s.CouponID = couponID

	opts := m.opts
	opts.Loop = s
	opts.Logger = s.log

	// The controller is built on the loop: construction writes defaults and
	// may start lookups that report back through Dispatch.
	err := s.Do(ctx, func(*form.Controller) error {
		ctrl, err := build(opts)
		if err != nil {
			return err
		}
		s.ctrl = ctrl
		return nil
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open %s session: %w", mode, err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if m.observer != nil {
		m.observer.SessionOpened()
	}
	m.log.Info("form session opened", "session", s.ID, "mode", mode, "coupon_id", couponID)
	return s, nil
}

// Get returns an open session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.touch(m.now())
	return s, nil
}

// Discard closes and forgets a session.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.close(s, "discarded")
	return nil
}

func (m *Manager) close(s *Session, reason string) {
	s.Close()
	if m.observer != nil {
		m.observer.SessionClosed()
	}
	m.log.Info("form session closed", "session", s.ID, "reason", reason)
}

// Len reports how many sessions are open.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.close(s, "expired")
	}
	return len(expired)
}

// Run sweeps every interval until ctx ends, then closes all sessions.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug("expired form sessions swept", "count", n)
			}
		case <-ctx.Done():
			m.CloseAll()
			return
		}
	}
}

// CloseAll closes every open session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		m.close(s, "shutdown")
	}
}
