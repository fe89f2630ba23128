package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Cheertaboi/coupon-form-service/internal/form"
)

var (
	ErrNotFound = errors.New("form session not found")
	ErrClosed   = errors.New("form session closed")
)

const (
	ModeCreate = "create"
	ModeEdit   = "edit"
)

// Session owns one form controller and the goroutine that is its event loop.
// Every touch of the controller, including delivery of seat lookups, runs on
// that goroutine, so the controller needs no locking.
type Session struct {
	ID       string
	Mode     string
	CouponID int64

	ctrl *form.Controller
	ops  chan func()
	done chan struct{}
	once sync.Once
	log  *slog.Logger

	lastUsed atomic.Int64
}

func newSession(mode string, logger *slog.Logger, now time.Time) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:   id,
		Mode: mode,
		ops:  make(chan func(), 16),
		done: make(chan struct{}),
		log:  logger.With("session", id),
	}
	s.touch(now)
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case op := <-s.ops:
			s.run(op)
		case <-s.done:
			return
		}
	}
}

func (s *Session) run(op func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("form session operation panicked", "panic", r)
		}
	}()
	op()
}

// Dispatch queues fn on the event loop. It is dropped when the session has
// been closed. Dispatch must not be called from the loop itself.
func (s *Session) Dispatch(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// Do runs fn against the controller on the event loop and waits for it.
func (s *Session) Do(ctx context.Context, fn func(*form.Controller) error) error {
	result := make(chan error, 1)
	op := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("session %s: panic: %v", s.ID, r)
			}
		}()
		result <- fn(s.ctrl)
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-s.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State renders the form on the event loop.
func (s *Session) State(ctx context.Context) (form.State, error) {
	var st form.State
	err := s.Do(ctx, func(c *form.Controller) error {
		st = c.State()
		return nil
	})
	return st, err
}

// Close stops the event loop. Pending lookups are dropped.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

func (s *Session) idleSince() time.Time { return time.Unix(0, s.lastUsed.Load()) }
