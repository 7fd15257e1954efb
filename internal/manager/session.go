package manager

import (
	"context"
	"sync"
	"time"
)

// Session is an exclusive lease over the registry. Pipeline jobs run all of
// their acquire/infer/evict steps inside one session so that stages of
// different jobs never interleave.
type Session struct {
	m       *Manager
	mu      sync.Mutex
	closed  bool
	release func()
}

// Session waits for the registry lease. At most MaxQueueDepth callers wait;
// further callers, and callers still waiting after MaxWait, get a too-busy
// error. Waiters are admitted in arrival order.
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	if m.isClosed() {
		return nil, ErrClosed
	}
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Reserve a queue slot without blocking; a full queue is overflow.
	select {
	case m.queueCh <- struct{}{}:
	default:
		return nil, tooBusyError{reason: "queue full"}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case m.leaseCh <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, tooBusyError{reason: "queue wait timeout"}
	}
	if m.isClosed() {
		<-m.leaseCh
		return nil, ErrClosed
	}
	acquired = true
	return &Session{m: m, release: func() { <-m.leaseCh; <-m.queueCh }}, nil
}

// Unload evicts every resident model once the registry lease is free. It waits
// behind open sessions and fails with a too-busy error like Session does.
func (m *Manager) Unload(ctx context.Context) error {
	s, err := m.Session(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.EvictAll()
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// Acquire is Manager.Acquire within the session.
func (s *Session) Acquire(ctx context.Context, kind Kind, variant string) (Handle, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.m.Acquire(ctx, kind, variant)
}

// Evict is Manager.Evict within the session.
func (s *Session) Evict(kind Kind) error {
	if err := s.check(); err != nil {
		return err
	}
	s.m.Evict(kind)
	return nil
}

// EvictAll is Manager.EvictAll within the session.
func (s *Session) EvictAll() error {
	if err := s.check(); err != nil {
		return err
	}
	s.m.EvictAll()
	return nil
}

// Close releases the lease. Handles obtained through the session must not be
// used afterwards. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.release()
	return nil
}
