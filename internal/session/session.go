package session

import (
	"errors"
	"sync"
	"time"
)

var ErrNoSession = errors.New("not logged in")

// Session is an upstream-issued session id plus the username that obtained it.
type Session struct {
	ID       string
	Username string
	IssuedAt time.Time
}

// Holder keeps the single most recent session. A new login replaces whatever
// was held before; there is no per-user isolation.
type Holder struct {
	mu      sync.RWMutex
	current *Session
}

func NewHolder() *Holder {
	return &Holder{}
}

// Set stores s unless its id is empty.
func (h *Holder) Set(s Session) {
	if s.ID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &s
}

// Current returns the held session, if any.
func (h *Holder) Current() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return Session{}, false
	}
	return *h.current, true
}

// Resolve picks the session id for a request: an explicit id first, then the
// id carried by a bearer token, then the held session.
func (h *Holder) Resolve(explicit, fromToken string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if fromToken != "" {
		return fromToken, nil
	}
	if s, ok := h.Current(); ok {
		return s.ID, nil
	}
	return "", ErrNoSession
}
