package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MarselBissengaliyev/x-backend/internal/browser"
	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// loginSession is a live browser page parked mid-login, waiting for a
// challenge answer or a second-factor code.
type loginSession struct {
	page      browser.Session
	pending   transfer.AccountCreation
	createdAt time.Time
}

// SessionStore keeps pending login sessions keyed by opaque single-use ids.
// Sessions that are never resumed are swept by the janitor after the TTL so
// an abandoned login does not hold a browser process forever.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*loginSession
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	s := &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*loginSession),
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Put parks a page and returns its new opaque id.
func (s *SessionStore) Put(page browser.Session, pending transfer.AccountCreation) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[id] = &loginSession{page: page, pending: pending, createdAt: time.Now()}
	s.mu.Unlock()
	return id, nil
}

// Get looks a session up without consuming it: a failed resume leaves the
// page parked for one more try. The lookup refreshes the TTL so the janitor
// cannot close a page out from under a resume in progress.
func (s *SessionStore) Get(id string) (*loginSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.createdAt = time.Now()
	}
	return sess, ok
}

// Discard removes the session and closes its page.
func (s *SessionStore) Discard(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		if err := sess.page.Close(); err != nil {
			slog.Info(err.Error())
		}
	}
}

// Release removes the session without closing the page; used when ownership
// of the page moves on (successful login persists cookies first).
func (s *SessionStore) Release(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*loginSession)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.page.Close()
	}
}

func (s *SessionStore) janitor() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *SessionStore) sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*loginSession
	for id, sess := range s.sessions {
		if sess.createdAt.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		slog.Info("expiring abandoned login session", "login", sess.pending.Login)
		sess.page.Close()
	}
}
