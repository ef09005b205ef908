// Package session owns the bearer credential and the identity derived from it.
//
// The identity is read from the credential's claims without verifying the
// signature. It is a UI hint only: every privileged operation is authorized
// by the service, and a 401 from the service is the sole signal that the
// credential is no longer valid.
package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"dropnote/internal/auth"
)

type Identity struct {
	UserID string
	Email  string
}

// Session is a snapshot. Identity is nil when no credential is held or the
// credential's claims could not be read.
type Session struct {
	Credential string
	Identity   *Identity
}

func (s Session) Active() bool { return s.Credential != "" }

type Manager struct {
	store  CredentialStore
	logger logrus.FieldLogger

	mu        sync.RWMutex
	current   Session
	listeners []func(Session)
}

// NewManager restores any credential already persisted in store.
func NewManager(ctx context.Context, store CredentialStore, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if store == nil {
		store = NewMemoryStore("")
	}
	m := &Manager{store: store, logger: logger}

	credential, err := store.Load(ctx)
	if err != nil {
		logger.WithError(err).Warn("session: load persisted credential failed")
		return m
	}
	if credential != "" {
		m.current = m.derive(credential)
	}
	return m
}

func (m *Manager) derive(credential string) Session {
	userID, email, ok := auth.ReadClaims(credential)
	if !ok {
		m.logger.WithField("kind", "MalformedCredential").Debug("session: credential claims unreadable, identity unavailable")
		return Session{Credential: credential}
	}
	return Session{Credential: credential, Identity: &Identity{UserID: userID, Email: email}}
}

// SetSession stores credential and re-derives the identity. An empty
// credential is the same as ClearSession.
func (m *Manager) SetSession(ctx context.Context, credential string) Session {
	if credential == "" {
		m.ClearSession(ctx)
		return Session{}
	}

	if err := m.store.Save(ctx, credential); err != nil {
		m.logger.WithError(err).Warn("session: persist credential failed")
	}

	next := m.derive(credential)
	m.mu.Lock()
	m.current = next
	listeners := append([]func(Session){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

func (m *Manager) ClearSession(ctx context.Context) {
	if err := m.store.Delete(ctx); err != nil {
		m.logger.WithError(err).Warn("session: remove persisted credential failed")
	}

	m.mu.Lock()
	wasActive := m.current.Active()
	m.current = Session{}
	listeners := append([]func(Session){}, m.listeners...)
	m.mu.Unlock()

	if !wasActive {
		return
	}
	for _, fn := range listeners {
		fn(Session{})
	}
}

func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.current
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}

func (m *Manager) Credential() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Credential
}

// OnChange registers fn to run after every session transition.
func (m *Manager) OnChange(fn func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}
