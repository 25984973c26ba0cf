/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// namespace scopes the deterministic session ids of this service.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:satya:session"))

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// SessionID derives the id of the session bound to (address, scopeID).
func SessionID(address, scopeID string) string {
	return uuid.NewSHA1(namespace, []byte(address+"\x00"+scopeID)).String()
}

// Result is returned by GetOrCreateSession.
type Result struct {
	Session   model.SessionMetadata
	SessionID string
	IsNew     bool
}

// Manager keeps short lived sessions bound to (address, scope) pairs.
type Manager struct {
	mu            sync.Mutex
	sessions      map[string]*model.SessionMetadata
	ttl           time.Duration
	sweepInterval time.Duration
	tokenKey      []byte
	now           func() time.Time
	logger        *logrus.Logger
}

func NewManager(cfg config.SessionConfig) (*Manager, error) {
	cfg.ApplyDefaults()

	key := []byte(cfg.TokenSecret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session token key: %w", err)
		}
		cfg.Logger.Warn("no session token secret configured, using an ephemeral key")
	}

	return &Manager{
		sessions:      make(map[string]*model.SessionMetadata),
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		tokenKey:      key,
		now:           time.Now,
		logger:        cfg.Logger,
	}, nil
}

// GetOrCreateSession returns the valid cached session for (address, scopeID)
// or creates a new one. ttl <= 0 selects the configured default.
func (m *Manager) GetOrCreateSession(address, scopeID string, ttl time.Duration) Result {
	if ttl <= 0 {
		ttl = m.ttl
	}
	id := SessionID(address, scopeID)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.Valid(now) {
		s.LastUsed = now
		s.UsageCount++
		return Result{Session: *s, SessionID: id}
	}

	s := &model.SessionMetadata{
		SessionID:  id,
		Address:    address,
		ScopeID:    scopeID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastUsed:   now,
		UsageCount: 1,
		IsActive:   true,
	}
	m.sessions[id] = s
	m.logger.WithFields(logrus.Fields{
		"session_id": id,
		"scope":      scopeID,
	}).Debug("session created")
	return Result{Session: *s, SessionID: id, IsNew: true}
}

// Session returns a copy of the session if it is currently valid.
func (m *Manager) Session(sessionID string) (model.SessionMetadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return model.SessionMetadata{}, false
	}
	if !s.Valid(m.now()) {
		delete(m.sessions, sessionID)
		return model.SessionMetadata{}, false
	}
	return *s, true
}

// RefreshSession extends a currently valid session by extra.
func (m *Manager) RefreshSession(sessionID string, extra time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || !s.Valid(m.now()) {
		return false
	}
	s.ExpiresAt = s.ExpiresAt.Add(extra)
	return true
}

// InvalidateSession deactivates and forgets the session.
func (m *Manager) InvalidateSession(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	s.IsActive = false
	delete(m.sessions, sessionID)
	return true
}

// CleanupExpiredSessions removes every expired or inactive session and
// returns how many were removed.
func (m *Manager) CleanupExpiredSessions() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if !s.Valid(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions held, valid or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps expired sessions every sweep interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupExpiredSessions(); n > 0 {
				m.logger.WithField("removed", n).Debug("expired sessions swept")
			}
		}
	}
}

// Export encodes the durable fields of a session as CBOR.
func (m *Manager) Export(sessionID string) ([]byte, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	var snapshot model.SessionMetadata
	if ok {
		snapshot = *s
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	b, err := encMode.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return b, nil
}

// Import restores an exported session. The session id is derived again
// from its address and scope; sessions that are no longer valid are rejected.
func (m *Manager) Import(raw []byte) (model.SessionMetadata, error) {
	var s model.SessionMetadata
	if err := cbor.Unmarshal(raw, &s); err != nil {
		return model.SessionMetadata{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if s.Address == "" {
		return model.SessionMetadata{}, fmt.Errorf("%w: missing address", ErrInvalidSession)
	}
	s.SessionID = SessionID(s.Address, s.ScopeID)
	if !s.Valid(m.now()) {
		return model.SessionMetadata{}, ErrSessionInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := s
	m.sessions[s.SessionID] = &stored
	return s, nil
}
