package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// idAttempts bounds how often a generated ID may collide before Create gives up
const idAttempts = 16

// Manager holds the matches of a server
type Manager struct {
	sessions map[string]*service.Session
	now      func() time.Time
	mu       sync.RWMutex
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*service.Session),
		now:      time.Now,
	}
}

// Create builds a match for spec under id. An empty id gets a random 4-character one.
func (m *Manager) Create(id string, spec service.MatchSpec) (*service.Session, error) {
	if strings.ContainsAny(id, " /\\") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	if spec.Rules == nil {
		return nil, fmt.Errorf("no rules for session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		err := engine.TryRepeat(idAttempts, func() bool {
			id = m.generateSessionID()
			return !m.sessionExists(id)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate session ID: %w", err)
		}
	} else if m.sessionExists(id) {
		// Check if session already exists (case-insensitive)
		return nil, ErrSessionAlreadyExists
	}

	opts := append([]engine.Option{
		engine.WithID(id),
		engine.WithRules(spec.Rules),
	}, spec.Options...)

	now := m.now()
	session := &service.Session{
		ID:             id,
		Match:          engine.NewMatch(opts...),
		RulesID:        spec.RulesID,
		Player:         spec.Player,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	m.sessions[strings.ToLower(id)] = session
	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// List returns all sessions, oldest first
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	sortSessions(result)
	return result
}

// Delete closes and removes a session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	if exists {
		delete(m.sessions, strings.ToLower(id))
	}
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	session.Match.Close()
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}

	session.LastAccessedAt = m.now()
	return nil
}

// CleanupExpiredSessions closes and removes sessions that haven't been accessed in the given duration
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	cutoff := m.now().Add(-maxAge)
	var expired []*service.Session

	for id, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, session)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.Match.Close()
	}
	return len(expired)
}

// RunCleanup removes expired sessions every interval until ctx is done
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.CleanupExpiredSessions(maxAge); removed > 0 {
				log.WithField("removed", removed).Info("expired sessions cleaned up")
			}
		}
	}
}

// CloseAll closes and removes every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*service.Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Match.Close()
	}
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	// Generate 2 random bytes (4 hex characters)
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists must be called with m.mu held
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

func sortSessions(sessions []*service.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
}
