package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
)

// Memory is the in-process registry. Sessions are deep-copied on the way in
// and out so concurrent turns never share mutable state.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemory creates an empty in-process registry.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*domain.Session)}
}

func (m *Memory) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return errDuplicate(s.ID)
	}
	copied, err := copySession(s)
	if err != nil {
		return err
	}
	m.sessions[s.ID] = copied
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errUnknown(id)
	}
	return copySession(s)
}

func (m *Memory) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; !exists {
		return errUnknown(s.ID)
	}
	copied, err := copySession(s)
	if err != nil {
		return err
	}
	m.sessions[s.ID] = copied
	return nil
}

func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions), nil
}

// copySession round-trips through JSON, the same representation the Redis
// registry uses. Cheap at session sizes and keeps both stores behaviorally
// identical.
func copySession(s *domain.Session) (*domain.Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode session", err)
	}
	var copied domain.Session
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "decode session", err)
	}
	if copied.Fields == nil {
		copied.Fields = make(map[string]string)
	}
	if copied.Attempts == nil {
		copied.Attempts = make(map[string]int)
	}
	return &copied, nil
}

var _ Registry = (*Memory)(nil)
