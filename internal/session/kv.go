/*
Package session keeps per-session DropCheck state: the user profile, the
test history and cached recommendation bundles.

State is held under three fixed keys per session and JSON encoded, so any
key-value backend that implements KV can store it.
*/
package session

import (
	"context"
	"strconv"
	"sync"
)

// Fixed storage keys.
const (
	KeyUserProfile     = "userProfile"
	KeyTestHistory     = "testHistory"
	KeyRecommendations = "recommendations"
)

// Keys lists every key a session may hold.
var Keys = []string{KeyUserProfile, KeyTestHistory, KeyRecommendations}

// KV is the storage backend behind State.
type KV interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Put(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
}

// MemoryKV is an in-process KV used when no database is configured.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[sessionID][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryKV) Put(ctx context.Context, sessionID, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.data[sessionID]
	if !ok {
		s = make(map[string][]byte)
		m.data[sessionID] = s
	}
	v := make([]byte, len(value))
	copy(v, value)
	s[key] = v
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, sessionID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.data[sessionID]; ok {
		delete(s, key)
		if len(s) == 0 {
			delete(m.data, sessionID)
		}
	}
	return nil
}

// Health reports the memory backend status in the same shape as the
// database service.
func (m *MemoryKV) Health() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]string{
		"status":   "up",
		"backend":  "memory",
		"sessions": strconv.Itoa(len(m.data)),
	}
}
