package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps snapshots in process. Used when no Redis is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Snapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	s.mu.RLock()
	raw, ok := s.items[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return decodeSnapshot(raw)
}

func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	if err := prepareSave(snap); err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	s.mu.Lock()
	s.items[strings.TrimSpace(snap.SessionID)] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	delete(s.items, sessionID)
	s.mu.Unlock()
	return nil
}
