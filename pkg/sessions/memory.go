package sessions

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryStore keeps sessions in process memory. Values are copied in and out
// so callers never share a record.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Session{}}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	cp := *s
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	m.byID[cp.ID] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.byID, id)
	m.mu.Unlock()
	return nil
}

// SeedFromJSON loads dev sessions, e.g. SESSION_SEED_JSON:
//
//	[{"id":"dev","accessToken":"...","refreshToken":"..."}]
//
// Entries without an id get a random one, which is logged so it can be set as a cookie.
func (m *MemoryStore) SeedFromJSON(ctx context.Context, seed string, log *zap.SugaredLogger) error {
	if seed == "" {
		return nil
	}
	var entries []Session
	if err := json.Unmarshal([]byte(seed), &entries); err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		_ = m.Save(ctx, &entries[i])
		log.Infow("seeded dev session", "id", entries[i].ID)
	}
	return nil
}
