package pollconfig

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node
// development.
type MemoryStore struct {
	mu      sync.Mutex
	configs map[string]Config
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]Config)}
}

func (s *MemoryStore) Get(_ context.Context, orgID string) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.configs[orgID]; ok {
		return cfg, nil
	}
	return Default(orgID), nil
}

func (s *MemoryStore) Set(_ context.Context, orgID string, upd Update) (Config, error) {
	if err := upd.Validate(); err != nil {
		return Config{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[orgID]
	if !ok {
		cfg = Default(orgID)
	}
	if upd.Timezone != nil {
		cfg.Timezone = *upd.Timezone
	}
	if upd.EmergencyOverride != nil {
		cfg.EmergencyOverride = *upd.EmergencyOverride
	}
	cfg.UpdatedAt = time.Now().UTC()
	s.configs[orgID] = cfg
	return cfg, nil
}

func (s *MemoryStore) Backfill(_ context.Context, orgIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, orgID := range orgIDs {
		if orgID == "" {
			continue
		}
		if _, ok := s.configs[orgID]; ok {
			continue
		}
		cfg := Default(orgID)
		cfg.UpdatedAt = time.Now().UTC()
		s.configs[orgID] = cfg
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) AnyEmergencyActive(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cfg := range s.configs {
		if cfg.EmergencyOverride {
			return true, nil
		}
	}
	return false, nil
}
