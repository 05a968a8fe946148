package memory

import (
	"context"
	"sync"

	"quizkeeper/internal/domain"
)

// UserStore keeps profiles in memory. Profile IDs are the identity provider
// subjects, so the two lookups share one map.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.UserProfile
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.UserProfile)}
}

func (s *UserStore) GetBySubject(ctx context.Context, subject string) (domain.UserProfile, bool, error) {
	return s.Get(ctx, subject)
}

func (s *UserStore) Get(_ context.Context, id string) (domain.UserProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[id]
	return p, ok, nil
}

func (s *UserStore) Upsert(_ context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[profile.ID] = profile
	return nil
}
