package memory

import (
	"context"
	"sync"
	"time"
)

// TokenStore tracks live session tokens in memory with lazy expiry.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	clock  func() time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]time.Time), clock: time.Now}
}

// NewTokenStoreWithClock is test-only for deterministic expiry.
func NewTokenStoreWithClock(now func() time.Time) *TokenStore {
	s := NewTokenStore()
	s.clock = now
	return s
}

func (s *TokenStore) Mark(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenID] = s.clock().Add(ttl)
	return nil
}

func (s *TokenStore) Alive(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.tokens[tokenID]
	if !ok {
		return false, nil
	}
	if !s.clock().Before(deadline) {
		delete(s.tokens, tokenID)
		return false, nil
	}
	return true, nil
}

func (s *TokenStore) Revoke(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tokenID)
	return nil
}
