package store

import (
	"encoding/json"
	"sync"
	"time"

	"quizkeeper/internal/domain"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. Values are
// round-tripped through JSON so it mirrors the durable store's semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.values[key]
	return raw, ok
}

func (s *MemoryStore) put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) GetAllQuizzes() []domain.Quiz {
	raw, ok := s.get(keyQuizzes)
	if !ok {
		return []domain.Quiz{}
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil || quizzes == nil {
		return []domain.Quiz{}
	}
	return quizzes
}

func (s *MemoryStore) SaveQuizzes(quizzes []domain.Quiz) error {
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	raw, err := json.Marshal(quizzes)
	if err != nil {
		return err
	}
	return s.put(keyQuizzes, raw)
}

func (s *MemoryStore) CurrentUser() (domain.UserProfile, bool) {
	raw, ok := s.get(keyCurrentUser)
	if !ok {
		return domain.UserProfile{}, false
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.UserProfile{}, false
	}
	return profile, true
}

func (s *MemoryStore) SaveCurrentUser(profile domain.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.put(keyCurrentUser, raw)
}

func (s *MemoryStore) ClearCurrentUser() error { return s.delete(keyCurrentUser) }

func (s *MemoryStore) Language() string {
	raw, _ := s.get(keyLanguage)
	return string(raw)
}

func (s *MemoryStore) SaveLanguage(lang string) error { return s.put(keyLanguage, []byte(lang)) }

func (s *MemoryStore) LastResult() (domain.QuizResult, bool) {
	raw, ok := s.get(keyLastResult)
	if !ok {
		return domain.QuizResult{}, false
	}
	var result domain.QuizResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.QuizResult{}, false
	}
	return result, true
}

func (s *MemoryStore) SaveLastResult(result domain.QuizResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.put(keyLastResult, raw)
}

func (s *MemoryStore) LastSyncedAt() (time.Time, bool) {
	raw, ok := s.get(keyLastSynced)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *MemoryStore) SaveLastSyncedAt(t time.Time) error {
	return s.put(keyLastSynced, []byte(t.Format(time.RFC3339Nano)))
}

func (s *MemoryStore) Credentials() (string, time.Time, bool) {
	token, ok := s.get(keyToken)
	if !ok || len(token) == 0 {
		return "", time.Time{}, false
	}
	rawExpiry, ok := s.get(keyTokenExpiry)
	if !ok {
		return "", time.Time{}, false
	}
	var millis int64
	if err := json.Unmarshal(rawExpiry, &millis); err != nil {
		return "", time.Time{}, false
	}
	return string(token), time.UnixMilli(millis), true
}

func (s *MemoryStore) SaveCredentials(token string, expiry time.Time) error {
	if err := s.put(keyToken, []byte(token)); err != nil {
		return err
	}
	raw, _ := json.Marshal(expiry.UnixMilli())
	return s.put(keyTokenExpiry, raw)
}

func (s *MemoryStore) ClearCredentials() error {
	if err := s.delete(keyToken); err != nil {
		return err
	}
	return s.delete(keyTokenExpiry)
}

func (s *MemoryStore) Close() error { return nil }
