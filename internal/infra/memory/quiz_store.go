// Package memory provides in-process repository implementations, used as the
// default wiring when no external stores are configured and as fakes in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"quizkeeper/internal/domain"
)

// QuizStore keeps quizzes in a mutex-guarded map.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[uuid.UUID]domain.Quiz
}

func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[uuid.UUID]domain.Quiz)}
}

func (s *QuizStore) ListByUser(_ context.Context, userID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0)
	for _, q := range s.quizzes {
		if q.UserID == userID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *QuizStore) Get(_ context.Context, id uuid.UUID) (domain.Quiz, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[id]
	return q, ok, nil
}

func (s *QuizStore) Upsert(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *QuizStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return false, nil
	}
	delete(s.quizzes, id)
	return true, nil
}
