package backup

import (
	"context"
	"sync"

	"quizkeeper/internal/domain"
)

// MemoryBackup is an in-memory Backup keyed by access token (tests/demos).
type MemoryBackup struct {
	mu        sync.Mutex
	snapshots map[string][]domain.Quiz
	SaveCalls int
	LoadCalls int
	// FailWith, when set, is returned by every call.
	FailWith error
}

func NewMemoryBackup() *MemoryBackup {
	return &MemoryBackup{snapshots: make(map[string][]domain.Quiz)}
}

func (b *MemoryBackup) Load(_ context.Context, accessToken string) ([]domain.Quiz, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LoadCalls++
	if b.FailWith != nil {
		return nil, b.FailWith
	}
	snapshot, ok := b.snapshots[accessToken]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Quiz, len(snapshot))
	copy(out, snapshot)
	return out, nil
}

func (b *MemoryBackup) Save(_ context.Context, accessToken string, quizzes []domain.Quiz) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SaveCalls++
	if b.FailWith != nil {
		return b.FailWith
	}
	snapshot := make([]domain.Quiz, len(quizzes))
	copy(snapshot, quizzes)
	b.snapshots[accessToken] = snapshot
	return nil
}

// Seed pre-populates a snapshot for a token.
func (b *MemoryBackup) Seed(accessToken string, quizzes []domain.Quiz) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make([]domain.Quiz, len(quizzes))
	copy(snapshot, quizzes)
	b.snapshots[accessToken] = snapshot
}
