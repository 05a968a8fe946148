package syncer

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"quizkeeper/internal/domain"
)

func quizAt(id uuid.UUID, title string, modified time.Time) domain.Quiz {
	return domain.Quiz{
		ID:           id,
		Title:        title,
		CreatedAt:    modified.Add(-time.Hour),
		LastModified: modified,
	}
}

func TestMergeQuizzesNewerWins(t *testing.T) {
	id := uuid.New()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	older := quizAt(id, "old title", t0)
	newer := quizAt(id, "new title", t0.Add(time.Minute))

	merged := MergeQuizzes([]domain.Quiz{older}, []domain.Quiz{newer})
	if len(merged) != 1 {
		t.Fatalf("expected 1 quiz, got %d", len(merged))
	}
	if merged[0].Title != "new title" {
		t.Fatalf("expected newer copy to win, got %q", merged[0].Title)
	}

	// Same outcome regardless of argument order.
	merged = MergeQuizzes([]domain.Quiz{newer}, []domain.Quiz{older})
	if merged[0].Title != "new title" {
		t.Fatalf("expected newer copy to win after swap, got %q", merged[0].Title)
	}
}

func TestMergeQuizzesUnionsDistinctIDs(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	a := quizAt(uuid.New(), "a", t0)
	b := quizAt(uuid.New(), "b", t0)

	merged := MergeQuizzes([]domain.Quiz{a}, []domain.Quiz{b})
	if len(merged) != 2 {
		t.Fatalf("expected union of 2, got %d", len(merged))
	}
}

func TestMergeQuizzesTieKeepsFirstArgument(t *testing.T) {
	id := uuid.New()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	local := quizAt(id, "local", t0)
	remote := quizAt(id, "remote", t0)

	merged := MergeQuizzes([]domain.Quiz{local}, []domain.Quiz{remote})
	if merged[0].Title != "local" {
		t.Fatalf("expected tie to keep first argument, got %q", merged[0].Title)
	}
}

func TestMergeQuizzesIdempotent(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	quizzes := []domain.Quiz{
		quizAt(uuid.New(), "a", t0),
		quizAt(uuid.New(), "b", t0.Add(time.Minute)),
	}
	once := MergeQuizzes(quizzes, quizzes)
	twice := MergeQuizzes(once, quizzes)
	if len(once) != 2 || len(twice) != 2 {
		t.Fatalf("expected merge to be idempotent, got %d then %d", len(once), len(twice))
	}
}

func TestMergeQuizzesFallsBackToCreatedAt(t *testing.T) {
	id := uuid.New()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	legacy := domain.Quiz{ID: id, Title: "legacy", CreatedAt: t0}
	edited := quizAt(id, "edited", t0.Add(time.Minute))

	merged := MergeQuizzes([]domain.Quiz{legacy}, []domain.Quiz{edited})
	if merged[0].Title != "edited" {
		t.Fatalf("expected edited copy to beat legacy CreatedAt, got %q", merged[0].Title)
	}
}
