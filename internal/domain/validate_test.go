package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func TestValidateQuizRejectsMalformed(t *testing.T) {
	base := Quiz{
		ID:    uuid.New(),
		Title: "basics",
		Questions: []Question{
			{ID: "q1", Text: "pick one", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		},
	}
	if err := ValidateQuiz(base); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}

	empty := base
	empty.Questions = nil
	if err := ValidateQuiz(empty); err == nil {
		t.Fatalf("expected error for quiz without questions")
	}

	oneOption := base
	oneOption.Questions = []Question{{ID: "q1", Text: "pick", Options: []string{"a"}, CorrectAnswer: "a"}}
	if err := ValidateQuiz(oneOption); err == nil {
		t.Fatalf("expected error for single option")
	}

	dup := base
	dup.Questions = []Question{{ID: "q1", Text: "pick", Options: []string{"a", "a"}, CorrectAnswer: "a"}}
	if err := ValidateQuiz(dup); err == nil {
		t.Fatalf("expected error for duplicate options")
	}

	stray := base
	stray.Questions = []Question{{ID: "q1", Text: "pick", Options: []string{"a", "b"}, CorrectAnswer: "c"}}
	if err := ValidateQuiz(stray); err == nil {
		t.Fatalf("expected error for correct answer outside options")
	}
}

func TestComputeScore(t *testing.T) {
	quiz := Quiz{
		Questions: []Question{
			{ID: "q1", Text: "t", Options: []string{"a", "b"}, CorrectAnswer: "a"},
			{ID: "q2", Text: "t", Options: []string{"a", "b"}, CorrectAnswer: "b"},
			{ID: "q3", Text: "t", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		},
	}
	answers := []UserAnswer{
		{QuestionID: "q1", Answer: " a "}, // trimmed before comparison
		{QuestionID: "q2", Answer: "B"},   // case matters
		{QuestionID: "q3", Answer: ""},
	}
	score, correct := ComputeScore(quiz, answers)
	if correct != 1 {
		t.Fatalf("expected 1 correct, got %d", correct)
	}
	if score != 33.33 {
		t.Fatalf("expected score 33.33, got %v", score)
	}
}

func TestComputeScoreEmptyQuiz(t *testing.T) {
	score, correct := ComputeScore(Quiz{}, nil)
	if score != 0 || correct != 0 {
		t.Fatalf("expected zero score for empty quiz, got %v/%d", score, correct)
	}
}

func TestModTimeFallsBackToCreatedAt(t *testing.T) {
	q := Quiz{CreatedAt: mustTime(t, "2025-06-01T10:00:00Z")}
	if !q.ModTime().Equal(q.CreatedAt) {
		t.Fatalf("expected ModTime to fall back to CreatedAt")
	}
	q.LastModified = mustTime(t, "2025-06-02T10:00:00Z")
	if !q.ModTime().Equal(q.LastModified) {
		t.Fatalf("expected ModTime to prefer LastModified")
	}
}
