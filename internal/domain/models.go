package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttemptMode distinguishes a graded run-through from a per-question practice run.
type AttemptMode string

const (
	ModeTake     AttemptMode = "take"
	ModePractice AttemptMode = "practice"
)

// QuizConfig carries per-quiz attempt settings.
type QuizConfig struct {
	TimeLimitSec     int  `json:"timeLimitSec,omitempty"` // 0 means no countdown
	ShuffleQuestions bool `json:"shuffleQuestions,omitempty"`
	ShuffleOptions   bool `json:"shuffleOptions,omitempty"`
}

// Quiz is a user-owned collection of questions. ID is immutable once created;
// LastModified must be bumped on every mutation and is the sole tie-breaker
// when two copies of the same quiz are merged.
type Quiz struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Questions     []Question `json:"questions"`
	Config        QuizConfig `json:"config"`
	UserID        string     `json:"userId,omitempty"` // empty for local-only quizzes created before sign-in
	CreatedAt     time.Time  `json:"createdAt"`
	LastModified  time.Time  `json:"lastModified"`
	SourceSnippet string     `json:"sourceContentSnippet,omitempty"`
	IsShared      bool       `json:"isShared,omitempty"`
	SharedAt      *time.Time `json:"sharedTimestamp,omitempty"`
}

// ModTime returns the timestamp used for merge comparisons, falling back to
// CreatedAt for records written before LastModified existed.
func (q Quiz) ModTime() time.Time {
	if q.LastModified.IsZero() {
		return q.CreatedAt
	}
	return q.LastModified
}

// Question models an MCQ question with exactly one correct option.
// Immutable after quiz creation except through a full quiz update.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"questionText"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// UserProfile is the authenticated identity. AccessToken is session state
// only and is never serialized with the profile.
type UserProfile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Bio             string   `json:"bio,omitempty"`
	QuizCount       int      `json:"quizCount"`
	CompletionCount int      `json:"completionCount"`
	AverageScore    *float64 `json:"averageScore,omitempty"`
	AccessToken     string   `json:"-"`
}

// UserAnswer records what a user picked for one question.
// An empty Answer means the question was left unanswered.
type UserAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// QuizResult is the immutable outcome of one completed attempt.
type QuizResult struct {
	QuizID         uuid.UUID    `json:"quizId"`
	UserID         string       `json:"userId,omitempty"`
	Score          float64      `json:"score"` // 0-100, two decimal places
	Answers        []UserAnswer `json:"answers"`
	TotalCorrect   int          `json:"totalCorrect"`
	TotalQuestions int          `json:"totalQuestions"`
	TimeTakenSec   int          `json:"timeTaken,omitempty"`
	SourceMode     AttemptMode  `json:"sourceMode"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// IdentityAssertion is the normalized identity returned by a third-party
// sign-in provider, exchanged with the backend for a session.
type IdentityAssertion struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"picture,omitempty"`
}

// ProfilePatch is a partial profile update; nil fields are left untouched.
type ProfilePatch struct {
	Name     *string `json:"name,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// SyncState reflects the reconciliation engine's current background-push
// status. It is process-wide, transient and reset to idle on sign-out.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncSyncing
	SyncSuccess
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncSyncing:
		return "syncing"
	case SyncSuccess:
		return "success"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}
