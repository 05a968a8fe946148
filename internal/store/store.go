// Package store is the durable on-device key-value store for the quiz
// collection and session state. Reads fail soft: a missing or undecodable
// value comes back as the zero value so a corrupt store never crashes the app.
package store

import (
	"time"

	"quizkeeper/internal/domain"
)

// Fixed keys for the string-keyed JSON blobs.
const (
	keyQuizzes     = "quizzes"
	keyCurrentUser = "currentUser"
	keyLanguage    = "language"
	keyLastResult  = "lastResult"
	keyLastSynced  = "lastSyncedAt"
	keyToken       = "accessToken"
	keyTokenExpiry = "accessTokenExpiry"
)

// Store abstracts the local persistence layer. Every write is immediately
// durable from the caller's perspective; SaveQuizzes is a full overwrite.
type Store interface {
	GetAllQuizzes() []domain.Quiz
	SaveQuizzes(quizzes []domain.Quiz) error

	CurrentUser() (domain.UserProfile, bool)
	SaveCurrentUser(profile domain.UserProfile) error
	ClearCurrentUser() error

	Language() string
	SaveLanguage(lang string) error

	LastResult() (domain.QuizResult, bool)
	SaveLastResult(result domain.QuizResult) error

	LastSyncedAt() (time.Time, bool)
	SaveLastSyncedAt(t time.Time) error

	Credentials() (token string, expiry time.Time, ok bool)
	SaveCredentials(token string, expiry time.Time) error
	ClearCredentials() error

	Close() error
}
