// Package app holds the backend's use cases behind consumer-side interfaces
// so the HTTP transport stays thin and infra adapters stay swappable.
package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"quizkeeper/internal/domain"
)

// QuizRepository persists user quiz collections.
type QuizRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Quiz, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Quiz, bool, error)
	Upsert(ctx context.Context, quiz domain.Quiz) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// ResultRepository appends immutable attempt outcomes.
type ResultRepository interface {
	Append(ctx context.Context, result domain.QuizResult) error
	ListByUser(ctx context.Context, userID string) ([]domain.QuizResult, error)
}

// UserRepository persists profiles keyed by the identity provider subject.
type UserRepository interface {
	GetBySubject(ctx context.Context, subject string) (domain.UserProfile, bool, error)
	Get(ctx context.Context, id string) (domain.UserProfile, bool, error)
	Upsert(ctx context.Context, profile domain.UserProfile) error
}

// TokenStore tracks which issued tokens are still live, so logout can revoke
// a session before its expiry.
type TokenStore interface {
	Mark(ctx context.Context, tokenID string, ttl time.Duration) error
	Alive(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
}

// Notifier fans out collection-change events to connected clients.
type Notifier interface {
	CollectionChanged(userID string)
}

type noopNotifier struct{}

func (noopNotifier) CollectionChanged(string) {}

// Service is the backend application layer: session issuance, quiz CRUD with
// ownership enforcement, result history and shared-quiz lookup.
type Service struct {
	quizzes  QuizRepository
	results  ResultRepository
	users    UserRepository
	tokens   TokenStore
	issuer   *TokenIssuer
	notifier Notifier
	clock    func() time.Time
}

func NewService(quizzes QuizRepository, results ResultRepository, users UserRepository, tokens TokenStore, issuer *TokenIssuer) *Service {
	return &Service{
		quizzes:  quizzes,
		results:  results,
		users:    users,
		tokens:   tokens,
		issuer:   issuer,
		notifier: noopNotifier{},
		clock:    time.Now,
	}
}

// NewServiceWithClock is test-only for deterministic timestamps.
func NewServiceWithClock(quizzes QuizRepository, results ResultRepository, users UserRepository, tokens TokenStore, issuer *TokenIssuer, now func() time.Time) *Service {
	s := NewService(quizzes, results, users, tokens, issuer)
	s.clock = now
	return s
}

// SetNotifier attaches the websocket hub once the transport is built.
func (s *Service) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// Login finds or creates the profile for a verified identity assertion and
// issues a session token for it.
func (s *Service) Login(ctx context.Context, assertion domain.IdentityAssertion) (domain.UserProfile, string, time.Time, error) {
	if assertion.Subject == "" || assertion.Email == "" {
		return domain.UserProfile{}, "", time.Time{}, fmt.Errorf("incomplete identity assertion")
	}

	profile, ok, err := s.users.GetBySubject(ctx, assertion.Subject)
	if err != nil {
		return domain.UserProfile{}, "", time.Time{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		profile = domain.UserProfile{
			ID:       assertion.Subject,
			Name:     assertion.Name,
			Email:    assertion.Email,
			ImageURL: assertion.ImageURL,
		}
		if err := s.users.Upsert(ctx, profile); err != nil {
			return domain.UserProfile{}, "", time.Time{}, fmt.Errorf("create user: %w", err)
		}
	}

	token, tokenID, expiry, err := s.issuer.Issue(profile.ID)
	if err != nil {
		return domain.UserProfile{}, "", time.Time{}, fmt.Errorf("issue token: %w", err)
	}
	if err := s.tokens.Mark(ctx, tokenID, expiry.Sub(s.clock())); err != nil {
		return domain.UserProfile{}, "", time.Time{}, fmt.Errorf("mark token: %w", err)
	}
	return profile, token, expiry, nil
}

// Authenticate resolves a bearer token to its user, rejecting expired,
// malformed and revoked tokens alike.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.UserProfile, string, error) {
	userID, tokenID, err := s.issuer.Verify(token)
	if err != nil {
		return domain.UserProfile{}, "", err
	}
	alive, err := s.tokens.Alive(ctx, tokenID)
	if err != nil {
		return domain.UserProfile{}, "", fmt.Errorf("check token: %w", err)
	}
	if !alive {
		return domain.UserProfile{}, "", domain.ErrTokenRevoked
	}
	profile, ok, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.UserProfile{}, "", domain.ErrNotSignedIn
	}
	return profile, tokenID, nil
}

// Logout revokes the session token; further requests with it fail.
func (s *Service) Logout(ctx context.Context, tokenID string) error {
	return s.tokens.Revoke(ctx, tokenID)
}

// UserQuizzes lists the caller's collection. Callers may only read their own.
func (s *Service) UserQuizzes(ctx context.Context, callerID, userID string) ([]domain.Quiz, error) {
	if callerID != userID {
		return nil, domain.ErrNotQuizOwner
	}
	return s.quizzes.ListByUser(ctx, userID)
}

// CreateQuiz validates and stores a new quiz under the caller.
func (s *Service) CreateQuiz(ctx context.Context, callerID string, quiz domain.Quiz) (domain.Quiz, error) {
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Quiz{}, err
	}
	if quiz.ID == uuid.Nil {
		quiz.ID = uuid.New()
	}
	quiz.UserID = callerID
	now := s.clock()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	if quiz.LastModified.IsZero() {
		quiz.LastModified = now
	}
	if err := s.quizzes.Upsert(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("store quiz: %w", err)
	}
	s.notifier.CollectionChanged(callerID)
	return quiz, nil
}

// UpdateQuiz replaces a stored quiz wholesale after an ownership check.
// Identity and creation time never change through an update.
func (s *Service) UpdateQuiz(ctx context.Context, callerID string, quiz domain.Quiz) (domain.Quiz, error) {
	existing, ok, err := s.quizzes.Get(ctx, quiz.ID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if existing.UserID != callerID {
		return domain.Quiz{}, domain.ErrNotQuizOwner
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return domain.Quiz{}, err
	}

	quiz.UserID = existing.UserID
	quiz.CreatedAt = existing.CreatedAt
	if quiz.LastModified.IsZero() {
		quiz.LastModified = s.clock()
	}
	if err := s.quizzes.Upsert(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("store quiz: %w", err)
	}
	s.notifier.CollectionChanged(callerID)
	return quiz, nil
}

// DeleteQuiz removes the caller's quiz. Deleting a quiz that is already gone
// is not an error for the caller's sync loop, so it maps to ErrQuizNotFound
// and the transport reports 404.
func (s *Service) DeleteQuiz(ctx context.Context, callerID string, id uuid.UUID) error {
	existing, ok, err := s.quizzes.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load quiz: %w", err)
	}
	if !ok {
		return domain.ErrQuizNotFound
	}
	if existing.UserID != callerID {
		return domain.ErrNotQuizOwner
	}
	if _, err := s.quizzes.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.notifier.CollectionChanged(callerID)
	return nil
}

// SharedQuiz returns a quiz by ID only when its owner has shared it.
func (s *Service) SharedQuiz(ctx context.Context, id uuid.UUID) (domain.Quiz, error) {
	quiz, ok, err := s.quizzes.Get(ctx, id)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if !ok || !quiz.IsShared {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

// RecordResult appends an attempt outcome and folds it into the owner's
// completion stats.
func (s *Service) RecordResult(ctx context.Context, callerID string, result domain.QuizResult) error {
	result.UserID = callerID
	if result.CreatedAt.IsZero() {
		result.CreatedAt = s.clock()
	}
	if err := s.results.Append(ctx, result); err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	profile, ok, err := s.users.Get(ctx, callerID)
	if err != nil || !ok {
		return nil // stats are derived data, losing one update is acceptable
	}
	count := profile.CompletionCount
	prev := 0.0
	if profile.AverageScore != nil {
		prev = *profile.AverageScore
	}
	avg := math.Round((prev*float64(count)+result.Score)/float64(count+1)*100) / 100
	profile.CompletionCount = count + 1
	profile.AverageScore = &avg
	return s.users.Upsert(ctx, profile)
}

// ResultHistory lists the caller's past attempt outcomes.
func (s *Service) ResultHistory(ctx context.Context, callerID string) ([]domain.QuizResult, error) {
	return s.results.ListByUser(ctx, callerID)
}

// UpdateUser applies a partial profile edit for the caller.
func (s *Service) UpdateUser(ctx context.Context, callerID, userID string, patch domain.ProfilePatch) (domain.UserProfile, error) {
	if callerID != userID {
		return domain.UserProfile{}, domain.ErrNotQuizOwner
	}
	profile, ok, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.UserProfile{}, domain.ErrNotSignedIn
	}
	if patch.Name != nil {
		profile.Name = *patch.Name
	}
	if patch.Bio != nil {
		profile.Bio = *patch.Bio
	}
	if patch.ImageURL != nil {
		profile.ImageURL = *patch.ImageURL
	}
	if err := s.users.Upsert(ctx, profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("store user: %w", err)
	}
	return profile, nil
}
