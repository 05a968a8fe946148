package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"quizkeeper/internal/app"
	"quizkeeper/internal/domain"
	"quizkeeper/internal/infra/memory"
)

func newTestService() *app.Service {
	issuer := app.NewTokenIssuer("test-secret", time.Hour)
	return app.NewService(
		memory.NewQuizStore(),
		memory.NewResultStore(),
		memory.NewUserStore(),
		memory.NewTokenStore(),
		issuer,
	)
}

func login(t *testing.T, service *app.Service, subject string) (domain.UserProfile, string) {
	t.Helper()
	profile, token, _, err := service.Login(context.Background(), domain.IdentityAssertion{
		Subject: subject,
		Email:   subject + "@example.com",
		Name:    "User " + subject,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return profile, token
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title: "sample",
		Questions: []domain.Question{
			{ID: "q1", Text: "pick one", Options: []string{"a", "b"}, CorrectAnswer: "a"},
		},
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	profile, token := login(t, service, "u1")
	if profile.ID != "u1" {
		t.Fatalf("expected profile keyed by subject, got %q", profile.ID)
	}

	authed, _, err := service.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != "u1" {
		t.Fatalf("expected token to resolve to u1, got %q", authed.ID)
	}

	// A second login reuses the profile rather than creating a duplicate.
	again, _ := login(t, service, "u1")
	if again.ID != profile.ID {
		t.Fatalf("expected stable profile, got %q vs %q", again.ID, profile.ID)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	_, token := login(t, service, "u1")
	_, tokenID, err := service.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := service.Logout(ctx, tokenID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := service.Authenticate(ctx, token); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("expected revoked-token error, got %v", err)
	}
}

func TestQuizCRUDEnforcesOwnership(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	owner, _ := login(t, service, "owner")
	other, _ := login(t, service, "other")

	created, err := service.CreateQuiz(ctx, owner.ID, sampleQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil || created.UserID != owner.ID {
		t.Fatalf("expected assigned id and owner, got %+v", created)
	}

	created.Title = "renamed"
	if _, err := service.UpdateQuiz(ctx, other.ID, created); !errors.Is(err, domain.ErrNotQuizOwner) {
		t.Fatalf("expected ownership rejection, got %v", err)
	}
	updated, err := service.UpdateQuiz(ctx, owner.ID, created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "renamed" {
		t.Fatalf("expected rename applied, got %q", updated.Title)
	}

	if err := service.DeleteQuiz(ctx, other.ID, created.ID); !errors.Is(err, domain.ErrNotQuizOwner) {
		t.Fatalf("expected delete rejected for non-owner, got %v", err)
	}
	if err := service.DeleteQuiz(ctx, owner.ID, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := service.DeleteQuiz(ctx, owner.ID, created.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not-found on second delete, got %v", err)
	}
}

func TestListQuizzesOnlyOwn(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	owner, _ := login(t, service, "owner")
	other, _ := login(t, service, "other")

	if _, err := service.CreateQuiz(ctx, owner.ID, sampleQuiz()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.UserQuizzes(ctx, other.ID, owner.ID); !errors.Is(err, domain.ErrNotQuizOwner) {
		t.Fatalf("expected foreign listing rejected, got %v", err)
	}
	quizzes, err := service.UserQuizzes(ctx, owner.ID, owner.ID)
	if err != nil || len(quizzes) != 1 {
		t.Fatalf("expected 1 quiz for owner, got %v (%v)", quizzes, err)
	}
}

func TestSharedQuizVisibility(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	owner, _ := login(t, service, "owner")

	private, err := service.CreateQuiz(ctx, owner.ID, sampleQuiz())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.SharedQuiz(ctx, private.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected private quiz hidden, got %v", err)
	}

	now := time.Now()
	private.IsShared = true
	private.SharedAt = &now
	if _, err := service.UpdateQuiz(ctx, owner.ID, private); err != nil {
		t.Fatalf("share: %v", err)
	}
	shared, err := service.SharedQuiz(ctx, private.ID)
	if err != nil || shared.ID != private.ID {
		t.Fatalf("expected shared quiz visible, got %v (%v)", shared, err)
	}
}

func TestRecordResultUpdatesStats(t *testing.T) {
	ctx := context.Background()
	service := newTestService()
	user, token := login(t, service, "u1")

	result := domain.QuizResult{QuizID: uuid.New(), Score: 80, SourceMode: domain.ModeTake}
	if err := service.RecordResult(ctx, user.ID, result); err != nil {
		t.Fatalf("record: %v", err)
	}
	result.Score = 60
	if err := service.RecordResult(ctx, user.ID, result); err != nil {
		t.Fatalf("record: %v", err)
	}

	profile, _, err := service.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if profile.CompletionCount != 2 {
		t.Fatalf("expected 2 completions, got %d", profile.CompletionCount)
	}
	if profile.AverageScore == nil || *profile.AverageScore != 70 {
		t.Fatalf("expected average 70, got %v", profile.AverageScore)
	}

	history, err := service.ResultHistory(ctx, user.ID)
	if err != nil || len(history) != 2 {
		t.Fatalf("expected 2 results in history, got %v (%v)", history, err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	issuer := app.NewTokenIssuerWithClock("test-secret", time.Minute, clock)
	service := app.NewServiceWithClock(
		memory.NewQuizStore(),
		memory.NewResultStore(),
		memory.NewUserStore(),
		memory.NewTokenStoreWithClock(clock),
		issuer,
		clock,
	)

	_, token, _, err := service.Login(ctx, domain.IdentityAssertion{Subject: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := service.Authenticate(ctx, token); err != nil {
		t.Fatalf("expected fresh token accepted: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, _, err := service.Authenticate(ctx, token); err == nil {
		t.Fatalf("expected expired token rejected")
	}
}
