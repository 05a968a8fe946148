package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizkeeper/internal/domain"
	"quizkeeper/internal/store"
)

type fakeProvider struct {
	assertion domain.IdentityAssertion
	err       error
}

func (p *fakeProvider) Exchange(context.Context, string) (domain.IdentityAssertion, error) {
	return p.assertion, p.err
}

type fakeBackend struct {
	profile   domain.UserProfile
	token     string
	expiry    time.Time
	meErr     error
	loginErr  error
	logoutHit int
}

func (b *fakeBackend) Login(context.Context, domain.IdentityAssertion) (domain.UserProfile, string, time.Time, error) {
	return b.profile, b.token, b.expiry, b.loginErr
}

func (b *fakeBackend) Me(context.Context) (domain.UserProfile, error) {
	if b.meErr != nil {
		return domain.UserProfile{}, b.meErr
	}
	return b.profile, nil
}

func (b *fakeBackend) Logout(context.Context) error {
	b.logoutHit++
	return nil
}

func (b *fakeBackend) UpdateUser(_ context.Context, _ string, patch domain.ProfilePatch) (domain.UserProfile, error) {
	updated := b.profile
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Bio != nil {
		updated.Bio = *patch.Bio
	}
	return updated, nil
}

type fakeCollection struct {
	sessionUser string
	adopted     string
	adoptCount  int
	resets      int
}

func (c *fakeCollection) SetSession(userID, _ string) { c.sessionUser = userID }
func (c *fakeCollection) AdoptLocalQuizzes(userID string) int {
	c.adopted = userID
	return c.adoptCount
}
func (c *fakeCollection) Reset() { c.resets++ }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRestoreWithValidCredentials(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	if err := st.SaveCredentials("tok", now.Add(time.Hour)); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}

	backend := &fakeBackend{profile: domain.UserProfile{ID: "u1", Email: "a@b.c"}}
	coll := &fakeCollection{}
	c := NewControllerWithClock(st, backend, &fakeProvider{}, coll, fixedClock(now))

	profile, ok := c.Restore(context.Background())
	if !ok {
		t.Fatalf("expected silent restore to succeed")
	}
	if c.Status() != SignedIn || profile.ID != "u1" {
		t.Fatalf("expected signed-in u1, got %s %+v", c.Status(), profile)
	}
	if coll.sessionUser != "u1" {
		t.Fatalf("expected session installed on the collection")
	}
	if c.Token() != "tok" {
		t.Fatalf("expected restored token exposed, got %q", c.Token())
	}
}

func TestRestoreExpiredCredentialsSignsOut(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	if err := st.SaveCredentials("tok", now.Add(-time.Minute)); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}

	c := NewControllerWithClock(st, &fakeBackend{}, &fakeProvider{}, &fakeCollection{}, fixedClock(now))
	if _, ok := c.Restore(context.Background()); ok {
		t.Fatalf("expected expired credentials to fail restore")
	}
	if c.Status() != SignedOut || c.Token() != "" {
		t.Fatalf("expected signed-out with no token, got %s %q", c.Status(), c.Token())
	}
	if _, _, ok := st.Credentials(); ok {
		t.Fatalf("expected stale credentials cleared")
	}
}

func TestRestoreRejectedTokenSignsOut(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	if err := st.SaveCredentials("tok", now.Add(time.Hour)); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}

	backend := &fakeBackend{meErr: errors.New("401")}
	c := NewControllerWithClock(st, backend, &fakeProvider{}, &fakeCollection{}, fixedClock(now))

	if _, ok := c.Restore(context.Background()); ok {
		t.Fatalf("expected rejected token to fail restore")
	}
	if c.Status() != SignedOut {
		t.Fatalf("expected signed-out, got %s", c.Status())
	}
	if _, _, ok := st.Credentials(); ok {
		t.Fatalf("expected rejected credentials cleared")
	}
}

func TestLoginPersistsAndAdopts(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	backend := &fakeBackend{
		profile: domain.UserProfile{ID: "u1", Email: "a@b.c"},
		token:   "fresh-token",
		expiry:  now.Add(time.Hour),
	}
	coll := &fakeCollection{adoptCount: 2}
	provider := &fakeProvider{assertion: domain.IdentityAssertion{Subject: "u1", Email: "a@b.c"}}
	c := NewControllerWithClock(st, backend, provider, coll, fixedClock(now))

	profile, err := c.Login(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if profile.AccessToken != "fresh-token" || c.Status() != SignedIn {
		t.Fatalf("expected signed-in with token, got %+v %s", profile, c.Status())
	}

	token, expiry, ok := st.Credentials()
	if !ok || token != "fresh-token" || !expiry.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected credentials persisted, got %q %v %v", token, expiry, ok)
	}
	if _, ok := st.CurrentUser(); !ok {
		t.Fatalf("expected profile persisted")
	}
	if coll.sessionUser != "u1" || coll.adopted != "u1" {
		t.Fatalf("expected session set and local quizzes adopted, got %+v", coll)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	backend := &fakeBackend{
		profile: domain.UserProfile{ID: "u1"},
		token:   "tok",
		expiry:  now.Add(time.Hour),
	}
	coll := &fakeCollection{}
	provider := &fakeProvider{assertion: domain.IdentityAssertion{Subject: "u1", Email: "a@b.c"}}
	c := NewControllerWithClock(st, backend, provider, coll, fixedClock(now))

	if _, err := c.Login(context.Background(), "code"); err != nil {
		t.Fatalf("login: %v", err)
	}
	c.Logout(context.Background())

	if c.Status() != SignedOut || c.Token() != "" {
		t.Fatalf("expected signed-out, got %s %q", c.Status(), c.Token())
	}
	if backend.logoutHit != 1 {
		t.Fatalf("expected remote logout once, got %d", backend.logoutHit)
	}
	if coll.resets != 1 {
		t.Fatalf("expected collection reset, got %d", coll.resets)
	}
	if _, _, ok := st.Credentials(); ok {
		t.Fatalf("expected credentials cleared")
	}
	if _, ok := st.CurrentUser(); ok {
		t.Fatalf("expected stored profile cleared")
	}
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	c := NewController(store.NewMemoryStore(), &fakeBackend{}, &fakeProvider{}, &fakeCollection{})
	name := "new name"
	if _, err := c.UpdateProfile(context.Background(), domain.ProfilePatch{Name: &name}); err != domain.ErrNotSignedIn {
		t.Fatalf("expected not-signed-in error, got %v", err)
	}
}
