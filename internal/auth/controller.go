// Package auth manages the sign-in lifecycle: silent restore from stored
// credentials, identity exchange on login, and teardown on logout.
package auth

import (
	"context"
	"log"
	"sync"
	"time"

	"quizkeeper/internal/domain"
	"quizkeeper/internal/store"
)

// Status is the session state machine.
type Status int

const (
	SignedOut Status = iota
	Restoring
	SignedIn
)

func (s Status) String() string {
	switch s {
	case SignedOut:
		return "signedOut"
	case Restoring:
		return "restoring"
	case SignedIn:
		return "signedIn"
	default:
		return "unknown"
	}
}

// IdentityProvider exchanges a third-party sign-in assertion for a
// normalized identity.
type IdentityProvider interface {
	Exchange(ctx context.Context, code string) (domain.IdentityAssertion, error)
}

// Backend is the slice of the remote client the controller needs.
type Backend interface {
	Login(ctx context.Context, assertion domain.IdentityAssertion) (domain.UserProfile, string, time.Time, error)
	Me(ctx context.Context) (domain.UserProfile, error)
	Logout(ctx context.Context) error
	UpdateUser(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.UserProfile, error)
}

// Collection is the reconciliation engine surface the controller drives.
type Collection interface {
	SetSession(userID, accessToken string)
	AdoptLocalQuizzes(userID string) int
	Reset()
}

// Controller owns the access token: it is the only writer, while the remote
// and backup clients read it through Token.
type Controller struct {
	store      store.Store
	backend    Backend
	provider   IdentityProvider
	collection Collection
	clock      func() time.Time

	mu      sync.RWMutex
	status  Status
	profile domain.UserProfile
	token   string
	expiry  time.Time
}

func NewController(st store.Store, backend Backend, provider IdentityProvider, collection Collection) *Controller {
	return &Controller{
		store:      st,
		backend:    backend,
		provider:   provider,
		collection: collection,
		clock:      time.Now,
	}
}

// NewControllerWithClock is test-only for deterministic expiry checks.
func NewControllerWithClock(st store.Store, backend Backend, provider IdentityProvider, collection Collection, now func() time.Time) *Controller {
	c := NewController(st, backend, provider, collection)
	c.clock = now
	return c
}

// Status returns the current session state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Profile returns the signed-in identity, if any.
func (c *Controller) Profile() (domain.UserProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != SignedIn {
		return domain.UserProfile{}, false
	}
	return c.profile, true
}

// Token supplies the current access token ("" when signed out). Handed to
// the remote and backup clients as their token source.
func (c *Controller) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Restore attempts a silent session restore from stored credentials. A
// missing, expired or rejected token lands in SignedOut with credentials
// cleared; expiry is discovered here reactively, there is no proactive
// refresh.
func (c *Controller) Restore(ctx context.Context) (domain.UserProfile, bool) {
	c.setStatus(Restoring)

	token, expiry, ok := c.store.Credentials()
	if !ok || !c.clock().Before(expiry) {
		c.abandonSession()
		return domain.UserProfile{}, false
	}

	c.mu.Lock()
	c.token = token
	c.expiry = expiry
	c.mu.Unlock()

	profile, err := c.backend.Me(ctx)
	if err != nil {
		log.Printf("auth: silent restore rejected: %v", err)
		c.abandonSession()
		return domain.UserProfile{}, false
	}
	profile.AccessToken = token

	c.mu.Lock()
	c.status = SignedIn
	c.profile = profile
	c.mu.Unlock()

	c.collection.SetSession(profile.ID, token)
	return profile, true
}

// Login exchanges a third-party sign-in code for a backend session, persists
// the credentials and adopts any quizzes created before sign-in.
func (c *Controller) Login(ctx context.Context, code string) (domain.UserProfile, error) {
	assertion, err := c.provider.Exchange(ctx, code)
	if err != nil {
		return domain.UserProfile{}, err
	}

	profile, token, expiry, err := c.backend.Login(ctx, assertion)
	if err != nil {
		return domain.UserProfile{}, err
	}
	profile.AccessToken = token

	if err := c.store.SaveCredentials(token, expiry); err != nil {
		log.Printf("auth: persist credentials: %v", err)
	}
	if err := c.store.SaveCurrentUser(profile); err != nil {
		log.Printf("auth: persist profile: %v", err)
	}

	c.mu.Lock()
	c.status = SignedIn
	c.profile = profile
	c.token = token
	c.expiry = expiry
	c.mu.Unlock()

	c.collection.SetSession(profile.ID, token)
	if adopted := c.collection.AdoptLocalQuizzes(profile.ID); adopted > 0 {
		log.Printf("auth: adopted %d local quizzes for %s", adopted, profile.Email)
	}
	return profile, nil
}

// Logout invalidates the backend session (best effort), clears stored
// credentials and returns the app to the unauthenticated, quiz-less state.
func (c *Controller) Logout(ctx context.Context) {
	if c.Token() != "" {
		if err := c.backend.Logout(ctx); err != nil {
			log.Printf("auth: remote logout: %v", err)
		}
	}
	c.abandonSession()
	c.collection.Reset()
}

// UpdateProfile applies a partial profile edit and persists the result.
func (c *Controller) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (domain.UserProfile, error) {
	c.mu.RLock()
	if c.status != SignedIn {
		c.mu.RUnlock()
		return domain.UserProfile{}, domain.ErrNotSignedIn
	}
	userID := c.profile.ID
	token := c.token
	c.mu.RUnlock()

	profile, err := c.backend.UpdateUser(ctx, userID, patch)
	if err != nil {
		return domain.UserProfile{}, err
	}
	profile.AccessToken = token

	c.mu.Lock()
	c.profile = profile
	c.mu.Unlock()
	if err := c.store.SaveCurrentUser(profile); err != nil {
		log.Printf("auth: persist profile: %v", err)
	}
	return profile, nil
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Controller) abandonSession() {
	c.mu.Lock()
	c.status = SignedOut
	c.profile = domain.UserProfile{}
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
	if err := c.store.ClearCredentials(); err != nil {
		log.Printf("auth: clear credentials: %v", err)
	}
	if err := c.store.ClearCurrentUser(); err != nil {
		log.Printf("auth: clear profile: %v", err)
	}
}
