// Package remote is the authenticated CRUD client for the hosted backend.
// Failures are categorized (unauthenticated, forbidden, rate limited,
// network, generic) so the reconciliation engine can choose retry vs abort.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"quizkeeper/internal/domain"
)

// TokenSource supplies the current access token. It is read here but written
// only by the session controller.
type TokenSource func() string

// Client talks JSON over HTTP to the quizkeeper backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenSource

	shared *sharedCache
}

// NewClient builds a client for baseURL. token may return "" when signed out;
// authenticated calls will then fail with an unauthenticated category.
func NewClient(baseURL string, token TokenSource) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		token:   token,
	}
	c.shared = newSharedCache(c.fetchSharedQuiz, 10*time.Minute)
	return c
}

// SetHTTPClient overrides the underlying HTTP client (tests).
func (c *Client) SetHTTPClient(h *http.Client) { c.httpc = h }

type loginResponse struct {
	User        domain.UserProfile `json:"user"`
	AccessToken string             `json:"accessToken"`
	ExpiresAt   int64              `json:"expiresAt"` // epoch millis
}

// Login exchanges a third-party identity assertion for a backend session.
func (c *Client) Login(ctx context.Context, assertion domain.IdentityAssertion) (domain.UserProfile, string, time.Time, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", assertion, &resp, false); err != nil {
		return domain.UserProfile{}, "", time.Time{}, err
	}
	return resp.User, resp.AccessToken, time.UnixMilli(resp.ExpiresAt), nil
}

// Me validates the current token and returns the session's profile.
func (c *Client) Me(ctx context.Context) (domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &profile, true); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

// Logout invalidates the backend session. Best effort; a dead server must
// not block local sign-out.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil, true)
}

// GetUserQuizzes fetches the signed-in user's full collection.
func (c *Client) GetUserQuizzes(ctx context.Context, userID string) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	if err := c.do(ctx, http.MethodGet, "/api/users/"+userID+"/quizzes", nil, &quizzes, true); err != nil {
		return nil, err
	}
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	return quizzes, nil
}

// CreateQuiz stores a new quiz under ownerID.
func (c *Client) CreateQuiz(ctx context.Context, quiz domain.Quiz, ownerID string) (domain.Quiz, error) {
	quiz.UserID = ownerID
	var created domain.Quiz
	if err := c.do(ctx, http.MethodPost, "/api/quizzes", quiz, &created, true); err != nil {
		return domain.Quiz{}, err
	}
	return created, nil
}

// UpdateQuiz replaces a stored quiz wholesale.
func (c *Client) UpdateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	var updated domain.Quiz
	if err := c.do(ctx, http.MethodPut, "/api/quizzes/"+quiz.ID.String(), quiz, &updated, true); err != nil {
		return domain.Quiz{}, err
	}
	return updated, nil
}

// DeleteQuiz removes a quiz; false (with nil error) means it was already gone.
func (c *Client) DeleteQuiz(ctx context.Context, quizID uuid.UUID) (bool, error) {
	err := c.do(ctx, http.MethodDelete, "/api/quizzes/"+quizID.String(), nil, nil, true)
	if err != nil {
		if domain.CategoryOf(err) == domain.CategoryNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateUser applies a partial profile update.
func (c *Client) UpdateUser(ctx context.Context, userID string, patch domain.ProfilePatch) (domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := c.do(ctx, http.MethodPatch, "/api/users/"+userID, patch, &profile, true); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

// SaveResult records a completed attempt in the user's history.
func (c *Client) SaveResult(ctx context.Context, result domain.QuizResult) error {
	return c.do(ctx, http.MethodPost, "/api/results", result, nil, true)
}

// GetSharedQuiz fetches a publicly shared quiz, serving repeat lookups from
// a TTL cache so bursts of opens for the same link hit the backend once.
func (c *Client) GetSharedQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	return c.shared.get(ctx, quizID)
}

func (c *Client) fetchSharedQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := c.do(ctx, http.MethodGet, "/api/shared/"+quizID.String(), nil, &quiz, false); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		tok := c.token()
		if tok == "" {
			return domain.NewRemoteError(domain.CategoryUnauthenticated, 0, "no active session", domain.ErrNotSignedIn)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.NewRemoteError(domain.CategoryNetwork, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return categorize(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewRemoteError(domain.CategoryGeneric, resp.StatusCode, "decode response", err)
		}
	}
	return nil
}

func categorize(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	var cat domain.ErrorCategory
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		cat = domain.CategoryUnauthenticated
	case resp.StatusCode == http.StatusForbidden:
		cat = domain.CategoryForbidden
	case resp.StatusCode == http.StatusTooManyRequests:
		cat = domain.CategoryRateLimited
	case resp.StatusCode == http.StatusNotFound:
		cat = domain.CategoryNotFound
	case resp.StatusCode >= 500:
		cat = domain.CategoryNetwork // server-side transients are retried like network faults
	default:
		cat = domain.CategoryGeneric
	}
	return domain.NewRemoteError(cat, resp.StatusCode, msg, nil)
}
