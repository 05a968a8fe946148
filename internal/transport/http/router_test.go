package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizkeeper/internal/app"
	"quizkeeper/internal/domain"
	"quizkeeper/internal/infra/memory"
	transport "quizkeeper/internal/transport/http"
)

func newTestServer(t *testing.T) (*httptest.Server, *transport.Hub) {
	t.Helper()
	issuer := app.NewTokenIssuer("test-secret", time.Hour)
	service := app.NewService(
		memory.NewQuizStore(),
		memory.NewResultStore(),
		memory.NewUserStore(),
		memory.NewTokenStore(),
		issuer,
	)
	hub := transport.NewHub()
	service.SetNotifier(hub)
	srv := httptest.NewServer(transport.NewRouter(service, hub))
	t.Cleanup(srv.Close)
	return srv, hub
}

func doJSON(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

type loginResponse struct {
	User        domain.UserProfile `json:"user"`
	AccessToken string             `json:"accessToken"`
	ExpiresAt   int64              `json:"expiresAt"`
}

func loginAs(t *testing.T, srv *httptest.Server, subject string) loginResponse {
	t.Helper()
	var resp loginResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", domain.IdentityAssertion{
		Subject: subject,
		Email:   subject + "@example.com",
		Name:    "User " + subject,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login status %d", status)
	}
	if resp.AccessToken == "" || resp.ExpiresAt == 0 {
		t.Fatalf("expected token and expiry, got %+v", resp)
	}
	return resp
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title: "transport sample",
		Questions: []domain.Question{
			{ID: "q1", Text: "pick one", Options: []string{"a", "b"}, CorrectAnswer: "b"},
		},
	}
}

func TestLoginAndQuizRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := loginAs(t, srv, "u1")

	var created domain.Quiz
	status := doJSON(t, http.MethodPost, srv.URL+"/api/quizzes", sess.AccessToken, sampleQuiz(), &created)
	if status != http.StatusCreated {
		t.Fatalf("create status %d", status)
	}
	if created.UserID != sess.User.ID {
		t.Fatalf("expected quiz owned by caller, got %q", created.UserID)
	}

	var listed []domain.Quiz
	status = doJSON(t, http.MethodGet, srv.URL+"/api/users/"+sess.User.ID+"/quizzes", sess.AccessToken, nil, &listed)
	if status != http.StatusOK || len(listed) != 1 {
		t.Fatalf("list status %d, %d quizzes", status, len(listed))
	}

	status = doJSON(t, http.MethodDelete, srv.URL+"/api/quizzes/"+created.ID.String(), sess.AccessToken, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("delete status %d", status)
	}
	status = doJSON(t, http.MethodDelete, srv.URL+"/api/quizzes/"+created.ID.String(), sess.AccessToken, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for second delete, got %d", status)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	status := doJSON(t, http.MethodGet, srv.URL+"/api/me", "", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	status = doJSON(t, http.MethodGet, srv.URL+"/api/me", "garbage", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}
}

func TestForeignQuizForbidden(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := loginAs(t, srv, "owner")
	other := loginAs(t, srv, "other")

	var created domain.Quiz
	if status := doJSON(t, http.MethodPost, srv.URL+"/api/quizzes", owner.AccessToken, sampleQuiz(), &created); status != http.StatusCreated {
		t.Fatalf("create status %d", status)
	}

	created.Title = "hijacked"
	status := doJSON(t, http.MethodPut, srv.URL+"/api/quizzes/"+created.ID.String(), other.AccessToken, created, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign update, got %d", status)
	}
}

func TestSharedQuizPublic(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := loginAs(t, srv, "owner")

	var created domain.Quiz
	if status := doJSON(t, http.MethodPost, srv.URL+"/api/quizzes", owner.AccessToken, sampleQuiz(), &created); status != http.StatusCreated {
		t.Fatalf("create status %d", status)
	}

	// Not shared yet: hidden from the public endpoint.
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/shared/"+created.ID.String(), "", nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for private quiz, got %d", status)
	}

	now := time.Now()
	created.IsShared = true
	created.SharedAt = &now
	if status := doJSON(t, http.MethodPut, srv.URL+"/api/quizzes/"+created.ID.String(), owner.AccessToken, created, nil); status != http.StatusOK {
		t.Fatalf("share status %d", status)
	}

	var shared domain.Quiz
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/shared/"+created.ID.String(), "", nil, &shared); status != http.StatusOK {
		t.Fatalf("expected shared quiz public, got %d", status)
	}
	if shared.ID != created.ID {
		t.Fatalf("unexpected shared quiz %+v", shared)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	srv, _ := newTestServer(t)
	sess := loginAs(t, srv, "u1")

	if status := doJSON(t, http.MethodPost, srv.URL+"/api/logout", sess.AccessToken, nil, nil); status != http.StatusOK {
		t.Fatalf("logout status %d", status)
	}
	if status := doJSON(t, http.MethodGet, srv.URL+"/api/me", sess.AccessToken, nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected revoked token rejected, got %d", status)
	}
}

func TestWebsocketBroadcastsCollectionChanged(t *testing.T) {
	srv, hub := newTestServer(t)
	sess := loginAs(t, srv, "u1")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + sess.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// The hub registers the connection just after the handshake; wait for it
	// so the broadcast cannot race the subscription.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(sess.User.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ws connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status := doJSON(t, http.MethodPost, srv.URL+"/api/quizzes", sess.AccessToken, sampleQuiz(), nil); status != http.StatusCreated {
		t.Fatalf("create status %d", status)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ws event: %v", err)
	}
	if msg.Type != "collectionChanged" {
		t.Fatalf("expected collectionChanged event, got %q", msg.Type)
	}
}
