package auth

import (
	"net/url"
	"strings"
	"testing"
)

func TestGoogleProviderAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider("client-123", "secret", "http://localhost:9999/callback")

	raw := p.AuthCodeURL("state-abc")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse consent url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-123" {
		t.Fatalf("expected client id in consent url, got %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "http://localhost:9999/callback" {
		t.Fatalf("expected redirect uri in consent url, got %q", q.Get("redirect_uri"))
	}
	if q.Get("state") != "state-abc" {
		t.Fatalf("expected state in consent url, got %q", q.Get("state"))
	}
	if q.Get("access_type") != "offline" {
		t.Fatalf("expected offline access, got %q", q.Get("access_type"))
	}
	if !strings.Contains(q.Get("scope"), "drive.appdata") {
		t.Fatalf("expected drive.appdata scope, got %q", q.Get("scope"))
	}
}
