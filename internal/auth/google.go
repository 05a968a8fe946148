package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"quizkeeper/internal/domain"
)

// GoogleProvider exchanges a Google OAuth authorization code for a
// normalized identity via the userinfo endpoint.
type GoogleProvider struct {
	cfg *oauth2.Config
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/drive.appdata",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// AuthCodeURL builds the consent URL for the given CSRF state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades the authorization code for tokens and resolves the user's
// identity.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (domain.IdentityAssertion, error) {
	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return domain.IdentityAssertion{}, fmt.Errorf("exchange code: %w", err)
	}
	if !token.Valid() {
		return domain.IdentityAssertion{}, fmt.Errorf("exchanged token is invalid")
	}

	client := p.cfg.Client(ctx, token)
	svc, err := oauth2api.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return domain.IdentityAssertion{}, fmt.Errorf("userinfo service: %w", err)
	}
	userinfo, err := svc.Userinfo.V2.Me.Get().Context(ctx).Do()
	if err != nil {
		return domain.IdentityAssertion{}, fmt.Errorf("fetch userinfo: %w", err)
	}

	return domain.IdentityAssertion{
		Subject:  userinfo.Id,
		Email:    userinfo.Email,
		Name:     userinfo.Name,
		ImageURL: userinfo.Picture,
	}, nil
}
