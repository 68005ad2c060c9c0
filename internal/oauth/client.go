// Package oauth exchanges an authorization code with the single external
// provider this site consumes and fetches the identity profile needed to
// link or create a local account.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Profile is the provider identity used for account linking.
type Profile struct {
	Provider       string
	ProviderUserID string
	Email          string
	DisplayName    string
}

// Client wraps the oauth2 code exchange plus the provider's user-info call.
// UserInfoURL is a field so tests can point it at a local httptest server.
type Client struct {
	Provider    string
	Config      *oauth2.Config
	UserInfoURL string
	HTTPTimeout time.Duration
}

// NewClient builds a client for the named provider. Only github is wired;
// the provider set is part of configuration, not user input.
func NewClient(provider, clientID, clientSecret, redirectURL string) (*Client, error) {
	switch provider {
	case "github":
		return &Client{
			Provider: provider,
			Config: &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  redirectURL,
				Scopes:       []string{"read:user", "user:email"},
				Endpoint:     github.Endpoint,
			},
			UserInfoURL: "https://api.github.com/user",
			HTTPTimeout: 10 * time.Second,
		}, nil
	}
	return nil, fmt.Errorf("unsupported oauth provider %q", provider)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Exchange swaps the authorization code for an access token and fetches the
// user profile with it.
func (c *Client) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := c.Config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("code exchange: %w", err)
	}

	httpClient := c.Config.Client(ctx, tok)
	httpClient.Timeout = c.HTTPTimeout
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("user info: unexpected status %d", resp.StatusCode)
	}

	var gu githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return Profile{}, fmt.Errorf("user info decode: %w", err)
	}
	if gu.ID == 0 {
		return Profile{}, fmt.Errorf("user info: missing id")
	}

	name := strings.TrimSpace(gu.Name)
	if name == "" {
		name = gu.Login
	}
	email := strings.ToLower(strings.TrimSpace(gu.Email))
	if email == "" {
		// Private-email accounts get the provider's stable noreply alias so
		// the email column stays unique and non-null.
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gu.ID, gu.Login)
	}
	return Profile{
		Provider:       c.Provider,
		ProviderUserID: fmt.Sprintf("%d", gu.ID),
		Email:          email,
		DisplayName:    name,
	}, nil
}
