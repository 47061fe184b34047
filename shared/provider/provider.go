// Package provider implements federated login against external OAuth providers.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

// Provider is an OAuth authorization-code provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// UserInfo is what a provider tells us about the signed-in user.
type UserInfo struct {
	ProviderID  string
	Email       string
	Name        string
	AvatarURL   string
	AccessToken string
}

// Config configures a provider. Endpoint and APIBaseURL override the
// provider's public endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     *oauth2.Endpoint
	APIBaseURL   string
	HTTPClient   *http.Client
}

// ProviderError reports a failed call to a provider. It unwraps to a
// dependency error.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	cause      *apperror.Error
}

func newProviderError(provider, op string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: statusCode,
		cause:      apperror.Dependency(provider+" "+op, err),
	}
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.cause.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.cause.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.cause
}

type base struct {
	name       string
	oauth      oauth2.Config
	httpClient *http.Client
}

func newBase(name string, cfg Config, endpoint oauth2.Endpoint, scopes []string) base {
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return base{
		name: name,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		httpClient: client,
	}
}

func (b *base) Name() string {
	return b.name
}

func (b *base) AuthCodeURL(state string) string {
	return b.oauth.AuthCodeURL(state)
}

func (b *base) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)

	token, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		var status int
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			status = re.Response.StatusCode
		}
		return nil, newProviderError(b.name, "code exchange", status, err)
	}

	return token, nil
}

// getJSON fetches url with the bearer token and decodes the body into out.
func (b *base) getJSON(ctx context.Context, op, url string, token *oauth2.Token, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newProviderError(b.name, op, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return newProviderError(b.name, op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return newProviderError(b.name, op, resp.StatusCode, fmt.Errorf("unexpected response: %s", body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newProviderError(b.name, op, resp.StatusCode, err)
	}

	return nil
}
