package provider

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const GoogleName = "google"

type GoogleOAuthProvider struct {
	base
	apiBaseURL string
}

// NewGoogleOAuthProvider creates the Google provider. User info is read
// from the oauth2/v2 userinfo endpoint.
func NewGoogleOAuthProvider(cfg Config) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{
		base: newBase(GoogleName, cfg, google.Endpoint, []string{
			googleoauth2.UserinfoEmailScope,
			googleoauth2.UserinfoProfileScope,
			"openid",
		}),
		apiBaseURL: cfg.APIBaseURL,
	}
}

func (p *GoogleOAuthProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(p.oauth.Client(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), token)),
	}
	if p.apiBaseURL != "" {
		opts = append(opts, option.WithEndpoint(p.apiBaseURL))
	}

	oauth2Service, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, newProviderError(p.name, "user info", 0, err)
	}

	userInfo, err := oauth2Service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, newProviderError(p.name, "user info", statusOf(err), err)
	}

	return &UserInfo{
		ProviderID:  userInfo.Id,
		Email:       userInfo.Email,
		Name:        userInfo.Name,
		AvatarURL:   userInfo.Picture,
		AccessToken: token.AccessToken,
	}, nil
}

func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
