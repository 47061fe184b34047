package provider

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	GithubName = "github"

	githubAPIBaseURL = "https://api.github.com"
)

type GithubOAuthProvider struct {
	base
	apiBaseURL string
}

// NewGithubOAuthProvider creates the GitHub provider.
func NewGithubOAuthProvider(cfg Config) *GithubOAuthProvider {
	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = githubAPIBaseURL
	}

	return &GithubOAuthProvider{
		base:       newBase(GithubName, cfg, github.Endpoint, []string{"read:user", "user:email"}),
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
	}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchIdentity reads /user and takes the primary address from
// /user/emails, falling back to the first one listed.
func (p *GithubOAuthProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	var user githubUser
	if err := p.getJSON(ctx, "user info", p.apiBaseURL+"/user", token, &user); err != nil {
		return nil, err
	}

	var emails []githubEmail
	if err := p.getJSON(ctx, "user emails", p.apiBaseURL+"/user/emails", token, &emails); err != nil {
		return nil, err
	}

	email := user.Email
	if len(emails) > 0 {
		email = emails[0].Email
		for _, e := range emails {
			if e.Primary {
				email = e.Email
				break
			}
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	info := &UserInfo{
		Email:       email,
		Name:        name,
		AvatarURL:   user.AvatarURL,
		AccessToken: token.AccessToken,
	}
	if user.ID != 0 {
		info.ProviderID = strconv.FormatInt(user.ID, 10)
	}

	return info, nil
}
