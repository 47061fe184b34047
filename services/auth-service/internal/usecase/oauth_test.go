package usecase

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
	"github.com/vasapolrittideah/identity-portal/shared/provider"
)

type fakeProvider struct {
	name      string
	info      *provider.UserInfo
	exchanged []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://" + p.name + ".test/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	p.exchanged = append(p.exchanged, code)
	return &oauth2.Token{AccessToken: "provider-token"}, nil
}

func (p *fakeProvider) FetchIdentity(_ context.Context, token *oauth2.Token) (*provider.UserInfo, error) {
	info := *p.info
	info.AccessToken = token.AccessToken
	return &info, nil
}

type fakeAvatars struct {
	err error
}

func (a fakeAvatars) Fetch(_ context.Context, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "data:image/jpeg;base64,AAAA", nil
}

func googleInfo() *provider.UserInfo {
	return &provider.UserInfo{
		ProviderID:  "g-123",
		Email:       "Grace@Example.com",
		Name:        "Grace Brewster Hopper",
		AvatarURL:   "https://img.test/grace.jpg",
		AccessToken: "provider-token",
	}
}

func (f *fixture) oauth(avatars AvatarFetcher, providers ...provider.Provider) OAuthUsecase {
	return NewOAuthUsecase(f.logger, f.repo, f.store, f.hasher, avatars, providers, f.cfg)
}

func stateFrom(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("no state in %q", rawURL)
	}
	return state
}

func TestReconcileCreatesFederatedIdentity(t *testing.T) {
	f := newFixture(t)
	oauth := f.oauth(fakeAvatars{})

	identity, err := oauth.Reconcile(context.Background(), model.ProviderGoogle, googleInfo())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if identity.Email != "grace@example.com" {
		t.Fatalf("email = %q", identity.Email)
	}
	if identity.FirstName != "Grace" || identity.LastName != "Brewster Hopper" {
		t.Fatalf("name = %q %q", identity.FirstName, identity.LastName)
	}
	if identity.AuthProvider != model.ProviderGoogle || identity.GoogleID == nil || *identity.GoogleID != "g-123" {
		t.Fatalf("provider fields not set: %+v", identity)
	}
	if identity.UserType != model.UserTypeIndividual || identity.NotificationMethod != model.NotifyEmail {
		t.Fatalf("defaults not applied: %+v", identity)
	}
	if !identity.IsActive || identity.PhoneNumber != nil {
		t.Fatalf("expected active identity without phone: %+v", identity)
	}
	if identity.ProfileImage != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("profile image = %q", identity.ProfileImage)
	}
	if identity.PasswordHash == "" || identity.Salt == "" {
		t.Fatal("expected a random password hash")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	oauth := f.oauth(nil)

	first, err := oauth.Reconcile(ctx, model.ProviderGoogle, googleInfo())
	if err != nil {
		t.Fatal(err)
	}

	info := googleInfo()
	info.AccessToken = "rotated-token"
	second, err := oauth.Reconcile(ctx, model.ProviderGoogle, info)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("second reconcile produced %q, want %q", second.ID, first.ID)
	}
	if second.GoogleAccessToken != "rotated-token" {
		t.Fatalf("access token not refreshed: %q", second.GoogleAccessToken)
	}

	count, err := f.repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestReconcileMatchesByProviderID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.seedOAuth(t, "old@example.com", "g-123")

	got, err := f.oauth(nil).Reconcile(ctx, model.ProviderGoogle, googleInfo())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != existing.ID {
		t.Fatalf("matched %q, want %q", got.ID, existing.ID)
	}
}

func TestReconcileRejectsLocalAccount(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, "grace@example.com", "")

	_, err := f.oauth(nil).Reconcile(context.Background(), model.ProviderGoogle, googleInfo())
	if !errors.Is(err, ErrProviderConflict) {
		t.Fatalf("expected ErrProviderConflict, got %v", err)
	}
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Fatalf("expected conflict kind, got %v", apperror.KindOf(err))
	}
}

func TestReconcileRejectsIncompleteData(t *testing.T) {
	f := newFixture(t)
	oauth := f.oauth(nil)

	tests := []struct {
		name string
		info *provider.UserInfo
	}{
		{name: "nil", info: nil},
		{name: "no email", info: &provider.UserInfo{ProviderID: "g-1"}},
		{name: "no id", info: &provider.UserInfo{Email: "a@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := oauth.Reconcile(context.Background(), model.ProviderGoogle, tt.info)
			if !errors.Is(err, ErrIncompleteOAuthData) {
				t.Fatalf("expected ErrIncompleteOAuthData, got %v", err)
			}
		})
	}
}

func TestReconcileKeepsGoingWithoutAvatar(t *testing.T) {
	f := newFixture(t)

	identity, err := f.oauth(fakeAvatars{err: errors.New("boom")}).Reconcile(
		context.Background(), model.ProviderGoogle, googleInfo(),
	)
	if err != nil {
		t.Fatal(err)
	}
	if identity.ProfileImage != "" {
		t.Fatalf("expected empty image, got %q", identity.ProfileImage)
	}
}

func TestRelinkKeepsAvatarWhenFetchFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.oauth(fakeAvatars{}).Reconcile(ctx, model.ProviderGoogle, googleInfo())
	if err != nil {
		t.Fatal(err)
	}
	if first.ProfileImage == "" {
		t.Fatal("expected the first link to store an avatar")
	}

	second, err := f.oauth(fakeAvatars{err: errors.New("cdn down")}).Reconcile(ctx, model.ProviderGoogle, googleInfo())
	if err != nil {
		t.Fatal(err)
	}
	if second.ProfileImage != first.ProfileImage {
		t.Fatalf("avatar after relink = %q, want %q", second.ProfileImage, first.ProfileImage)
	}
}

func TestReconcilePlaceholderPhone(t *testing.T) {
	cfg := testConfig()
	cfg.PlaceholderPhone = true
	f := newFixtureWithConfig(t, cfg)

	identity, err := f.oauth(nil).Reconcile(context.Background(), model.ProviderGoogle, googleInfo())
	if err != nil {
		t.Fatal(err)
	}
	if identity.PhoneNumber == nil {
		t.Fatal("expected a placeholder phone")
	}
	if profile := newProfile(identity); profile.VerifiedPhone {
		t.Fatalf("placeholder %q reported as verified", *identity.PhoneNumber)
	}
}

func TestHandleCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	google := &fakeProvider{name: provider.GoogleName, info: googleInfo()}
	github := &fakeProvider{name: provider.GithubName, info: googleInfo()}
	oauth := f.oauth(nil, google, github)

	loginURL, err := oauth.LoginURL(ctx, provider.GoogleName)
	if err != nil {
		t.Fatal(err)
	}
	state := stateFrom(t, loginURL)

	identity, err := oauth.HandleCallback(ctx, OAuthCallbackParams{Provider: provider.GoogleName, Code: "code-1", State: state})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if identity.Email != "grace@example.com" || len(google.exchanged) != 1 {
		t.Fatalf("unexpected callback result %+v, exchanged %v", identity, google.exchanged)
	}

	_, err = oauth.HandleCallback(ctx, OAuthCallbackParams{Provider: provider.GoogleName, Code: "code-1", State: state})
	if !errors.Is(err, ErrInvalidOAuthState) {
		t.Fatalf("expected replayed state to fail, got %v", err)
	}
}

func TestHandleCallbackRejectsForeignState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	google := &fakeProvider{name: provider.GoogleName, info: googleInfo()}
	github := &fakeProvider{name: provider.GithubName, info: googleInfo()}
	oauth := f.oauth(nil, google, github)

	loginURL, err := oauth.LoginURL(ctx, provider.GoogleName)
	if err != nil {
		t.Fatal(err)
	}

	_, err = oauth.HandleCallback(ctx, OAuthCallbackParams{
		Provider: provider.GithubName,
		Code:     "code-1",
		State:    stateFrom(t, loginURL),
	})
	if !errors.Is(err, ErrInvalidOAuthState) {
		t.Fatalf("expected ErrInvalidOAuthState, got %v", err)
	}
	if len(github.exchanged) != 0 {
		t.Fatal("code must not be exchanged with a foreign state")
	}

	if _, err := oauth.LoginURL(ctx, "myspace"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}
