package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/cache"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
	"github.com/vasapolrittideah/identity-portal/shared/identifier"
	"github.com/vasapolrittideah/identity-portal/shared/provider"
	"github.com/vasapolrittideah/identity-portal/shared/security"
)

// OAuthUsecase reconciles identities federated from external providers
// with local accounts.
type OAuthUsecase interface {
	// LoginURL returns provider's authorization URL with a fresh state.
	LoginURL(ctx context.Context, providerName string) (string, error)
	HandleCallback(ctx context.Context, params OAuthCallbackParams) (*model.Identity, error)
	Reconcile(ctx context.Context, providerName model.AuthProvider, info *provider.UserInfo) (*model.Identity, error)
}

// OAuthCallbackParams defines the parameters a provider redirects back with.
type OAuthCallbackParams struct {
	Provider string
	Code     string
	State    string
}

// AvatarFetcher inlines a remote profile picture.
type AvatarFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

var (
	ErrUnknownProvider     = apperror.New(apperror.KindNotFound, "unknown_provider", "unknown login provider")
	ErrInvalidOAuthState   = apperror.New(apperror.KindAuthentication, "invalid_oauth_state", "invalid or expired login state")
	ErrIncompleteOAuthData = apperror.Validation("incomplete_oauth_data", "provider did not return an email and an account id")
	ErrProviderConflict    = apperror.New(
		apperror.KindConflict,
		"provider_conflict",
		"an account with this email already signs in with a password",
	)
	ErrConflict = apperror.New(apperror.KindConflict, "conflict", "account data conflicts with an existing account")
)

const (
	oauthStateBytes       = 24
	randomPasswordMinLen  = 8
	randomPasswordMaxLen  = 11
	placeholderPhoneDigit = 9
)

type oauthUsecase struct {
	logger       *zerolog.Logger
	identityRepo repository.IdentityRepository
	codeStore    cache.CodeStore
	hasher       *security.Hasher
	avatars      AvatarFetcher
	providers    map[string]provider.Provider
	cfg          *config.AuthServiceConfig
}

// NewOAuthUsecase creates a new instance of OAuthUsecase.
func NewOAuthUsecase(
	logger *zerolog.Logger,
	identityRepo repository.IdentityRepository,
	codeStore cache.CodeStore,
	hasher *security.Hasher,
	avatars AvatarFetcher,
	providers []provider.Provider,
	cfg *config.AuthServiceConfig,
) OAuthUsecase {
	byName := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &oauthUsecase{
		logger:       logger,
		identityRepo: identityRepo,
		codeStore:    codeStore,
		hasher:       hasher,
		avatars:      avatars,
		providers:    byName,
		cfg:          cfg,
	}
}

func (u *oauthUsecase) provider(name string) (provider.Provider, error) {
	p, ok := u.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

func (u *oauthUsecase) LoginURL(ctx context.Context, providerName string) (string, error) {
	p, err := u.provider(providerName)
	if err != nil {
		return "", err
	}

	buf := make([]byte, oauthStateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	if err := u.codeStore.Set(
		ctx,
		cache.OAuthStateKey(state),
		cache.CodeValue(p.Name()),
		u.cfg.Code.OAuthStateExpiresIn,
	); err != nil {
		return "", err
	}

	return p.AuthCodeURL(state), nil
}

func (u *oauthUsecase) HandleCallback(ctx context.Context, params OAuthCallbackParams) (*model.Identity, error) {
	p, err := u.provider(params.Provider)
	if err != nil {
		return nil, err
	}

	if params.State == "" {
		return nil, ErrInvalidOAuthState
	}
	v, err := u.codeStore.Consume(ctx, cache.OAuthStateKey(params.State))
	if err != nil {
		if errors.Is(err, cache.ErrAbsent) {
			return nil, ErrInvalidOAuthState
		}
		return nil, err
	}
	if v.Code != p.Name() {
		return nil, ErrInvalidOAuthState
	}

	token, err := p.Exchange(ctx, params.Code)
	if err != nil {
		return nil, err
	}

	info, err := p.FetchIdentity(ctx, token)
	if err != nil {
		return nil, err
	}

	return u.Reconcile(ctx, model.AuthProvider(p.Name()), info)
}

func (u *oauthUsecase) Reconcile(
	ctx context.Context,
	providerName model.AuthProvider,
	info *provider.UserInfo,
) (*model.Identity, error) {
	if info == nil || strings.TrimSpace(info.Email) == "" || strings.TrimSpace(info.ProviderID) == "" {
		return nil, ErrIncompleteOAuthData
	}
	if model.ProviderIDColumn(providerName) == "" {
		return nil, ErrUnknownProvider
	}

	email := identifier.NormalizeEmail(info.Email)
	avatar := u.fetchAvatar(ctx, info.AvatarURL)

	var result *model.Identity
	err := u.identityRepo.WithinTransaction(ctx, func(ctx context.Context, repo repository.IdentityRepository) error {
		existing, err := repo.FindByEmailOrProviderID(ctx, email, providerName, info.ProviderID)
		switch {
		case err == nil:
			if existing.IsLocal() {
				return ErrProviderConflict
			}

			result, err = repo.UpdateOAuthLink(ctx, existing.ID, repository.UpdateOAuthLinkParams{
				Provider:     providerName,
				ProviderID:   info.ProviderID,
				AccessToken:  info.AccessToken,
				ProfileImage: avatar,
			})
			return err

		case errors.Is(err, repository.ErrNotFound):
			identity, err := u.newFederatedIdentity(ctx, providerName, email, avatar, info)
			if err != nil {
				return err
			}

			result, err = repo.Create(ctx, identity)
			return err

		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	return result, nil
}

func (u *oauthUsecase) newFederatedIdentity(
	ctx context.Context,
	providerName model.AuthProvider,
	email, avatar string,
	info *provider.UserInfo,
) (*model.Identity, error) {
	secret, err := security.GenerateRandomSecret(randomPasswordMinLen, randomPasswordMaxLen)
	if err != nil {
		return nil, err
	}
	hash, salt, err := u.hasher.Hash(ctx, secret)
	if err != nil {
		return nil, err
	}

	firstName, lastName := splitDisplayName(info.Name)
	identity := &model.Identity{
		Email:              email,
		PasswordHash:       hash,
		Salt:               salt,
		FirstName:          firstName,
		LastName:           lastName,
		ProfileImage:       avatar,
		UserType:           model.UserTypeIndividual,
		IsActive:           true,
		AuthProvider:       providerName,
		NotificationMethod: model.NotifyEmail,
	}

	providerID := info.ProviderID
	switch providerName {
	case model.ProviderGoogle:
		identity.GoogleID = &providerID
		identity.GoogleAccessToken = info.AccessToken
	case model.ProviderGithub:
		identity.GithubID = &providerID
		identity.GithubAccessToken = info.AccessToken
	}

	if u.cfg.PlaceholderPhone {
		phone, err := placeholderPhone()
		if err != nil {
			return nil, err
		}
		identity.PhoneNumber = &phone
	}

	return identity, nil
}

// fetchAvatar is best effort; failures leave the image empty.
func (u *oauthUsecase) fetchAvatar(ctx context.Context, url string) string {
	if url == "" || u.avatars == nil {
		return ""
	}

	avatar, err := u.avatars.Fetch(ctx, url)
	if err != nil {
		u.logger.Warn().Err(err).Str("url", url).Msg("failed to download provider avatar")
		return ""
	}

	return avatar
}

// splitDisplayName splits on the first space: first token, then the rest.
func splitDisplayName(name string) (string, string) {
	name = strings.TrimSpace(name)
	first, rest, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(rest)
}

// placeholderPhone returns a random number that can never be a real
// canonical mobile number, for schemas that require a phone.
func placeholderPhone() (string, error) {
	digits, err := security.GenerateNumericCode(placeholderPhoneDigit)
	if err != nil {
		return "", err
	}
	return "oauth-" + digits, nil
}
