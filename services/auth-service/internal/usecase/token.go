package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
)

// Tokens is an access/refresh pair.
type Tokens struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// TokenUsecase issues and verifies every kind of signed token.
type TokenUsecase interface {
	Issue(kind auth.TokenKind, subject string) (string, time.Time, error)
	IssueWithTTL(kind auth.TokenKind, subject string, ttl time.Duration) (string, time.Time, error)

	// Parse checks signature, algorithm, expiry and the type claim. It does
	// not look anything up.
	Parse(kind auth.TokenKind, token string) (*auth.Claims, error)

	// Authenticate parses a token whose subject is an identity id and loads
	// that identity. Missing, inactive or deleted identities yield
	// ErrSubjectNotFound.
	Authenticate(ctx context.Context, kind auth.TokenKind, token string) (*model.Identity, error)

	IssuePair(subject string) (*Tokens, error)

	// RefreshCycle mints a new pair for the subject of a valid refresh
	// token. The presented refresh token stays valid until it expires.
	RefreshCycle(ctx context.Context, refreshToken string) (*Tokens, error)
}

var (
	ErrTokenWrongKind  = apperror.New(apperror.KindAuthentication, "token_wrong_kind", "token is not valid for this purpose")
	ErrSubjectNotFound = apperror.New(apperror.KindAuthentication, "token_subject_not_found", "token subject not found")
)

type tokenSettings struct {
	secret string
	ttl    time.Duration
}

type tokenUsecase struct {
	jwtAuth      auth.JWTAuthenticator
	identityRepo repository.IdentityRepository
	settings     map[auth.TokenKind]tokenSettings
}

// NewTokenUsecase creates a new instance of TokenUsecase.
func NewTokenUsecase(
	jwtAuth auth.JWTAuthenticator,
	identityRepo repository.IdentityRepository,
	tokenCfg config.TokenConfig,
) TokenUsecase {
	return &tokenUsecase{
		jwtAuth:      jwtAuth,
		identityRepo: identityRepo,
		settings: map[auth.TokenKind]tokenSettings{
			auth.KindAccess:            {tokenCfg.AccessTokenSecret, tokenCfg.AccessTokenExpiresIn},
			auth.KindRefresh:           {tokenCfg.RefreshTokenSecret, tokenCfg.RefreshTokenExpiresIn},
			auth.KindEmailVerification: {tokenCfg.EmailVerificationSecret, tokenCfg.EmailVerificationExpiresIn},
			auth.KindMagicLink:         {tokenCfg.MagicLinkSecret, tokenCfg.MagicLinkExpiresIn},
		},
	}
}

func (u *tokenUsecase) settingsFor(kind auth.TokenKind) (tokenSettings, error) {
	s, ok := u.settings[kind]
	if !ok {
		return tokenSettings{}, fmt.Errorf("unknown token kind %q", kind)
	}
	return s, nil
}

func (u *tokenUsecase) Issue(kind auth.TokenKind, subject string) (string, time.Time, error) {
	s, err := u.settingsFor(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	return u.IssueWithTTL(kind, subject, s.ttl)
}

func (u *tokenUsecase) IssueWithTTL(kind auth.TokenKind, subject string, ttl time.Duration) (string, time.Time, error) {
	s, err := u.settingsFor(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	now := u.jwtAuth.Now()
	expiresAt := now.Add(ttl)

	claims := &auth.Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if iss := u.jwtAuth.Issuer(); iss != "" {
		claims.Issuer = iss
	}
	if aud := u.jwtAuth.Audience(); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}

	token, err := u.jwtAuth.GenerateToken(claims, s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

func (u *tokenUsecase) Parse(kind auth.TokenKind, token string) (*auth.Claims, error) {
	s, err := u.settingsFor(kind)
	if err != nil {
		return nil, err
	}

	var claims auth.Claims
	if _, err := u.jwtAuth.ValidateTokenWithClaims(token, s.secret, &claims); err != nil {
		return nil, err
	}

	if claims.Type != kind {
		return nil, ErrTokenWrongKind
	}
	if claims.Subject == "" {
		return nil, auth.ErrTokenInvalid
	}

	return &claims, nil
}

func (u *tokenUsecase) Authenticate(ctx context.Context, kind auth.TokenKind, token string) (*model.Identity, error) {
	if kind == auth.KindEmailVerification {
		return nil, fmt.Errorf("%s tokens do not name an identity", kind)
	}

	claims, err := u.Parse(kind, token)
	if err != nil {
		return nil, err
	}

	identity, err := u.identityRepo.FindActiveByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}

	return identity, nil
}

func (u *tokenUsecase) IssuePair(subject string) (*Tokens, error) {
	accessToken, accessExp, err := u.Issue(auth.KindAccess, subject)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExp, err := u.Issue(auth.KindRefresh, subject)
	if err != nil {
		return nil, err
	}

	return &Tokens{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

func (u *tokenUsecase) RefreshCycle(ctx context.Context, refreshToken string) (*Tokens, error) {
	identity, err := u.Authenticate(ctx, auth.KindRefresh, refreshToken)
	if err != nil {
		return nil, err
	}

	return u.IssuePair(identity.ID)
}
