package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/cache"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/notify"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
	"github.com/vasapolrittideah/identity-portal/shared/identifier"
	"github.com/vasapolrittideah/identity-portal/shared/security"
)

// RegisterUsecase implements two-step email registration: a pending record
// is parked in the code store until the emailed link is followed.
type RegisterUsecase interface {
	RegisterStep1(ctx context.Context, params RegisterParams) error
	RegisterStep2(ctx context.Context, token string) (*model.Identity, *Tokens, error)
}

// RegisterParams defines the parameters for starting a registration.
type RegisterParams struct {
	Email    string
	Password string
	UserType model.UserType
}

var (
	ErrDuplicateRegistration = apperror.New(
		apperror.KindConflict,
		"duplicate_registration",
		"an account with this email already exists",
	)
	ErrTokenInvalidOrExpired = apperror.New(
		apperror.KindAuthentication,
		"token_invalid_or_expired",
		"verification link is invalid or has expired",
	)
	ErrInvalidUserType = apperror.Validation("invalid_user_type", "user type must be individual or corporate")
)

type registerUsecase struct {
	logger       *zerolog.Logger
	identityRepo repository.IdentityRepository
	codeStore    cache.CodeStore
	tokens       TokenUsecase
	hasher       *security.Hasher
	notifier     notify.Notifier
	cfg          *config.AuthServiceConfig
}

// NewRegisterUsecase creates a new instance of RegisterUsecase.
func NewRegisterUsecase(
	logger *zerolog.Logger,
	identityRepo repository.IdentityRepository,
	codeStore cache.CodeStore,
	tokens TokenUsecase,
	hasher *security.Hasher,
	notifier notify.Notifier,
	cfg *config.AuthServiceConfig,
) RegisterUsecase {
	return &registerUsecase{
		logger:       logger,
		identityRepo: identityRepo,
		codeStore:    codeStore,
		tokens:       tokens,
		hasher:       hasher,
		notifier:     notifier,
		cfg:          cfg,
	}
}

func (u *registerUsecase) RegisterStep1(ctx context.Context, params RegisterParams) error {
	email := identifier.NormalizeEmail(params.Email)

	userType := params.UserType
	switch userType {
	case "":
		userType = model.UserTypeIndividual
	case model.UserTypeIndividual, model.UserTypeCorporate:
	default:
		return ErrInvalidUserType
	}

	if err := security.ValidatePasswordComplexity(params.Password); err != nil {
		return err
	}

	if err := ensureEmailFree(ctx, u.identityRepo, email, ErrDuplicateRegistration); err != nil {
		return err
	}

	hash, salt, err := u.hasher.Hash(ctx, params.Password)
	if err != nil {
		return err
	}

	pending := cache.PendingValue(model.PendingRegistration{
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		UserType:     userType,
	})
	ttl := u.cfg.Token.EmailVerificationExpiresIn
	if err := u.codeStore.Set(ctx, cache.PendingRegistrationKey(email), pending, ttl); err != nil {
		return err
	}

	token, _, err := u.tokens.Issue(auth.KindEmailVerification, email)
	if err != nil {
		return err
	}

	u.notifier.Email(verifyEmailEmail(email, u.cfg.VerifyEmailURL(token), ttl))

	return nil
}

func (u *registerUsecase) RegisterStep2(ctx context.Context, token string) (*model.Identity, *Tokens, error) {
	claims, err := u.tokens.Parse(auth.KindEmailVerification, token)
	if err != nil {
		return nil, nil, err
	}
	email := claims.Subject

	v, err := u.codeStore.Consume(ctx, cache.PendingRegistrationKey(email))
	if err != nil {
		if errors.Is(err, cache.ErrAbsent) {
			return nil, nil, ErrTokenInvalidOrExpired
		}
		return nil, nil, err
	}
	if v.Kind != cache.KindPendingRegistration || v.Pending.Email != email {
		return nil, nil, ErrTokenInvalidOrExpired
	}

	if err := ensureEmailFree(ctx, u.identityRepo, email, ErrDuplicateRegistration); err != nil {
		return nil, nil, err
	}

	identity, err := u.identityRepo.Create(ctx, &model.Identity{
		Email:              email,
		PasswordHash:       v.Pending.PasswordHash,
		Salt:               v.Pending.Salt,
		UserType:           v.Pending.UserType,
		IsActive:           true,
		AuthProvider:       model.ProviderLocal,
		NotificationMethod: model.NotifyEmail,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, fmt.Errorf("%w: %v", ErrDuplicateRegistration, err)
		}
		return nil, nil, err
	}

	u.logger.Info().Str("identity_id", identity.ID).Msg("registration completed")

	tokens, err := u.tokens.IssuePair(identity.ID)
	if err != nil {
		return nil, nil, err
	}

	return identity, tokens, nil
}

// ensureEmailFree returns taken when any identity, deleted or not,
// already owns email.
func ensureEmailFree(ctx context.Context, repo repository.IdentityRepository, email string, taken error) error {
	_, err := repo.FindAnyByEmail(ctx, email)
	switch {
	case err == nil:
		return taken
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return err
	}
}
