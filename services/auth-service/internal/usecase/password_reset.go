package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/cache"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/notify"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-portal/shared/identifier"
	"github.com/vasapolrittideah/identity-portal/shared/security"
	"github.com/vasapolrittideah/identity-portal/shared/sms"
)

// PasswordResetUsecase defines the business logic for password recovery.
type PasswordResetUsecase interface {
	// RequestPasswordResetByEmail mails a reset code. Unknown addresses and
	// federated identities get no code and no error.
	RequestPasswordResetByEmail(ctx context.Context, email string) error

	// RequestPasswordResetByPhone texts a reset code, with the same silence
	// for unknown numbers and federated identities.
	RequestPasswordResetByPhone(ctx context.Context, phone string) error

	// ResetPassword replaces the password of the identity owning identifier
	// once the code sent to it is confirmed.
	ResetPassword(ctx context.Context, params ResetPasswordParams) (*model.Identity, error)
}

// ResetPasswordParams defines the parameters for completing a password reset.
// Identifier is the email or phone number the code was sent to.
type ResetPasswordParams struct {
	Identifier  string
	Code        string
	NewPassword string
}

type passwordResetUsecase struct {
	logger       *zerolog.Logger
	identityRepo repository.IdentityRepository
	codeStore    cache.CodeStore
	hasher       *security.Hasher
	notifier     notify.Notifier
	cfg          *config.AuthServiceConfig
}

// NewPasswordResetUsecase creates a new instance of PasswordResetUsecase.
func NewPasswordResetUsecase(
	logger *zerolog.Logger,
	identityRepo repository.IdentityRepository,
	codeStore cache.CodeStore,
	hasher *security.Hasher,
	notifier notify.Notifier,
	cfg *config.AuthServiceConfig,
) PasswordResetUsecase {
	return &passwordResetUsecase{
		logger:       logger,
		identityRepo: identityRepo,
		codeStore:    codeStore,
		hasher:       hasher,
		notifier:     notifier,
		cfg:          cfg,
	}
}

func (u *passwordResetUsecase) RequestPasswordResetByEmail(ctx context.Context, email string) error {
	email = identifier.NormalizeEmail(email)

	identity, err := u.identityRepo.FindActiveByEmail(ctx, email)
	if err != nil {
		return u.ignoreUnknown(err, "email", email)
	}
	if !identity.IsLocal() {
		u.logger.Debug().Str("email", email).Msg("password reset requested for federated identity")
		return nil
	}

	code, err := u.storeResetCode(ctx, email)
	if err != nil {
		return err
	}

	u.notifier.Email(passwordResetEmail(identity, code, u.cfg.Code.PasswordResetExpiresIn))

	return nil
}

func (u *passwordResetUsecase) RequestPasswordResetByPhone(ctx context.Context, phone string) error {
	phone, err := identifier.NormalizePhone(phone)
	if err != nil {
		return err
	}

	identity, err := u.identityRepo.FindActiveByPhone(ctx, phone)
	if err != nil {
		return u.ignoreUnknown(err, "phone", phone)
	}
	if !identity.IsLocal() {
		u.logger.Debug().Str("phone", phone).Msg("password reset requested for federated identity")
		return nil
	}

	code, err := u.storeResetCode(ctx, phone)
	if err != nil {
		return err
	}

	u.notifier.SMS(sms.Message{
		Mobile:   phone,
		Code:     code,
		Template: sms.TemplateForgetPassword,
		Params:   []string{identity.FullName()},
	})

	return nil
}

func (u *passwordResetUsecase) ResetPassword(ctx context.Context, params ResetPasswordParams) (*model.Identity, error) {
	if err := security.ValidatePasswordComplexity(params.NewPassword); err != nil {
		return nil, err
	}

	id, err := canonicalIdentifier(params.Identifier)
	if err != nil {
		return nil, err
	}

	key := cache.PasswordResetKey(id)
	if err := verifyCode(ctx, u.codeStore, key, params.Code); err != nil {
		return nil, err
	}

	hash, salt, err := u.hasher.Hash(ctx, params.NewPassword)
	if err != nil {
		return nil, err
	}

	identity, err := u.identityRepo.UpdatePasswordByIdentifier(ctx, id, repository.UpdatePasswordParams{
		PasswordHash: hash,
		Salt:         salt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// The password is already changed; a leftover code only expires later.
	if err := u.codeStore.Delete(ctx, key); err != nil {
		u.logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("failed to delete password reset code")
	}

	return identity, nil
}

func (u *passwordResetUsecase) storeResetCode(ctx context.Context, id string) (string, error) {
	code, err := security.GenerateNumericCode(otpDigits)
	if err != nil {
		return "", err
	}

	ttl := u.cfg.Code.PasswordResetExpiresIn
	if err := u.codeStore.Set(ctx, cache.PasswordResetKey(id), cache.CodeValue(code), ttl); err != nil {
		return "", err
	}

	return code, nil
}

func (u *passwordResetUsecase) ignoreUnknown(err error, field, value string) error {
	if errors.Is(err, repository.ErrNotFound) {
		u.logger.Debug().Str(field, value).Msg("password reset requested for unknown identity")
		return nil
	}
	return err
}

// canonicalIdentifier normalizes an email or phone the same way the
// request endpoints do, so both sides address the same code key.
func canonicalIdentifier(raw string) (string, error) {
	kind, err := identifier.Classify(raw)
	if err != nil {
		return "", err
	}

	switch kind {
	case identifier.TypeEmail:
		return identifier.NormalizeEmail(raw), nil
	case identifier.TypePhone:
		return identifier.NormalizePhone(raw)
	default:
		return "", ErrInvalidCredentials
	}
}
