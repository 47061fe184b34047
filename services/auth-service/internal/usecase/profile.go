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
	"github.com/vasapolrittideah/identity-portal/shared/identifier"
	"github.com/vasapolrittideah/identity-portal/shared/security"
	"github.com/vasapolrittideah/identity-portal/shared/sms"
)

// ProfileUsecase manages a signed-in identity's own contact details and profile.
type ProfileUsecase interface {
	GetProfile(identity *model.Identity) *Profile
	UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*Profile, error)

	RequestEmailChange(ctx context.Context, userID, newEmail string) error
	ConfirmEmailChange(ctx context.Context, userID, newEmail, code string) (*Profile, error)

	// RequestPhoneChange texts a code to phone. isNew selects the template
	// for setting a first phone number rather than replacing one.
	RequestPhoneChange(ctx context.Context, userID, phone string, isNew bool) error
	ConfirmPhoneChange(ctx context.Context, userID, phone, code string) (*Profile, error)
}

// Profile is the client view of an identity.
type Profile struct {
	ID                 string                   `json:"id"`
	Email              string                   `json:"email"`
	PhoneNumber        string                   `json:"phone_number"`
	VerifiedPhone      bool                     `json:"verified_phone"`
	FirstName          string                   `json:"first_name"`
	LastName           string                   `json:"last_name"`
	ProfileImage       string                   `json:"profile_image"`
	UserType           model.UserType           `json:"user_type"`
	AuthProvider       model.AuthProvider       `json:"auth_provider"`
	NotificationMethod model.NotificationMethod `json:"notification_method"`
}

// UpdateProfileParams defines the optional parameters for updating a profile.
// Only the fields that are not nil will be updated.
type UpdateProfileParams struct {
	FirstName    *string
	LastName     *string
	ProfileImage *string
}

var (
	ErrEmailFormat = apperror.Validation("email_format", "invalid email address")
	ErrEmailInUse  = apperror.New(apperror.KindConflict, "email_in_use", "email address is already in use")
	ErrPhoneInUse  = apperror.New(apperror.KindConflict, "phone_in_use", "phone number is already in use")
)

type profileUsecase struct {
	logger       *zerolog.Logger
	identityRepo repository.IdentityRepository
	codeStore    cache.CodeStore
	notifier     notify.Notifier
	cfg          *config.AuthServiceConfig
}

// NewProfileUsecase creates a new instance of ProfileUsecase.
func NewProfileUsecase(
	logger *zerolog.Logger,
	identityRepo repository.IdentityRepository,
	codeStore cache.CodeStore,
	notifier notify.Notifier,
	cfg *config.AuthServiceConfig,
) ProfileUsecase {
	return &profileUsecase{
		logger:       logger,
		identityRepo: identityRepo,
		codeStore:    codeStore,
		notifier:     notifier,
		cfg:          cfg,
	}
}

func newProfile(identity *model.Identity) *Profile {
	phone := identity.Phone()
	return &Profile{
		ID:                 identity.ID,
		Email:              identity.Email,
		PhoneNumber:        phone,
		VerifiedPhone:      identifier.IsCanonicalPhone(phone),
		FirstName:          identity.FirstName,
		LastName:           identity.LastName,
		ProfileImage:       identity.ProfileImage,
		UserType:           identity.UserType,
		AuthProvider:       identity.AuthProvider,
		NotificationMethod: identity.NotificationMethod,
	}
}

func (u *profileUsecase) GetProfile(identity *model.Identity) *Profile {
	return newProfile(identity)
}

func (u *profileUsecase) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*Profile, error) {
	identity, err := u.identityRepo.UpdateProfile(ctx, userID, repository.UpdateProfileParams{
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		ProfileImage: params.ProfileImage,
	})
	if err != nil {
		return nil, err
	}

	return newProfile(identity), nil
}

func (u *profileUsecase) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	email, err := parseEmail(newEmail)
	if err != nil {
		return err
	}

	identity, err := u.activeIdentity(ctx, userID)
	if err != nil {
		return err
	}
	if !identity.IsLocal() {
		return ErrWrongProvider
	}

	if err := ensureEmailFree(ctx, u.identityRepo, email, ErrEmailInUse); err != nil {
		return err
	}

	code, err := u.storeChangeCode(ctx, cache.EmailChangeKey(identity.ID, email))
	if err != nil {
		return err
	}

	u.notifier.Email(emailChangeEmail(identity, email, code, u.cfg.Code.ContactChangeExpiresIn))

	return nil
}

func (u *profileUsecase) ConfirmEmailChange(ctx context.Context, userID, newEmail, code string) (*Profile, error) {
	email, err := parseEmail(newEmail)
	if err != nil {
		return nil, err
	}

	if err := consumeCode(ctx, u.codeStore, cache.EmailChangeKey(userID, email), code); err != nil {
		return nil, err
	}

	var updated *model.Identity
	err = u.identityRepo.WithinTransaction(ctx, func(ctx context.Context, repo repository.IdentityRepository) error {
		if err := ensureEmailFree(ctx, repo, email, ErrEmailInUse); err != nil {
			return err
		}

		identity, err := repo.UpdateEmail(ctx, userID, email)
		if err != nil {
			return err
		}

		updated = identity
		return nil
	})
	if err != nil {
		return nil, translateChangeError(err, ErrEmailInUse)
	}

	u.logger.Info().Str("identity_id", updated.ID).Msg("email address changed")

	return newProfile(updated), nil
}

func (u *profileUsecase) RequestPhoneChange(ctx context.Context, userID, phone string, isNew bool) error {
	phone, err := identifier.NormalizePhone(phone)
	if err != nil {
		return err
	}

	identity, err := u.activeIdentity(ctx, userID)
	if err != nil {
		return err
	}

	if err := u.ensurePhoneFree(ctx, phone); err != nil {
		return err
	}

	code, err := u.storeChangeCode(ctx, cache.PhoneChangeKey(identity.ID, phone))
	if err != nil {
		return err
	}

	template := sms.TemplateChangePhone
	if isNew {
		template = sms.TemplateNewPhone
	}
	u.notifier.SMS(sms.Message{Mobile: phone, Code: code, Template: template})

	return nil
}

func (u *profileUsecase) ConfirmPhoneChange(ctx context.Context, userID, phone, code string) (*Profile, error) {
	phone, err := identifier.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	if err := consumeCode(ctx, u.codeStore, cache.PhoneChangeKey(userID, phone), code); err != nil {
		return nil, err
	}

	updated, err := u.identityRepo.UpdatePhone(ctx, userID, phone)
	if err != nil {
		return nil, translateChangeError(err, ErrPhoneInUse)
	}

	u.logger.Info().Str("identity_id", updated.ID).Msg("phone number changed")

	return newProfile(updated), nil
}

func (u *profileUsecase) activeIdentity(ctx context.Context, userID string) (*model.Identity, error) {
	identity, err := u.identityRepo.FindActiveByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return identity, nil
}

func (u *profileUsecase) ensurePhoneFree(ctx context.Context, phone string) error {
	_, err := u.identityRepo.FindAnyByPhone(ctx, phone)
	switch {
	case err == nil:
		return ErrPhoneInUse
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (u *profileUsecase) storeChangeCode(ctx context.Context, key string) (string, error) {
	code, err := security.GenerateNumericCode(otpDigits)
	if err != nil {
		return "", err
	}

	if err := u.codeStore.Set(ctx, key, cache.CodeValue(code), u.cfg.Code.ContactChangeExpiresIn); err != nil {
		return "", err
	}

	return code, nil
}

func parseEmail(raw string) (string, error) {
	kind, err := identifier.Classify(raw)
	if err != nil {
		return "", err
	}
	if kind != identifier.TypeEmail {
		return "", ErrEmailFormat
	}
	return identifier.NormalizeEmail(raw), nil
}

// translateChangeError maps a lost race on a unique column to inUse and a
// vanished identity to ErrSubjectNotFound.
func translateChangeError(err, inUse error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", inUse, err)
	case errors.Is(err, repository.ErrNotFound):
		return ErrSubjectNotFound
	default:
		return err
	}
}
