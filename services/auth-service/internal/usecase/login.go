package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"

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
	"github.com/vasapolrittideah/identity-portal/shared/sms"
)

// LoginUsecase defines the credential checks for every local login path.
// Each method returns the authenticated identity; the caller mints tokens.
type LoginUsecase interface {
	LoginWithPassword(ctx context.Context, params LoginParams) (*model.Identity, error)
	SendLoginOTP(ctx context.Context, phone string) error
	LoginWithPhone(ctx context.Context, phone, code string) (*model.Identity, error)
	SendMagicLink(ctx context.Context, email string) error
	LoginWithMagicLink(ctx context.Context, token string) (*model.Identity, error)
}

// LoginParams defines the parameters for password login. Identifier is an
// email address or a phone number.
type LoginParams struct {
	Identifier string
	Password   string
}

var (
	ErrInvalidCredentials = apperror.New(apperror.KindAuthentication, "invalid_credentials", "invalid credentials")
	ErrWrongProvider      = apperror.New(
		apperror.KindAuthentication,
		"wrong_provider",
		"account signs in with an external provider",
	)
)

type loginUsecase struct {
	logger       *zerolog.Logger
	identityRepo repository.IdentityRepository
	codeStore    cache.CodeStore
	tokens       TokenUsecase
	hasher       *security.Hasher
	notifier     notify.Notifier
	cfg          *config.AuthServiceConfig
}

// NewLoginUsecase creates a new instance of LoginUsecase.
func NewLoginUsecase(
	logger *zerolog.Logger,
	identityRepo repository.IdentityRepository,
	codeStore cache.CodeStore,
	tokens TokenUsecase,
	hasher *security.Hasher,
	notifier notify.Notifier,
	cfg *config.AuthServiceConfig,
) LoginUsecase {
	return &loginUsecase{
		logger:       logger,
		identityRepo: identityRepo,
		codeStore:    codeStore,
		tokens:       tokens,
		hasher:       hasher,
		notifier:     notifier,
		cfg:          cfg,
	}
}

func (u *loginUsecase) LoginWithPassword(ctx context.Context, params LoginParams) (*model.Identity, error) {
	identity, err := u.lookupIdentifier(ctx, params.Identifier)
	if err != nil {
		return nil, err
	}

	if !identity.IsLocal() {
		return nil, ErrWrongProvider
	}

	ok, err := u.hasher.Verify(ctx, params.Password, identity.PasswordHash, identity.Salt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return identity, nil
}

// lookupIdentifier resolves an email or phone to an active identity.
// Usernames are not supported and, like unknown users, yield
// ErrInvalidCredentials.
func (u *loginUsecase) lookupIdentifier(ctx context.Context, raw string) (*model.Identity, error) {
	kind, err := identifier.Classify(raw)
	if err != nil {
		return nil, err
	}

	var identity *model.Identity
	switch kind {
	case identifier.TypeEmail:
		identity, err = u.identityRepo.FindActiveByEmail(ctx, identifier.NormalizeEmail(raw))
	case identifier.TypePhone:
		phone, perr := identifier.NormalizePhone(raw)
		if perr != nil {
			return nil, perr
		}
		identity, err = u.identityRepo.FindActiveByPhone(ctx, phone)
	default:
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return identity, nil
}

func (u *loginUsecase) SendLoginOTP(ctx context.Context, phone string) error {
	phone, err := identifier.NormalizePhone(phone)
	if err != nil {
		return err
	}

	if _, err := u.identityRepo.FindActiveByPhone(ctx, phone); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	code, err := security.GenerateNumericCode(otpDigits)
	if err != nil {
		return err
	}

	if err := u.codeStore.Set(ctx, cache.OTPKey(phone), cache.CodeValue(code), u.cfg.Code.OTPExpiresIn); err != nil {
		return err
	}

	u.notifier.SMS(sms.Message{Mobile: phone, Code: code, Template: sms.TemplateLogin})

	return nil
}

func (u *loginUsecase) LoginWithPhone(ctx context.Context, phone, code string) (*model.Identity, error) {
	phone, err := identifier.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	identity, err := u.identityRepo.FindActiveByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := consumeCode(ctx, u.codeStore, cache.OTPKey(phone), code); err != nil {
		return nil, err
	}

	return identity, nil
}

func (u *loginUsecase) SendMagicLink(ctx context.Context, email string) error {
	identity, err := u.identityRepo.FindActiveByEmail(ctx, identifier.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if !identity.IsLocal() {
		return ErrWrongProvider
	}

	token, _, err := u.tokens.Issue(auth.KindMagicLink, identity.ID)
	if err != nil {
		return err
	}

	u.notifier.Email(magicLinkEmail(identity, u.cfg.MagicLinkURL(token), u.cfg.Token.MagicLinkExpiresIn))

	return nil
}

func (u *loginUsecase) LoginWithMagicLink(ctx context.Context, token string) (*model.Identity, error) {
	identity, err := u.tokens.Authenticate(ctx, auth.KindMagicLink, token)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return identity, nil
}

const otpDigits = 6

// consumeCode removes the code stored at key and compares it with the
// submitted one. The entry is gone afterwards whether or not it matched.
func consumeCode(ctx context.Context, store cache.CodeStore, key, submitted string) error {
	v, err := store.Consume(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrAbsent) {
			return ErrInvalidCredentials
		}
		return err
	}

	if !codesEqual(v, submitted) {
		return ErrInvalidCredentials
	}

	return nil
}

// verifyCode compares the submitted code without consuming the entry.
func verifyCode(ctx context.Context, store cache.CodeStore, key, submitted string) error {
	v, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrAbsent) {
			return ErrInvalidCredentials
		}
		return err
	}

	if !codesEqual(v, submitted) {
		return ErrInvalidCredentials
	}

	return nil
}

// codesEqual compares codes numerically, so leading zeros and surrounding
// space do not matter. Anything but decimal digits never matches.
func codesEqual(v cache.Value, submitted string) bool {
	if v.Kind != cache.KindCode {
		return false
	}
	want, ok := parseCode(v.Code)
	if !ok {
		return false
	}
	got, ok := parseCode(submitted)
	return ok && got == want
}

func parseCode(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return n, err == nil
}
