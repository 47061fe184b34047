package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

const maxBodyBytes = 1 << 20

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"   validate:"required"`
}

type LoginResponse struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	TokenType             string    `json:"token_type"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

func newLoginResponse(tokens *usecase.Tokens) LoginResponse {
	return LoginResponse{
		AccessToken:           tokens.AccessToken,
		RefreshToken:          tokens.RefreshToken,
		TokenType:             "bearer",
		AccessTokenExpiresAt:  tokens.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: tokens.RefreshTokenExpiresAt,
	}
}

type SendOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type PhoneLoginRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Code        string `json:"code"         validate:"required,numeric,len=6"`
}

type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}

type RegisterRequest struct {
	Email    string `json:"email"     validate:"required,email"`
	Password string `json:"password"  validate:"required,min=8"`
	UserType string `json:"user_type" validate:"omitempty,oneof=individual corporate"`
}

type RegisterResponse struct {
	Profile *usecase.Profile `json:"profile"`
	LoginResponse
}

type ForgetPasswordEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgetPasswordPhoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type ResetPasswordRequest struct {
	Identifier  string `json:"identifier"   validate:"required"`
	Code        string `json:"code"         validate:"required,numeric,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type UpdateProfileRequest struct {
	FirstName    *string `json:"first_name"    validate:"omitempty,max=100"`
	LastName     *string `json:"last_name"     validate:"omitempty,max=100"`
	ProfileImage *string `json:"profile_image"`
}

type SendEmailCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required,numeric,len=6"`
}

type SendPhoneCodeRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type VerifyPhoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Code        string `json:"code"         validate:"required,numeric,len=6"`
}

var errMalformedBody = apperror.Validation("malformed_body", "request body is not valid JSON")

// requestValidator validates payloads and renders the first violation in English.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, translator); err != nil {
		panic(err)
	}

	return &requestValidator{validate: v, translator: translator}
}

// decode reads a JSON body into dst and validates it.
func (v *requestValidator) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errMalformedBody
	}

	return v.validateStruct(dst)
}

func (v *requestValidator) validateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return apperror.Validation("invalid_"+first.Field(), first.Translate(v.translator))
	}

	return apperror.Validation("invalid_request", err.Error())
}
