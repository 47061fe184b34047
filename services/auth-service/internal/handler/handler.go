// Package handler exposes the auth-service usecases over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
	"github.com/vasapolrittideah/identity-portal/shared/interceptor"
)

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Logger        *zerolog.Logger
	Config        *config.AuthServiceConfig
	Tokens        usecase.TokenUsecase
	Login         usecase.LoginUsecase
	OAuth         usecase.OAuthUsecase
	Register      usecase.RegisterUsecase
	PasswordReset usecase.PasswordResetUsecase
	Profile       usecase.ProfileUsecase
}

var requests = newRequestValidator()

// NewRouter builds the HTTP API.
func NewRouter(d *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger)...)
	r.Use(middleware.Recoverer)
	if d.Config.HTTP.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.Config.HTTP.RequestTimeout))
	}
	if len(d.Config.HTTP.AllowedOrigins) > 0 {
		r.Use(corsHandler(d.Config.HTTP.AllowedOrigins))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/email", loginWithPassword(d))
			r.Post("/phone/otp-send", sendLoginOTP(d))
			r.Post("/phone", loginWithPhone(d))
			r.Post("/magic", sendMagicLink(d))
			r.Post("/magic/verify", loginWithMagicLink(d))
			r.Post("/logout", logout(d))
			r.Get("/{provider}/login", oauthLogin(d))
			r.Get("/{provider}/callback", oauthCallback(d))
		})

		r.Post("/register", registerStep1(d))
		r.Post("/register/verify", registerStep2(d))
		r.Post("/token/refresh", refreshToken(d))

		r.Route("/user", func(r chi.Router) {
			r.Post("/forget/password/email", forgetPasswordByEmail(d))
			r.Post("/forget/password/phone", forgetPasswordByPhone(d))
			r.Post("/forget/password/reset", resetPassword(d))

			r.Group(func(r chi.Router) {
				r.Use(requireIdentity(d))
				r.Get("/profile", getProfile(d))
				r.Patch("/profile", updateProfile(d))
				r.Post("/profile/email/send-code", sendEmailChangeCode(d))
				r.Patch("/profile/email/verify", verifyEmailChange(d))
				r.Post("/profile/phone/set/send-code", sendPhoneChangeCode(d, true))
				r.Post("/profile/phone/change/send-code", sendPhoneChangeCode(d, false))
				r.Patch("/profile/phone-number/verify", verifyPhoneChange(d))
			})
		})
	})

	return r
}

// requireIdentity admits requests carrying a valid access token in the
// Authorization header or the auth cookie.
func requireIdentity(d *Deps) func(http.Handler) http.Handler {
	authenticate := func(ctx context.Context, token string) (*model.Identity, error) {
		return d.Tokens.Authenticate(ctx, auth.KindAccess, token)
	}
	onFailure := func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(d.Logger, w, r, err)
	}

	return interceptor.NewJWTMiddleware[*model.Identity](
		authenticate,
		onFailure,
		interceptor.BearerHeader,
		cookieAccessToken(d.Config.Cookie.Name),
	)
}

func currentIdentity(r *http.Request) *model.Identity {
	identity, _ := interceptor.FromContext[*model.Identity](r.Context())
	return identity
}

// issueSession mints a token pair for identity, sets the auth cookie and
// writes the pair as the response body.
func issueSession(d *Deps, w http.ResponseWriter, r *http.Request, identity *model.Identity) {
	tokens, err := d.Tokens.IssuePair(identity.ID)
	if err != nil {
		writeError(d.Logger, w, r, err)
		return
	}

	setAuthCookie(w, d.Config, tokens)
	writeOK(w, newLoginResponse(tokens))
}
