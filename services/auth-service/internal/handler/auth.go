package handler

import (
	"net/http"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-portal/shared/interceptor"
)

func loginWithPassword(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		identity, err := d.Login.LoginWithPassword(r.Context(), usecase.LoginParams{
			Identifier: req.Identifier,
			Password:   req.Password,
		})
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		issueSession(d, w, r, identity)
	}
}

func sendLoginOTP(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendOTPRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		if err := d.Login.SendLoginOTP(r.Context(), req.PhoneNumber); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, nil)
	}
}

func loginWithPhone(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PhoneLoginRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		identity, err := d.Login.LoginWithPhone(r.Context(), req.PhoneNumber, req.Code)
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		issueSession(d, w, r, identity)
	}
}

func sendMagicLink(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MagicLinkRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		if err := d.Login.SendMagicLink(r.Context(), req.Email); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, nil)
	}
}

func loginWithMagicLink(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		identity, err := d.Login.LoginWithMagicLink(r.Context(), req.Token)
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		issueSession(d, w, r, identity)
	}
}

// logout only drops the cookie; issued tokens stay valid until they expire.
func logout(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		clearAuthCookie(w, d.Config)
		writeOK(w, nil)
	}
}

func refreshToken(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := cookieRefreshToken(r, d.Config.Cookie.Name)
		if token == "" && r.ContentLength != 0 {
			var req RefreshRequest
			if err := requests.decode(r, &req); err != nil {
				writeError(d.Logger, w, r, err)
				return
			}
			token = req.RefreshToken
		}
		if token == "" {
			writeError(d.Logger, w, r, interceptor.ErrMissingToken)
			return
		}

		tokens, err := d.Tokens.RefreshCycle(r.Context(), token)
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		setAuthCookie(w, d.Config, tokens)
		writeOK(w, newLoginResponse(tokens))
	}
}
