package handler

import (
	"net/http"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
)

func forgetPasswordByEmail(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgetPasswordEmailRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		if err := d.PasswordReset.RequestPasswordResetByEmail(r.Context(), req.Email); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, nil)
	}
}

func forgetPasswordByPhone(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgetPasswordPhoneRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		if err := d.PasswordReset.RequestPasswordResetByPhone(r.Context(), req.PhoneNumber); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, nil)
	}
}

// resetPassword signs the caller in once the new password is stored.
func resetPassword(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		identity, err := d.PasswordReset.ResetPassword(r.Context(), usecase.ResetPasswordParams{
			Identifier:  req.Identifier,
			Code:        req.Code,
			NewPassword: req.NewPassword,
		})
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		issueSession(d, w, r, identity)
	}
}
