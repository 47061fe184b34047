package handler

import (
	"net/http"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
)

func getProfile(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, d.Profile.GetProfile(currentIdentity(r)))
	}
}

func updateProfile(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateProfileRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		profile, err := d.Profile.UpdateProfile(r.Context(), currentIdentity(r).ID, usecase.UpdateProfileParams{
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			ProfileImage: req.ProfileImage,
		})
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, profile)
	}
}

func sendEmailChangeCode(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendEmailCodeRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		if err := d.Profile.RequestEmailChange(r.Context(), currentIdentity(r).ID, req.Email); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, nil)
	}
}

func verifyEmailChange(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyEmailRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		profile, err := d.Profile.ConfirmEmailChange(r.Context(), currentIdentity(r).ID, req.Email, req.Code)
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, profile)
	}
}

// sendPhoneChangeCode serves both the set and change routes; isNew picks
// the message template.
func sendPhoneChangeCode(d *Deps, isNew bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendPhoneCodeRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		err := d.Profile.RequestPhoneChange(r.Context(), currentIdentity(r).ID, req.PhoneNumber, isNew)
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, nil)
	}
}

func verifyPhoneChange(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyPhoneRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		profile, err := d.Profile.ConfirmPhoneChange(r.Context(), currentIdentity(r).ID, req.PhoneNumber, req.Code)
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, profile)
	}
}
