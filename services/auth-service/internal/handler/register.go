package handler

import (
	"net/http"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
)

func registerStep1(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		err := d.Register.RegisterStep1(r.Context(), usecase.RegisterParams{
			Email:    req.Email,
			Password: req.Password,
			UserType: model.UserType(req.UserType),
		})
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, nil)
	}
}

func registerStep2(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if err := requests.decode(r, &req); err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		identity, tokens, err := d.Register.RegisterStep2(r.Context(), req.Token)
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		setAuthCookie(w, d.Config, tokens)
		writeOK(w, RegisterResponse{
			Profile:       d.Profile.GetProfile(identity),
			LoginResponse: newLoginResponse(tokens),
		})
	}
}
