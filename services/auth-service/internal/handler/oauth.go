package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

var errOAuthDenied = apperror.New(apperror.KindAuthentication, "oauth_denied", "login was cancelled at the provider")

func oauthLogin(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := d.OAuth.LoginURL(r.Context(), chi.URLParam(r, "provider"))
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		writeOK(w, AuthURLResponse{URL: url})
	}
}

func oauthCallback(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("error") != "" {
			writeError(d.Logger, w, r, errOAuthDenied)
			return
		}

		identity, err := d.OAuth.HandleCallback(r.Context(), usecase.OAuthCallbackParams{
			Provider: chi.URLParam(r, "provider"),
			Code:     query.Get("code"),
			State:    query.Get("state"),
		})
		if err != nil {
			writeError(d.Logger, w, r, err)
			return
		}

		issueSession(d, w, r, identity)
	}
}
