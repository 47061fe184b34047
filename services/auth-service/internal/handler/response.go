package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-portal/shared/apperror"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
)

const (
	detailSuccess            = "Success"
	detailInvalidCredentials = "invalid credentials"
	detailInternal           = "something went wrong"
	detailUnavailable        = "service temporarily unavailable"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
	Data       any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, detail string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{StatusCode: status, Detail: detail, Data: data})
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, detailSuccess, data)
}

// writeError maps err to a status code and a client-safe detail.
//
// Authentication failures share one detail so callers cannot tell an
// unknown account from a wrong secret or a federated account; expiry is
// the only one reported as such.
func writeError(logger *zerolog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classifyError(err)

	event := logger.Debug()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, detail, nil)
}

func classifyError(err error) (int, string) {
	appErr, _ := apperror.As(err)

	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return http.StatusBadRequest, appErr.Detail
	case apperror.KindAuthentication:
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return http.StatusUnauthorized, auth.ErrTokenExpired.Detail
		case errors.Is(err, usecase.ErrTokenInvalidOrExpired), errors.Is(err, usecase.ErrInvalidOAuthState):
			return http.StatusUnauthorized, appErr.Detail
		default:
			return http.StatusUnauthorized, detailInvalidCredentials
		}
	case apperror.KindConflict:
		return http.StatusConflict, appErr.Detail
	case apperror.KindNotFound:
		return http.StatusNotFound, appErr.Detail
	case apperror.KindDependency:
		return http.StatusServiceUnavailable, detailUnavailable
	default:
		return http.StatusInternalServerError, detailInternal
	}
}
