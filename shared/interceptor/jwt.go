// Package interceptor authenticates inbound HTTP requests by token.
package interceptor

import (
	"context"
	"net/http"
	"strings"

	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

type contextKey struct{}

// ErrMissingToken is reported when no token source yields a token.
var ErrMissingToken = apperror.New(apperror.KindAuthentication, "missing_token", "authentication required")

// TokenSource pulls a raw token out of a request; "" means absent.
type TokenSource func(r *http.Request) string

// Authenticate resolves a raw token to the principal stored in the context.
type Authenticate[T any] func(ctx context.Context, token string) (T, error)

// FailureHandler writes the response for a rejected request.
type FailureHandler func(w http.ResponseWriter, r *http.Request, err error)

// BearerHeader reads the token from an "Authorization: Bearer <t>" header.
func BearerHeader(r *http.Request) string {
	return StripBearer(r.Header.Get("Authorization"))
}

// StripBearer removes a case-insensitive "bearer " prefix. Values without
// the prefix yield "".
func StripBearer(value string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewJWTMiddleware returns middleware that takes the first token found in
// sources, authenticates it and stores the principal in the request context.
// Requests without a valid token never reach next.
func NewJWTMiddleware[T any](
	authenticate Authenticate[T],
	onFailure FailureHandler,
	sources ...TokenSource,
) func(http.Handler) http.Handler {
	if len(sources) == 0 {
		sources = []TokenSource{BearerHeader}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := firstToken(r, sources)
			if token == "" {
				onFailure(w, r, ErrMissingToken)
				return
			}

			principal, err := authenticate(r.Context(), token)
			if err != nil {
				onFailure(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func firstToken(r *http.Request, sources []TokenSource) string {
	for _, source := range sources {
		if token := source(r); token != "" {
			return token
		}
	}
	return ""
}

// FromContext returns the principal stored by NewJWTMiddleware.
func FromContext[T any](ctx context.Context) (T, bool) {
	principal, ok := ctx.Value(contextKey{}).(T)
	return principal, ok
}
