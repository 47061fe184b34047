package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

var (
	ErrTokenExpired          = apperror.New(apperror.KindAuthentication, "token_expired", "token has expired")
	ErrTokenMalformed        = apperror.New(apperror.KindAuthentication, "token_malformed", "token is malformed")
	ErrTokenInvalidSignature = apperror.New(apperror.KindAuthentication, "token_invalid_signature", "token signature is invalid")
	ErrTokenInvalid          = apperror.New(apperror.KindAuthentication, "token_invalid", "token is invalid")
)

// JWTAuthenticator represents a JWT based authenticator using an HMAC signing method.
type JWTAuthenticator struct {
	audience string
	issuer   string
	method   *jwt.SigningMethodHMAC
	now      func() time.Time
}

// NewJWTAuthenticator creates a new JWTAuthenticator instance. algorithm is
// one of HS256, HS384 or HS512; an empty value selects HS512.
func NewJWTAuthenticator(audience, issuer, algorithm string) (JWTAuthenticator, error) {
	var method *jwt.SigningMethodHMAC
	switch strings.ToUpper(algorithm) {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512", "":
		method = jwt.SigningMethodHS512
	default:
		return JWTAuthenticator{}, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return JWTAuthenticator{
		audience: audience,
		issuer:   issuer,
		method:   method,
		now:      time.Now,
	}, nil
}

// WithClock returns a copy of the authenticator that reads time from now.
func (a JWTAuthenticator) WithClock(now func() time.Time) JWTAuthenticator {
	a.now = now
	return a
}

// Now returns the authenticator's current time.
func (a *JWTAuthenticator) Now() time.Time {
	return a.now()
}

// Issuer returns the configured issuer, empty when none.
func (a *JWTAuthenticator) Issuer() string {
	return a.issuer
}

// Audience returns the configured audience, empty when none.
func (a *JWTAuthenticator) Audience() string {
	return a.audience
}

// GenerateToken generates a JWT token with the given claims and secret.
// This is generic and accepts any type that implements jwt.Claims.
func (a *JWTAuthenticator) GenerateToken(claims jwt.Claims, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("empty signing secret")
	}

	token := jwt.NewWithClaims(a.method, claims)

	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

// ValidateTokenWithClaims validates a JWT token and parses it into the provided claims type.
// The claims parameter should be a pointer to a struct that implements jwt.Claims.
// The returned error is one of the ErrToken* sentinels, wrapped with the parser's reason.
func (a *JWTAuthenticator) ValidateTokenWithClaims(tokenString, secret string, claims jwt.Claims) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	}, a.parserOptions()...)
	if err != nil {
		return nil, classify(err)
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	return token, nil
}

func (a *JWTAuthenticator) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	return opts
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
