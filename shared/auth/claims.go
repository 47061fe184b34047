package auth

import "github.com/golang-jwt/jwt/v5"

// TokenKind distinguishes the purposes a signed token can be minted for.
type TokenKind string

const (
	KindAccess            TokenKind = "access"
	KindRefresh           TokenKind = "refresh"
	KindEmailVerification TokenKind = "email_verification"
	KindMagicLink         TokenKind = "magic_link"
)

// Claims is the payload of every token: sub, iat, exp and type, plus iss
// and aud when the authenticator is configured with them.
type Claims struct {
	Type TokenKind `json:"type"`
	jwt.RegisteredClaims
}
