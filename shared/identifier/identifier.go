// Package identifier classifies login identifiers and canonicalizes phone numbers.
package identifier

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

// Type is the lookup field an identifier resolves to.
type Type string

const (
	TypeEmail    Type = "email"
	TypePhone    Type = "phone"
	TypeUsername Type = "username"
)

var (
	ErrEmpty       = apperror.Validation("identifier_empty", "identifier cannot be empty")
	ErrPhoneFormat = apperror.Validation("phone_format", "invalid phone number format")

	digitsPattern = regexp.MustCompile(`^\+?\d+$`)
	phonePattern  = regexp.MustCompile(`^(?:\+98|0098|0)?9\d{9}$`)
	phoneStrip    = strings.NewReplacer(" ", "", "-", "")

	validate = validator.New()
)

// Classify reports whether s is an email, a phone number or an opaque username.
func Classify(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}

	if validate.Var(s, "required,email") == nil {
		return TypeEmail, nil
	}
	if digitsPattern.MatchString(phoneStrip.Replace(s)) {
		return TypePhone, nil
	}

	return TypeUsername, nil
}

// NormalizePhone canonicalizes +98…, 0098…, 9… and 09… mobile numbers to 09XXXXXXXXX.
func NormalizePhone(s string) (string, error) {
	v := phoneStrip.Replace(strings.TrimSpace(s))
	if !phonePattern.MatchString(v) {
		return "", ErrPhoneFormat
	}

	switch {
	case strings.HasPrefix(v, "+98"):
		v = v[3:]
	case strings.HasPrefix(v, "0098"):
		v = v[4:]
	case strings.HasPrefix(v, "0"):
		v = v[1:]
	}

	return "0" + v, nil
}

// IsCanonicalPhone reports whether s is already a canonical mobile number.
func IsCanonicalPhone(s string) bool {
	n, err := NormalizePhone(s)
	return err == nil && n == s
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
