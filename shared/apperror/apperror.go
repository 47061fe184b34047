// Package apperror provides kinded errors that the service core returns and
// the transport boundary maps to responses.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the boundary layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindConflict
	KindNotFound
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Error is a tagged error carrying a kind, a stable code and a human-readable detail.
type Error struct {
	Kind   Kind
	Code   string
	Detail string
	Err    error
}

// New creates a sentinel error. Sentinels are compared with errors.Is.
func New(kind Kind, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a validation error whose detail names the violated rule.
func Validation(code, detail string) *Error {
	return &Error{Kind: KindValidation, Code: code, Detail: detail}
}

// Dependency wraps a failure of an external collaborator (cache, store, provider).
func Dependency(op string, err error) *Error {
	return &Error{Kind: KindDependency, Code: "dependency_unavailable", Detail: op, Err: err}
}

// KindOf returns the kind of the first *Error found in err's chain,
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
