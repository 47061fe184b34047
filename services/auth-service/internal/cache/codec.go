package cache

import (
	"encoding/json"
	"fmt"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
)

const valueVersionV1 = 1

// ValueKind tags the payload carried by a Value.
type ValueKind string

const (
	KindCode                ValueKind = "code"
	KindPendingRegistration ValueKind = "pending_registration"
)

// Value is a cache entry. Exactly one payload is set, matching Kind.
type Value struct {
	Kind    ValueKind
	Code    string
	Pending *model.PendingRegistration
}

// CodeValue wraps a one-time code.
func CodeValue(code string) Value {
	return Value{Kind: KindCode, Code: code}
}

// PendingValue wraps a registration awaiting confirmation.
func PendingValue(p model.PendingRegistration) Value {
	return Value{Kind: KindPendingRegistration, Pending: &p}
}

type envelope struct {
	V       int                        `json:"v"`
	Kind    ValueKind                  `json:"kind"`
	Code    string                     `json:"code,omitempty"`
	Pending *model.PendingRegistration `json:"pending,omitempty"`
}

func encodeValue(v Value) ([]byte, error) {
	switch v.Kind {
	case KindCode:
		if v.Code == "" || v.Pending != nil {
			return nil, fmt.Errorf("%w: code value needs exactly a code", ErrCodec)
		}
	case KindPendingRegistration:
		if v.Pending == nil || v.Code != "" {
			return nil, fmt.Errorf("%w: pending value needs exactly a registration", ErrCodec)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrCodec, v.Kind)
	}

	return json.Marshal(envelope{
		V:       valueVersionV1,
		Kind:    v.Kind,
		Code:    v.Code,
		Pending: v.Pending,
	})
}

func decodeValue(data []byte) (Value, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if e.V != valueVersionV1 {
		return Value{}, fmt.Errorf("%w: unsupported version %d", ErrCodec, e.V)
	}

	switch e.Kind {
	case KindCode:
		if e.Code == "" {
			return Value{}, fmt.Errorf("%w: code entry without code", ErrCodec)
		}
		return CodeValue(e.Code), nil
	case KindPendingRegistration:
		if e.Pending == nil {
			return Value{}, fmt.Errorf("%w: pending entry without registration", ErrCodec)
		}
		return PendingValue(*e.Pending), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown kind %q", ErrCodec, e.Kind)
	}
}
