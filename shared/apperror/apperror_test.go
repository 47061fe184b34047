package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	sentinel := New(KindAuthentication, "invalid_credentials", "invalid credentials")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "sentinel", err: sentinel, want: KindAuthentication},
		{name: "wrapped sentinel", err: fmt.Errorf("login: %w", sentinel), want: KindAuthentication},
		{name: "dependency", err: Dependency("cache get", errors.New("dial tcp")), want: KindDependency},
		{name: "validation", err: Validation("phone_format", "invalid phone number format"), want: KindValidation},
		{name: "plain", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDependencyUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Dependency("cache get", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected dependency error to unwrap to its cause")
	}
	if err.Error() != "cache get: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
