package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/cache"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
	"github.com/vasapolrittideah/identity-portal/shared/security"
)

func TestRegistrationTwoSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register := f.register()

	err := register.RegisterStep1(ctx, RegisterParams{Email: "New@Example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("RegisterStep1: %v", err)
	}

	if !f.mr.Exists(cache.PendingRegistrationKey("new@example.com")) {
		t.Fatal("pending registration not stored")
	}
	if count, _ := f.repo.Count(ctx); count != 0 {
		t.Fatalf("identity created before confirmation, count = %d", count)
	}

	email := f.notifier.lastEmail(t)
	if email.To[0] != "new@example.com" {
		t.Fatalf("verification mailed to %v", email.To)
	}
	token := extract(t, tokenParam, email.HTMLBody)

	identity, tokens, err := register.RegisterStep2(ctx, token)
	if err != nil {
		t.Fatalf("RegisterStep2: %v", err)
	}
	if identity.Email != "new@example.com" || identity.AuthProvider != model.ProviderLocal || !identity.IsActive {
		t.Fatalf("unexpected identity %+v", identity)
	}
	if identity.UserType != model.UserTypeIndividual {
		t.Fatalf("user type = %q", identity.UserType)
	}

	claims, err := f.tokens.Parse(auth.KindAccess, tokens.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != identity.ID {
		t.Fatalf("access token subject %q, want %q", claims.Subject, identity.ID)
	}

	// The stored password works for login.
	if _, err := f.login().LoginWithPassword(ctx, LoginParams{Identifier: "new@example.com", Password: testPassword}); err != nil {
		t.Fatalf("login after registration: %v", err)
	}

	if _, _, err := register.RegisterStep2(ctx, token); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Fatalf("expected replay to fail with ErrTokenInvalidOrExpired, got %v", err)
	}
}

func TestRegisterStep1Rejections(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, "taken@example.com", "")
	register := f.register()

	tests := []struct {
		name   string
		params RegisterParams
		want   error
	}{
		{
			name:   "duplicate email",
			params: RegisterParams{Email: "Taken@example.com", Password: testPassword},
			want:   ErrDuplicateRegistration,
		},
		{
			name:   "no uppercase",
			params: RegisterParams{Email: "a@example.com", Password: "password1"},
			want:   security.ErrPasswordNoUppercase,
		},
		{
			name:   "no digit",
			params: RegisterParams{Email: "a@example.com", Password: "Password"},
			want:   security.ErrPasswordNoDigit,
		},
		{
			name:   "bad user type",
			params: RegisterParams{Email: "a@example.com", Password: testPassword, UserType: "robot"},
			want:   ErrInvalidUserType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := register.RegisterStep1(context.Background(), tt.params); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	if emails, _ := f.notifier.count(); emails != 0 {
		t.Fatalf("sent %d emails for rejected registrations", emails)
	}
}

func TestRegisterStep2ExpiredPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register := f.register()

	if err := register.RegisterStep1(ctx, RegisterParams{Email: "late@example.com", Password: testPassword}); err != nil {
		t.Fatal(err)
	}
	token := extract(t, tokenParam, f.notifier.lastEmail(t).HTMLBody)

	f.mr.FastForward(f.cfg.Token.EmailVerificationExpiresIn)

	if _, _, err := register.RegisterStep2(ctx, token); !errors.Is(err, ErrTokenInvalidOrExpired) {
		t.Fatalf("expected ErrTokenInvalidOrExpired, got %v", err)
	}
}

func TestRegisterStep2EmailTakenMeanwhile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register := f.register()

	if err := register.RegisterStep1(ctx, RegisterParams{Email: "race@example.com", Password: testPassword}); err != nil {
		t.Fatal(err)
	}
	token := extract(t, tokenParam, f.notifier.lastEmail(t).HTMLBody)

	f.seedOAuth(t, "race@example.com", "g-9")

	if _, _, err := register.RegisterStep2(ctx, token); !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("expected ErrDuplicateRegistration, got %v", err)
	}
}

func TestRegisterStep2RejectsOtherTokenKinds(t *testing.T) {
	f := newFixture(t)

	access, _, err := f.tokens.Issue(auth.KindAccess, "someone@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.register().RegisterStep2(context.Background(), access); err == nil {
		t.Fatal("an access token must not confirm a registration")
	}
}
