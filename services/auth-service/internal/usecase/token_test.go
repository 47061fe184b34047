package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vasapolrittideah/identity-portal/shared/apperror"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
)

func TestIssueAndParse(t *testing.T) {
	f := newFixture(t)

	for _, kind := range []auth.TokenKind{
		auth.KindAccess, auth.KindRefresh, auth.KindEmailVerification, auth.KindMagicLink,
	} {
		t.Run(string(kind), func(t *testing.T) {
			token, expiresAt, err := f.tokens.Issue(kind, "subject-1")
			if err != nil {
				t.Fatal(err)
			}
			if !expiresAt.After(f.now) {
				t.Fatalf("expiry %v not after %v", expiresAt, f.now)
			}

			claims, err := f.tokens.Parse(kind, token)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if claims.Subject != "subject-1" || claims.Type != kind {
				t.Fatalf("unexpected claims %+v", claims)
			}
		})
	}
}

func TestParseZeroTTLIsExpired(t *testing.T) {
	f := newFixture(t)

	token, _, err := f.tokens.IssueWithTTL(auth.KindAccess, "subject-1", 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.tokens.Parse(auth.KindAccess, token); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	t.Run("distinct secrets", func(t *testing.T) {
		f := newFixture(t)
		refresh, _, err := f.tokens.Issue(auth.KindRefresh, "subject-1")
		if err != nil {
			t.Fatal(err)
		}

		_, err = f.tokens.Parse(auth.KindAccess, refresh)
		if !errors.Is(err, auth.ErrTokenInvalidSignature) {
			t.Fatalf("expected signature error, got %v", err)
		}
	})

	t.Run("shared secret", func(t *testing.T) {
		cfg := testConfig()
		cfg.Token.RefreshTokenSecret = cfg.Token.AccessTokenSecret
		f := newFixtureWithConfig(t, cfg)

		refresh, _, err := f.tokens.Issue(auth.KindRefresh, "subject-1")
		if err != nil {
			t.Fatal(err)
		}

		_, err = f.tokens.Parse(auth.KindAccess, refresh)
		if !errors.Is(err, ErrTokenWrongKind) {
			t.Fatalf("expected ErrTokenWrongKind, got %v", err)
		}
		if apperror.KindOf(err) != apperror.KindAuthentication {
			t.Fatalf("expected authentication kind, got %v", apperror.KindOf(err))
		}
	})
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.seedLocal(t, "ada@example.com", "")

	token, _, err := f.tokens.Issue(auth.KindAccess, identity.ID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.tokens.Authenticate(ctx, auth.KindAccess, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != identity.ID {
		t.Fatalf("authenticated %q, want %q", got.ID, identity.ID)
	}

	unknown, _, err := f.tokens.Issue(auth.KindAccess, "missing-id")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.tokens.Authenticate(ctx, auth.KindAccess, unknown); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound, got %v", err)
	}

	verification, _, err := f.tokens.Issue(auth.KindEmailVerification, identity.Email)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.tokens.Authenticate(ctx, auth.KindEmailVerification, verification); err == nil {
		t.Fatal("email verification tokens must not authenticate an identity")
	}
}

func TestRefreshCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.seedLocal(t, "ada@example.com", "")

	pair, err := f.tokens.IssuePair(identity.ID)
	if err != nil {
		t.Fatal(err)
	}

	next, err := f.tokens.RefreshCycle(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshCycle: %v", err)
	}
	claims, err := f.tokens.Parse(auth.KindAccess, next.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != identity.ID {
		t.Fatalf("refreshed subject %q, want %q", claims.Subject, identity.ID)
	}

	if _, err := f.tokens.RefreshCycle(ctx, pair.AccessToken); err == nil {
		t.Fatal("an access token must not refresh")
	}
}
