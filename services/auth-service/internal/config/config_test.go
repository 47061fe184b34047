package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("ACCESS_TOKEN_SECRET_KEY", "access")
	t.Setenv("REFRESH_TOKEN_SECRET_KEY", "refresh")
	t.Setenv("EMAIL_TOKEN_SECRET_KEY", "email")
	t.Setenv("MAGIC_LINK_SECRET_KEY", "magic")
	t.Setenv("DB_DSN", "file::memory:")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Token.Algorithm != "HS512" {
		t.Errorf("algorithm = %q, want HS512", cfg.Token.Algorithm)
	}
	if cfg.Token.AccessTokenExpiresIn != 120*time.Minute {
		t.Errorf("access ttl = %v", cfg.Token.AccessTokenExpiresIn)
	}
	if cfg.Token.RefreshTokenExpiresIn != 14400*time.Minute {
		t.Errorf("refresh ttl = %v", cfg.Token.RefreshTokenExpiresIn)
	}
	if cfg.Code.OTPExpiresIn != 5*time.Minute {
		t.Errorf("otp ttl = %v", cfg.Code.OTPExpiresIn)
	}
	if cfg.Code.PasswordResetExpiresIn != 10*time.Minute {
		t.Errorf("reset ttl = %v", cfg.Code.PasswordResetExpiresIn)
	}
	if cfg.Cookie.Name != "auth" || cfg.RunMode != RunModeDev {
		t.Errorf("unexpected cookie/run mode: %+v %q", cfg.Cookie, cfg.RunMode)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.PlaceholderPhone {
		t.Error("placeholder phones must be opt-in")
	}
}

func TestLoadNestedPrefixes(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_OP_TIMEOUT", "750ms")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("OAUTH_GOOGLE_CLIENT_ID", "gid")
	t.Setenv("OAUTH_GOOGLE_CLIENT_SECRET", "gsecret")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Redis.Addr != "cache:6380" || cfg.Redis.OpTimeout != 750*time.Millisecond {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if !cfg.OAuth.GoogleEnabled() || cfg.OAuth.GithubEnabled() {
		t.Errorf("unexpected oauth enablement %+v", cfg.OAuth)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Errorf("allowed origins = %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"MAGIC_LINK_SECRET_KEY": ""}},
		{name: "bad algorithm", env: map[string]string{"ALGORITHM": "RS256"}},
		{name: "bad run mode", env: map[string]string{"RUN_MODE": "staging"}},
		{name: "main without cookie domain", env: map[string]string{"RUN_MODE": "main"}},
		{name: "bad driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "missing dsn", env: map[string]string{"DB_DSN": ""}},
		{name: "zero otp ttl", env: map[string]string{"OTP_EXPIRE_TIME": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLinkURLs(t *testing.T) {
	cfg := &AuthServiceConfig{
		BaseURL:         "https://portal.example/",
		MagicLinkPath:   "/auth/magic",
		VerifyEmailPath: "register/verify",
	}

	if got := cfg.MagicLinkURL("abc"); got != "https://portal.example/auth/magic?magic=abc" {
		t.Errorf("magic link = %q", got)
	}
	if got := cfg.VerifyEmailURL("xyz"); got != "https://portal.example/register/verify?token=xyz" {
		t.Errorf("verify link = %q", got)
	}
}
