package usecase

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/matthewhartstonge/argon2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/cache"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-portal/shared/auth"
	"github.com/vasapolrittideah/identity-portal/shared/mailer"
	"github.com/vasapolrittideah/identity-portal/shared/security"
	"github.com/vasapolrittideah/identity-portal/shared/sms"
)

const testPassword = "Passw0rd"

type recordingNotifier struct {
	mu     sync.Mutex
	emails []mailer.Email
	texts  []sms.Message
}

func (n *recordingNotifier) Email(email mailer.Email) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, email)
}

func (n *recordingNotifier) SMS(msg sms.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, msg)
}

func (n *recordingNotifier) lastEmail(t *testing.T) mailer.Email {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.emails) == 0 {
		t.Fatal("no email was sent")
	}
	return n.emails[len(n.emails)-1]
}

func (n *recordingNotifier) lastSMS(t *testing.T) sms.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.texts) == 0 {
		t.Fatal("no sms was sent")
	}
	return n.texts[len(n.texts)-1]
}

func (n *recordingNotifier) count() (emails, texts int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.emails), len(n.texts)
}

type fixture struct {
	logger   *zerolog.Logger
	repo     repository.IdentityRepository
	store    cache.CodeStore
	mr       *miniredis.Miniredis
	tokens   TokenUsecase
	hasher   *security.Hasher
	notifier *recordingNotifier
	cfg      *config.AuthServiceConfig
	now      time.Time
}

func testConfig() *config.AuthServiceConfig {
	return &config.AuthServiceConfig{
		RunMode:         config.RunModeDev,
		BaseURL:         "https://portal.example.com",
		MagicLinkPath:   "auth/magic",
		VerifyEmailPath: "register/verify",
		NotifyTimeout:   time.Second,
		Token: config.TokenConfig{
			Algorithm:                  "HS512",
			AccessTokenSecret:          "access-secret",
			AccessTokenExpiresIn:       2 * time.Hour,
			RefreshTokenSecret:         "refresh-secret",
			RefreshTokenExpiresIn:      240 * time.Hour,
			EmailVerificationSecret:    "email-secret",
			EmailVerificationExpiresIn: 30 * time.Minute,
			MagicLinkSecret:            "magic-secret",
			MagicLinkExpiresIn:         15 * time.Minute,
		},
		Code: config.CodeConfig{
			OTPExpiresIn:           5 * time.Minute,
			PasswordResetExpiresIn: 10 * time.Minute,
			ContactChangeExpiresIn: 10 * time.Minute,
			OAuthStateExpiresIn:    10 * time.Minute,
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testConfig())
}

func newFixtureWithConfig(t *testing.T, cfg *config.AuthServiceConfig) *fixture {
	t.Helper()

	logger := zerolog.Nop()

	db, err := repository.OpenGorm(&logger, "sqlite", "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repo := repository.NewIdentityGormRepository(&logger, db, time.Second, true)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	store := cache.NewRedisCodeStore(rdb, cache.Options{OpTimeout: time.Second, RetryInterval: time.Millisecond})

	// Whole seconds so iat/exp round trip exactly.
	now := time.Now().Truncate(time.Second)
	jwtAuth, err := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer, cfg.Token.Algorithm)
	if err != nil {
		t.Fatal(err)
	}
	jwtAuth = jwtAuth.WithClock(func() time.Time { return now })

	hashCfg := argon2.DefaultConfig()
	hashCfg.TimeCost = 1
	hashCfg.MemoryCost = 8 * 1024
	hashCfg.Parallelism = 1

	return &fixture{
		logger:   &logger,
		repo:     repo,
		store:    store,
		mr:       mr,
		tokens:   NewTokenUsecase(jwtAuth, repo, cfg.Token),
		hasher:   security.NewHasher(hashCfg, 2),
		notifier: &recordingNotifier{},
		cfg:      cfg,
		now:      now,
	}
}

func (f *fixture) login() LoginUsecase {
	return NewLoginUsecase(f.logger, f.repo, f.store, f.tokens, f.hasher, f.notifier, f.cfg)
}

func (f *fixture) register() RegisterUsecase {
	return NewRegisterUsecase(f.logger, f.repo, f.store, f.tokens, f.hasher, f.notifier, f.cfg)
}

func (f *fixture) passwordReset() PasswordResetUsecase {
	return NewPasswordResetUsecase(f.logger, f.repo, f.store, f.hasher, f.notifier, f.cfg)
}

func (f *fixture) profile() ProfileUsecase {
	return NewProfileUsecase(f.logger, f.repo, f.store, f.notifier, f.cfg)
}

// seedLocal stores an active local identity with testPassword.
func (f *fixture) seedLocal(t *testing.T, email, phone string) *model.Identity {
	t.Helper()

	hash, salt, err := f.hasher.Hash(context.Background(), testPassword)
	if err != nil {
		t.Fatal(err)
	}

	identity := &model.Identity{
		Email:              email,
		PasswordHash:       hash,
		Salt:               salt,
		FirstName:          "Ada",
		LastName:           "Lovelace",
		UserType:           model.UserTypeIndividual,
		IsActive:           true,
		AuthProvider:       model.ProviderLocal,
		NotificationMethod: model.NotifyEmail,
	}
	if phone != "" {
		identity.PhoneNumber = &phone
	}

	created, err := f.repo.Create(context.Background(), identity)
	if err != nil {
		t.Fatal(err)
	}
	return created
}

// seedOAuth stores an active identity federated from google.
func (f *fixture) seedOAuth(t *testing.T, email, googleID string) *model.Identity {
	t.Helper()

	created, err := f.repo.Create(context.Background(), &model.Identity{
		Email:              email,
		PasswordHash:       "unused",
		Salt:               "unused",
		UserType:           model.UserTypeIndividual,
		IsActive:           true,
		AuthProvider:       model.ProviderGoogle,
		GoogleID:           &googleID,
		NotificationMethod: model.NotifyEmail,
	})
	if err != nil {
		t.Fatal(err)
	}
	return created
}

var (
	magicParam = regexp.MustCompile(`\?magic=([A-Za-z0-9_\-.]+)`)
	tokenParam = regexp.MustCompile(`\?token=([A-Za-z0-9_\-.]+)`)
	codeTag    = regexp.MustCompile(`<strong>(\d+)</strong>`)
)

func extract(t *testing.T, re *regexp.Regexp, body string) string {
	t.Helper()
	m := re.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("pattern %s not found in %q", re, body)
	}
	return m[1]
}
