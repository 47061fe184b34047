package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/identity-portal/shared/mailer"
	"github.com/vasapolrittideah/identity-portal/shared/sms"
)

// RunMode selects cookie hardening and log formatting.
type RunMode string

const (
	RunModeDev  RunMode = "dev"
	RunModeMain RunMode = "main"
)

// AuthServiceConfig is the root configuration of the auth service.
type AuthServiceConfig struct {
	RunMode          RunMode       `env:"RUN_MODE"              envDefault:"dev"`
	LogLevel         string        `env:"LOG_LEVEL"             envDefault:"info"`
	BaseURL          string        `env:"BASE_URL"              envDefault:"http://localhost:3000"`
	MagicLinkPath    string        `env:"MAGIC_LINK_CALLBACK"   envDefault:"auth/magic"`
	VerifyEmailPath  string        `env:"VERIFY_EMAIL_CALLBACK" envDefault:"register/verify"`
	PlaceholderPhone bool          `env:"PLACEHOLDER_PHONE"`
	HashConcurrency  int           `env:"HASH_CONCURRENCY"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT"        envDefault:"30s"`

	Token    TokenConfig
	Code     CodeConfig
	Cookie   CookieConfig   `envPrefix:"COOKIE_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Mongo    MongoConfig    `envPrefix:"MONGO_"`
	OAuth    OAuthConfig    `envPrefix:"OAUTH_"`
	Mail     mailer.Config
	SMS      sms.Config     `envPrefix:"SMS_"`
	GRPC     GRPCConfig     `envPrefix:"GRPC_"`
	Consul   ConsulConfig   `envPrefix:"CONSUL_"`
}

// TokenConfig holds the signing secrets and lifetimes of every token kind.
type TokenConfig struct {
	Algorithm                  string        `env:"ALGORITHM"                envDefault:"HS512"`
	Issuer                     string        `env:"TOKEN_ISSUER"`
	Audience                   string        `env:"TOKEN_AUDIENCE"`
	AccessTokenSecret          string        `env:"ACCESS_TOKEN_SECRET_KEY"`
	AccessTokenExpiresIn       time.Duration `env:"ACCESS_TOKEN_EXPIRE"      envDefault:"120m"`
	RefreshTokenSecret         string        `env:"REFRESH_TOKEN_SECRET_KEY"`
	RefreshTokenExpiresIn      time.Duration `env:"REFRESH_TOKEN_EXPIRE"     envDefault:"14400m"`
	EmailVerificationSecret    string        `env:"EMAIL_TOKEN_SECRET_KEY"`
	EmailVerificationExpiresIn time.Duration `env:"EMAIL_TOKEN_EXPIRE"       envDefault:"30m"`
	MagicLinkSecret            string        `env:"MAGIC_LINK_SECRET_KEY"`
	MagicLinkExpiresIn         time.Duration `env:"MAGIC_LINK_EXPIRE"        envDefault:"15m"`
}

// CodeConfig holds lifetimes of the short-lived codes kept in the cache.
type CodeConfig struct {
	OTPExpiresIn           time.Duration `env:"OTP_EXPIRE_TIME"             envDefault:"5m"`
	PasswordResetExpiresIn time.Duration `env:"FORGET_PASSWORD_CODE_EXPIRE" envDefault:"10m"`
	ContactChangeExpiresIn time.Duration `env:"CONTACT_CHANGE_CODE_EXPIRE"  envDefault:"10m"`
	OAuthStateExpiresIn    time.Duration `env:"OAUTH_STATE_EXPIRE"          envDefault:"10m"`
}

// CookieConfig controls the auth cookie.
type CookieConfig struct {
	Name   string `env:"NAME"   envDefault:"auth"`
	Domain string `env:"DOMAIN"`
}

// HTTPConfig controls the HTTP listener.
type HTTPConfig struct {
	Port           int           `env:"PORT"            envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// RedisConfig configures the short-lived code store.
type RedisConfig struct {
	Addr      string        `env:"ADDR"       envDefault:"localhost:6379"`
	Password  string        `env:"PASSWORD"`
	DB        int           `env:"DB"`
	KeyPrefix string        `env:"KEY_PREFIX"`
	OpTimeout time.Duration `env:"OP_TIMEOUT" envDefault:"2s"`
}

// DatabaseDriver selects the identity store implementation.
type DatabaseDriver string

const (
	DriverPostgres DatabaseDriver = "postgres"
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverMongo    DatabaseDriver = "mongo"
)

// DatabaseConfig configures the identity store.
type DatabaseConfig struct {
	Driver      DatabaseDriver `env:"DRIVER"       envDefault:"postgres"`
	DSN         string         `env:"DSN"`
	OpTimeout   time.Duration  `env:"OP_TIMEOUT"   envDefault:"5s"`
	AutoMigrate bool           `env:"AUTO_MIGRATE" envDefault:"true"`
}

// MongoConfig configures the document store alternative.
type MongoConfig struct {
	URI      string `env:"URI"      envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"identity"`
}

// OAuthConfig holds the federated login client settings.
type OAuthConfig struct {
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT"         envDefault:"10s"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL"`
	GithubClientID     string        `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret string        `env:"GITHUB_CLIENT_SECRET"`
	GithubRedirectURL  string        `env:"GITHUB_REDIRECT_URL"`
}

// GoogleEnabled reports whether Google login is configured.
func (c *OAuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// GithubEnabled reports whether GitHub login is configured.
func (c *OAuthConfig) GithubEnabled() bool {
	return c.GithubClientID != "" && c.GithubClientSecret != ""
}

// GRPCConfig controls the health listener.
type GRPCConfig struct {
	Port int `env:"PORT" envDefault:"9090"`
}

// ConsulConfig controls service registration. An empty Addr disables it.
type ConsulConfig struct {
	Addr        string `env:"ADDR"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"auth-service"`
	ServiceHost string `env:"SERVICE_HOST" envDefault:"localhost"`
}

// Load parses the configuration from the environment and validates it.
func Load() (*AuthServiceConfig, error) {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MagicLinkURL builds the link mailed for passwordless login.
func (c *AuthServiceConfig) MagicLinkURL(token string) string {
	return joinURL(c.BaseURL, c.MagicLinkPath) + "?magic=" + token
}

// VerifyEmailURL builds the link mailed to confirm a registration.
func (c *AuthServiceConfig) VerifyEmailURL(token string) string {
	return joinURL(c.BaseURL, c.VerifyEmailPath) + "?token=" + token
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *AuthServiceConfig) validate() error {
	switch c.RunMode {
	case RunModeDev, RunModeMain:
	default:
		return fmt.Errorf("invalid RUN_MODE %q", c.RunMode)
	}
	if c.BaseURL == "" {
		return errors.New("missing BASE_URL environment variable")
	}
	if c.NotifyTimeout <= 0 {
		return errors.New("NOTIFY_TIMEOUT must be positive")
	}

	return errors.Join(
		c.Token.validate(),
		c.Code.validate(),
		c.Cookie.validate(c.RunMode),
		c.Redis.validate(),
		c.Database.validate(),
	)
}

func (c *TokenConfig) validate() error {
	var errs []error
	secrets := []struct {
		name  string
		value string
	}{
		{"ACCESS_TOKEN_SECRET_KEY", c.AccessTokenSecret},
		{"REFRESH_TOKEN_SECRET_KEY", c.RefreshTokenSecret},
		{"EMAIL_TOKEN_SECRET_KEY", c.EmailVerificationSecret},
		{"MAGIC_LINK_SECRET_KEY", c.MagicLinkSecret},
	}
	for _, s := range secrets {
		if s.value == "" {
			errs = append(errs, fmt.Errorf("missing %s environment variable", s.name))
		}
	}

	switch strings.ToUpper(c.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("unsupported ALGORITHM %q", c.Algorithm))
	}

	ttls := []time.Duration{
		c.AccessTokenExpiresIn,
		c.RefreshTokenExpiresIn,
		c.EmailVerificationExpiresIn,
		c.MagicLinkExpiresIn,
	}
	for _, ttl := range ttls {
		if ttl <= 0 {
			errs = append(errs, errors.New("token lifetimes must be positive"))
			break
		}
	}

	return errors.Join(errs...)
}

func (c *CodeConfig) validate() error {
	if c.OTPExpiresIn <= 0 || c.PasswordResetExpiresIn <= 0 ||
		c.ContactChangeExpiresIn <= 0 || c.OAuthStateExpiresIn <= 0 {
		return errors.New("code lifetimes must be positive")
	}
	return nil
}

func (c *CookieConfig) validate(mode RunMode) error {
	if c.Name == "" {
		return errors.New("missing COOKIE_NAME environment variable")
	}
	if mode == RunModeMain && c.Domain == "" {
		return errors.New("missing COOKIE_DOMAIN environment variable in main run mode")
	}
	return nil
}

func (c *RedisConfig) validate() error {
	if c.Addr == "" {
		return errors.New("missing REDIS_ADDR environment variable")
	}
	if c.OpTimeout <= 0 {
		return errors.New("REDIS_OP_TIMEOUT must be positive")
	}
	return nil
}

func (c *DatabaseConfig) validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
		if c.DSN == "" {
			return errors.New("missing DB_DSN environment variable")
		}
	case DriverMongo:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q", c.Driver)
	}
	if c.OpTimeout <= 0 {
		return errors.New("DB_OP_TIMEOUT must be positive")
	}
	return nil
}
