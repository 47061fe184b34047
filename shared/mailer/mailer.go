package mailer

import (
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer represents an email sender.
type Mailer struct {
	config *Config
	dialer *gomail.Dialer
}

// Email represents an email message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// New creates a new Mailer instance.
func New(cfg Config) (*Mailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dialer := gomail.NewDialer(
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
	)
	dialer.SSL = cfg.SSL
	if cfg.InsecureSkipVerify {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host} //nolint:gosec // opt-in for local relays
	}

	return &Mailer{
		config: &cfg,
		dialer: dialer,
	}, nil
}

// Send sends a single email.
func (m *Mailer) Send(email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg := gomail.NewMessage()
	m.setEmailMessage(msg, email)

	return m.dialer.DialAndSend(msg)
}

func (m *Mailer) setEmailMessage(msg *gomail.Message, email Email) {
	if m.config.FromName != "" {
		msg.SetAddressHeader("From", m.config.From, m.config.FromName)
	} else {
		msg.SetHeader("From", m.config.From)
	}
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}
}

// Config holds SMTP configuration for sending emails.
type Config struct {
	Host               string `env:"SMTP_HOST"`
	Port               int    `env:"SMTP_PORT"                 envDefault:"587"`
	Username           string `env:"SMTP_USERNAME"`
	Password           string `env:"SMTP_PASSWORD"`
	From               string `env:"SMTP_FROM"`
	FromName           string `env:"SMTP_FROM_NAME"`
	SSL                bool   `env:"SMTP_SSL"`
	InsecureSkipVerify bool   `env:"SMTP_INSECURE_SKIP_VERIFY"`
}

// Enabled reports whether an SMTP relay is configured.
func (c *Config) Enabled() bool {
	return c.Host != ""
}

// validate checks if the Mailer configuration is valid.
func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP_HOST environment variable")
	}
	if c.Port == 0 {
		return fmt.Errorf("missing SMTP_PORT environment variable")
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP_FROM environment variable")
	}

	return nil
}
