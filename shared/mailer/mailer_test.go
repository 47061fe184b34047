package mailer

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/gomail.v2"
)

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing host", cfg: Config{Port: 25, From: "a@b.com"}},
		{name: "missing port", cfg: Config{Host: "smtp", From: "a@b.com"}},
		{name: "missing from", cfg: Config{Host: "smtp", Port: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSendWithoutRecipients(t *testing.T) {
	m, err := New(Config{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Send(Email{Subject: "hi"}); err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}

func TestSetEmailMessage(t *testing.T) {
	m, err := New(Config{
		Host:     "smtp.example.com",
		Port:     25,
		From:     "noreply@example.com",
		FromName: "Identity Portal",
	})
	if err != nil {
		t.Fatal(err)
	}

	msg := gomail.NewMessage()
	m.setEmailMessage(msg, Email{
		To:       []string{"a@b.com"},
		Subject:  "Verify your email",
		HTMLBody: "<a href=\"https://x\">link</a>",
	})

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	raw := buf.String()

	for _, want := range []string{"To: a@b.com", "Subject: Verify your email", "text/html", "Identity Portal"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected message to contain %q:\n%s", want, raw)
		}
	}
}
