package usecase

import (
	"fmt"
	"html"
	"time"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-portal/shared/mailer"
)

func greeting(identity *model.Identity) string {
	if name := identity.FullName(); name != "" {
		return "Hi " + html.EscapeString(name) + ","
	}
	return "Hi,"
}

func magicLinkEmail(identity *model.Identity, link string, ttl time.Duration) mailer.Email {
	return mailer.Email{
		To:      []string{identity.Email},
		Subject: "Your sign-in link",
		HTMLBody: fmt.Sprintf(`
		<p>%s</p>
		<p>Use the link below to sign in. It expires in %s.</p>
		<p><a href="%s">%s</a></p>
		<p>If you did not request this link, you can ignore this email.</p>
	`, greeting(identity), ttl, link, link),
	}
}

func verifyEmailEmail(email, link string, ttl time.Duration) mailer.Email {
	return mailer.Email{
		To:      []string{email},
		Subject: "Confirm your email address",
		HTMLBody: fmt.Sprintf(`
		<p>Hi,</p>
		<p>Please confirm your email address to finish creating your account:</p>
		<p><a href="%s">%s</a></p>
		<p>This link will expire in %s.</p>
	`, link, link, ttl),
	}
}

func passwordResetEmail(identity *model.Identity, code string, ttl time.Duration) mailer.Email {
	return mailer.Email{
		To:      []string{identity.Email},
		Subject: "Password Reset Request",
		HTMLBody: fmt.Sprintf(`
		<p>%s</p>
		<p>We received a request to reset the password for your account.</p>
		<p>Your reset code is <strong>%s</strong>. It expires in %s.</p>
		<p>If you did not request a password reset, you can safely ignore this email.</p>
	`, greeting(identity), code, ttl),
	}
}

func emailChangeEmail(identity *model.Identity, newEmail, code string, ttl time.Duration) mailer.Email {
	return mailer.Email{
		To:      []string{identity.Email},
		Subject: "Confirm your new email address",
		HTMLBody: fmt.Sprintf(`
		<p>%s</p>
		<p>Your code to change your email address to %s is <strong>%s</strong>.</p>
		<p>It expires in %s.</p>
	`, greeting(identity), html.EscapeString(newEmail), code, ttl),
	}
}
