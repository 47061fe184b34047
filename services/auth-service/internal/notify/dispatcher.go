package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-portal/shared/mailer"
	"github.com/vasapolrittideah/identity-portal/shared/sms"
)

// Notifier delivers messages without blocking the caller.
type Notifier interface {
	Email(email mailer.Email)
	SMS(msg sms.Message)
}

// EmailSender is satisfied by *mailer.Mailer.
type EmailSender interface {
	Send(email mailer.Email) error
}

// SMSSender is satisfied by *sms.Client.
type SMSSender interface {
	Send(ctx context.Context, msg sms.Message) error
}

var errSenderNotConfigured = errors.New("sender not configured")

// Dispatcher sends notifications on background goroutines detached from
// the request's cancellation. Failures are logged.
type Dispatcher struct {
	logger  *zerolog.Logger
	mail    EmailSender
	sms     SMSSender
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Either sender may be nil, in which
// case messages on that channel are logged and dropped.
func NewDispatcher(logger *zerolog.Logger, mail EmailSender, smsSender SMSSender, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		logger:  logger,
		mail:    mail,
		sms:     smsSender,
		timeout: timeout,
	}
}

func (d *Dispatcher) Email(email mailer.Email) {
	d.dispatch("email", email.Subject, func(context.Context) error {
		if d.mail == nil {
			return errSenderNotConfigured
		}
		return d.mail.Send(email)
	})
}

func (d *Dispatcher) SMS(msg sms.Message) {
	d.dispatch("sms", msg.Template.String(), func(ctx context.Context) error {
		if d.sms == nil {
			return errSenderNotConfigured
		}
		return d.sms.Send(ctx, msg)
	})
}

func (d *Dispatcher) dispatch(channel, purpose string, send func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- send(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				d.logger.Error().Err(err).Str("channel", channel).Str("purpose", purpose).Msg("failed to send notification")
				return
			}
			d.logger.Debug().Str("channel", channel).Str("purpose", purpose).Msg("notification sent")
		case <-ctx.Done():
			d.logger.Error().Err(ctx.Err()).Str("channel", channel).Str("purpose", purpose).Msg("notification timed out")
		}
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
