package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/rs/zerolog"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
)

var ErrNoRecipient = errors.New("mailer: message has no recipient")

// Mailer delivers participant notifications.
type Mailer interface {
	Send(ctx context.Context, msg dto.NotificationMessage) error
}

type Config struct {
	APIKey     string
	FromName   string
	FromEmail  string
	TemplateID string
	Timeout    time.Duration
}

// Compose returns the subject and plain text body for msg. ok is false for
// kinds that are not mailed to a participant.
func Compose(msg dto.NotificationMessage, paymentTimeout time.Duration) (subject, body string, ok bool) {
	greeting := "Hello"
	if msg.Name != "" {
		greeting = "Hello " + msg.Name
	}
	switch msg.Kind {
	case dto.KindRegistrationCreated:
		subject = fmt.Sprintf("Registration started: %s", msg.EventName)
		body = fmt.Sprintf("%s,\n\nYour registration for %q is waiting for payment. Upload a payment proof", greeting, msg.EventName)
		if paymentTimeout > 0 {
			body += fmt.Sprintf(" within %s", paymentTimeout)
		}
		body += " to secure your place."
	case dto.KindRegistrationConfirmed:
		subject = fmt.Sprintf("You're in: %s", msg.EventName)
		body = fmt.Sprintf("%s,\n\nYour registration for %q is confirmed.\nTicket: %s\nShow this ticket at the venue.", greeting, msg.EventName, msg.TicketID)
	case dto.KindRegistrationCancelled:
		subject = fmt.Sprintf("Registration cancelled: %s", msg.EventName)
		body = fmt.Sprintf("%s,\n\nYour registration for %q has been cancelled.", greeting, msg.EventName)
	case dto.KindRegistrationExpire:
		subject = fmt.Sprintf("Registration expired: %s", msg.EventName)
		body = fmt.Sprintf("%s,\n\nYour registration for %q was cancelled because the payment was not completed in time.", greeting, msg.EventName)
	case dto.KindPaymentRejected:
		subject = fmt.Sprintf("Payment proof rejected: %s", msg.EventName)
		body = fmt.Sprintf("%s,\n\nThe organizer could not verify your payment for %q. Please upload a new payment proof.", greeting, msg.EventName)
	default:
		return "", "", false
	}
	return subject, body, true
}

// Mailersend sends notifications through the MailerSend API.
type Mailersend struct {
	client         *mailersend.Mailersend
	cfg            Config
	paymentTimeout time.Duration
	log            *zerolog.Logger
}

func NewMailersend(cfg Config, paymentTimeout time.Duration, log *zerolog.Logger) *Mailersend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Mailersend{
		client:         mailersend.NewMailersend(cfg.APIKey),
		cfg:            cfg,
		paymentTimeout: paymentTimeout,
		log:            log,
	}
}

func (m *Mailersend) Send(ctx context.Context, msg dto.NotificationMessage) error {
	subject, body, ok := Compose(msg, m.paymentTimeout)
	if !ok {
		return nil
	}
	if msg.Email == "" {
		return ErrNoRecipient
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.cfg.FromName, Email: m.cfg.FromEmail})
	message.SetRecipients([]mailersend.Recipient{{Name: msg.Name, Email: msg.Email}})
	message.SetSubject(subject)
	message.SetText(body)
	if m.cfg.TemplateID != "" && msg.Kind == dto.KindRegistrationConfirmed {
		message.SetTemplateID(m.cfg.TemplateID)
		message.SetPersonalization([]mailersend.Personalization{{
			Email: msg.Email,
			Data: map[string]interface{}{
				"event_name": msg.EventName,
				"ticket_id":  msg.TicketID,
			},
		}})
	}

	res, err := m.client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.log.Info().
		Str("kind", msg.Kind).
		Str("email", msg.Email).
		Str("message_id", res.Header.Get("X-Message-Id")).
		Msg("email sent")
	return nil
}

// LogMailer writes notifications to the log instead of sending them.
type LogMailer struct {
	log            *zerolog.Logger
	paymentTimeout time.Duration
}

func NewLogMailer(paymentTimeout time.Duration, log *zerolog.Logger) *LogMailer {
	return &LogMailer{log: log, paymentTimeout: paymentTimeout}
}

func (m *LogMailer) Send(_ context.Context, msg dto.NotificationMessage) error {
	subject, _, ok := Compose(msg, m.paymentTimeout)
	if !ok {
		return nil
	}
	if msg.Email == "" {
		return ErrNoRecipient
	}
	m.log.Info().
		Str("kind", msg.Kind).
		Str("email", msg.Email).
		Str("subject", subject).
		Msg("email delivery disabled, notification logged")
	return nil
}

// New returns a MailerSend client when an API key is configured and a
// LogMailer otherwise.
func New(cfg Config, paymentTimeout time.Duration, log *zerolog.Logger) Mailer {
	if cfg.APIKey == "" {
		log.Warn().Msg("mailersend api key is not set, emails will only be logged")
		return NewLogMailer(paymentTimeout, log)
	}
	return NewMailersend(cfg, paymentTimeout, log)
}
