package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
)

func TestCompose(t *testing.T) {
	msg := dto.NotificationMessage{EventName: "Hackathon", Name: "Alice", TicketID: "TKT-0123456789AB"}

	tests := map[string]struct {
		kind    string
		ok      bool
		subject string
		body    string
	}{
		"confirmed": {dto.KindRegistrationConfirmed, true, "You're in: Hackathon", "TKT-0123456789AB"},
		"created":   {dto.KindRegistrationCreated, true, "Registration started: Hackathon", "within 30m0s"},
		"expired":   {dto.KindRegistrationExpire, true, "Registration expired: Hackathon", "not completed in time"},
		"rejected":  {dto.KindPaymentRejected, true, "Payment proof rejected: Hackathon", "new payment proof"},
		"cancelled": {dto.KindRegistrationCancelled, true, "Registration cancelled: Hackathon", "Hello Alice"},
		"published": {dto.KindEventPublished, false, "", ""},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m := msg
			m.Kind = tc.kind
			subject, body, ok := Compose(m, 30*time.Minute)
			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.subject, subject)
			assert.Contains(t, body, tc.body)
		})
	}
}

func TestNewFallsBackToLog(t *testing.T) {
	log := zerolog.Nop()
	m := New(Config{}, 0, &log)
	require.IsType(t, &LogMailer{}, m)

	err := m.Send(context.Background(), dto.NotificationMessage{Kind: dto.KindRegistrationConfirmed})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.NoError(t, m.Send(context.Background(), dto.NotificationMessage{Kind: dto.KindEventPublished}))
	assert.NoError(t, m.Send(context.Background(), dto.NotificationMessage{
		Kind: dto.KindRegistrationConfirmed, Email: "alice@iiit.ac.in",
	}))

	require.IsType(t, &Mailersend{}, New(Config{APIKey: "key"}, 0, &log))
}
