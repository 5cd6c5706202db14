package consumerWorker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

type mockExpirer struct{ mock.Mock }

func (m *mockExpirer) ExpireRegistration(ctx context.Context, id int64) (*model.Registration, error) {
	args := m.Called(ctx, id)
	reg, _ := args.Get(0).(*model.Registration)
	return reg, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, msg dto.NotificationMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type chanConsumer struct {
	bodies  chan []byte
	handled chan error
}

func (c *chanConsumer) Consume(ctx context.Context, handler func(context.Context, []byte) error) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b := <-c.bodies:
				c.handled <- handler(ctx, b)
			}
		}
	}()
	return nil
}

func body(t *testing.T, msg dto.NotificationMessage) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func newReader(exp *mockExpirer, mail *mockMailer) *Reader {
	log := zerolog.Nop()
	return NewReader(&chanConsumer{}, exp, mail, &log)
}

func TestHandleExpire(t *testing.T) {
	exp, mail := &mockExpirer{}, &mockMailer{}
	r := newReader(exp, mail)

	exp.On("ExpireRegistration", mock.Anything, int64(7)).
		Return(&model.Registration{ID: 7, ParticipantEmail: "alice@iiit.ac.in", ParticipantName: "Alice"}, nil)
	mail.On("Send", mock.Anything, mock.MatchedBy(func(m dto.NotificationMessage) bool {
		return m.Kind == dto.KindRegistrationExpire && m.Email == "alice@iiit.ac.in" && m.Name == "Alice"
	})).Return(nil)

	err := r.Handle(context.Background(), body(t, dto.NotificationMessage{
		Kind: dto.KindRegistrationExpire, RegistrationID: 7, EventID: 1, EventName: "Hackathon",
	}))
	require.NoError(t, err)
	exp.AssertExpectations(t)
	mail.AssertExpectations(t)
}

func TestHandleExpireAlreadyResolved(t *testing.T) {
	exp, mail := &mockExpirer{}, &mockMailer{}
	r := newReader(exp, mail)

	exp.On("ExpireRegistration", mock.Anything, int64(8)).Return(nil, nil)
	require.NoError(t, r.Handle(context.Background(), body(t, dto.NotificationMessage{
		Kind: dto.KindRegistrationExpire, RegistrationID: 8,
	})))
	mail.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleExpireFailureRequeues(t *testing.T) {
	exp, mail := &mockExpirer{}, &mockMailer{}
	r := newReader(exp, mail)

	boom := errors.New("db down")
	exp.On("ExpireRegistration", mock.Anything, int64(9)).Return(nil, boom)
	err := r.Handle(context.Background(), body(t, dto.NotificationMessage{
		Kind: dto.KindRegistrationExpire, RegistrationID: 9,
	}))
	assert.ErrorIs(t, err, boom)
}

func TestHandleMailsAndSwallowsMailErrors(t *testing.T) {
	exp, mail := &mockExpirer{}, &mockMailer{}
	r := newReader(exp, mail)

	mail.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp unavailable")).Once()
	require.NoError(t, r.Handle(context.Background(), body(t, dto.NotificationMessage{
		Kind: dto.KindRegistrationConfirmed, RegistrationID: 3, Email: "bob@example.com",
	})))
	require.NoError(t, r.Handle(context.Background(), body(t, dto.NotificationMessage{
		Kind: dto.KindEventPublished, EventID: 3,
	})))
	require.NoError(t, r.Handle(context.Background(), []byte("{not json")))
	mail.AssertNumberOfCalls(t, "Send", 1)
	exp.AssertNotCalled(t, "ExpireRegistration", mock.Anything, mock.Anything)
}

func TestStartStop(t *testing.T) {
	exp, mail := &mockExpirer{}, &mockMailer{}
	mail.On("Send", mock.Anything, mock.Anything).Return(nil)
	log := zerolog.Nop()
	c := &chanConsumer{bodies: make(chan []byte), handled: make(chan error, 1)}
	r := NewReader(c, exp, mail, &log)

	require.NoError(t, r.Start(context.Background()))
	c.bodies <- body(t, dto.NotificationMessage{Kind: dto.KindRegistrationCancelled, Email: "a@b.c"})
	assert.NoError(t, <-c.handled)
	r.Stop()
	mail.AssertNumberOfCalls(t, "Send", 1)
}
