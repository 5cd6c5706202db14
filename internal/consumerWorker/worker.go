package consumerWorker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/mailer"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, []byte) error) error
}

type Expirer interface {
	ExpireRegistration(ctx context.Context, id int64) (*model.Registration, error)
}

// Reader turns bus notifications into emails and runs the delayed expiry of
// unpaid registrations.
type Reader struct {
	rmq     Consumer
	expirer Expirer
	mail    mailer.Mailer
	log     *zerolog.Logger
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewReader(rmq Consumer, expirer Expirer, mail mailer.Mailer, log *zerolog.Logger) *Reader {
	return &Reader{
		rmq:     rmq,
		expirer: expirer,
		mail:    mail,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) error {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	if err := r.rmq.Consume(cctx, r.Handle); err != nil {
		cancel()
		close(r.done)
		return fmt.Errorf("start reader: %w", err)
	}
	r.log.Info().Msg("notification reader started")

	go func() {
		defer close(r.done)
		<-cctx.Done()
		r.log.Info().Msg("notification reader stopped")
	}()
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// Handle processes one message body. Returned errors requeue the message.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	var msg dto.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		r.log.Error().Err(err).Str("body", string(body)).Msg("failed to unmarshal message")
		return nil
	}

	r.log.Debug().
		Str("kind", msg.Kind).
		Int64("registration_id", msg.RegistrationID).
		Int64("event_id", msg.EventID).
		Msg("received notification")

	switch msg.Kind {
	case dto.KindEventPublished:
		r.log.Info().Int64("event_id", msg.EventID).Str("event_name", msg.EventName).Msg("event published")
		return nil
	case dto.KindRegistrationExpire:
		reg, err := r.expirer.ExpireRegistration(ctx, msg.RegistrationID)
		if err != nil {
			r.log.Error().Err(err).Int64("registration_id", msg.RegistrationID).Msg("failed to expire registration")
			return err
		}
		if reg == nil {
			return nil
		}
		if reg.ParticipantEmail != "" {
			msg.Email = reg.ParticipantEmail
		}
		if reg.ParticipantName != "" {
			msg.Name = reg.ParticipantName
		}
	}

	if err := r.mail.Send(ctx, msg); err != nil {
		r.log.Warn().Err(err).
			Str("kind", msg.Kind).
			Int64("registration_id", msg.RegistrationID).
			Msg("failed to send notification email")
	}
	return nil
}
