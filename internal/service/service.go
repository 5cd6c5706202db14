package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/dto"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/ledger"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/lifecycle"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/proofstore"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/ticket"
)

type Service interface {
	CreateEvent(ctx context.Context, actor model.Actor, e *model.Event) (*model.Event, error)
	GetEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error)
	ListEvents(ctx context.Context, actor model.Actor, status model.EventStatus) ([]model.Event, error)
	UpdateEvent(ctx context.Context, actor model.Actor, id int64, p lifecycle.Patch) (*model.Event, error)
	PublishEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error)
	CloseRegistration(ctx context.Context, actor model.Actor, id int64) (*model.Event, error)
	CompleteEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error)
	CancelEvent(ctx context.Context, actor model.Actor, id int64) (*model.Event, error)

	Register(ctx context.Context, actor model.Actor, in RegisterInput) (*model.Registration, error)
	GetRegistration(ctx context.Context, actor model.Actor, id int64) (*model.Registration, error)
	ListRegistrations(ctx context.Context, actor model.Actor, eventID int64) ([]model.Registration, error)
	CancelRegistration(ctx context.Context, actor model.Actor, id int64) (*model.Registration, error)
	ExpireRegistration(ctx context.Context, id int64) (*model.Registration, error)

	UploadProof(ctx context.Context, actor model.Actor, registrationID int64, in ProofInput) (*model.Registration, error)
	VerifyPayment(ctx context.Context, actor model.Actor, registrationID int64, approve bool) (*model.Registration, error)
	GetTicket(ctx context.Context, actor model.Actor, registrationID int64) (*model.Ticket, error)

	Scan(ctx context.Context, actor model.Actor, code string) (*ScanResult, error)
	OverrideAttendance(ctx context.Context, actor model.Actor, in OverrideInput) (*model.Registration, error)
	AttendanceExport(ctx context.Context, actor model.Actor, eventID int64) ([]AttendanceRow, error)
	AttendanceAudit(ctx context.Context, actor model.Actor, registrationID int64) ([]model.AttendanceAudit, error)
}

// Publisher delivers notification messages, optionally delayed.
type Publisher interface {
	Publish(message []byte, delaySeconds int) error
}

type service struct {
	repo           repo.Repository
	ledger         *ledger.Ledger
	issuer         *ticket.Issuer
	proofs         proofstore.Store
	pub            Publisher
	log            *zerolog.Logger
	now            func() time.Time
	paymentTimeout time.Duration
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithPaymentTimeout enables the stale pending-payment sweep.
func WithPaymentTimeout(d time.Duration) Option {
	return func(s *service) { s.paymentTimeout = d }
}

func NewService(r repo.Repository, issuer *ticket.Issuer, proofs proofstore.Store, pub Publisher, logger *zerolog.Logger, opts ...Option) Service {
	s := &service{
		repo:   r,
		ledger: ledger.New(r, logger),
		issuer: issuer,
		proofs: proofs,
		pub:    pub,
		log:    logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notify publishes msg; failures are logged and never reach the caller.
func (s *service) notify(msg dto.NotificationMessage, delay time.Duration) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Str("kind", msg.Kind).Msg("failed to marshal notification")
		return
	}
	if err := s.pub.Publish(payload, int(delay/time.Second)); err != nil {
		s.log.Warn().Err(err).Str("kind", msg.Kind).Int64("registration_id", msg.RegistrationID).
			Msg("failed to publish notification")
	}
}

func registrationMessage(kind string, e *model.Event, reg *model.Registration) dto.NotificationMessage {
	return dto.NotificationMessage{
		Kind:           kind,
		RegistrationID: reg.ID,
		EventID:        e.ID,
		EventName:      e.Name,
		Email:          reg.ParticipantEmail,
		Name:           reg.ParticipantName,
		TicketID:       reg.TicketID,
	}
}

func (s *service) loadEvent(ctx context.Context, id int64) (*model.Event, error) {
	e, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

func (s *service) loadRegistration(ctx context.Context, id int64) (*model.Registration, error) {
	reg, err := s.repo.GetRegistrationByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return reg, nil
}

// translate maps storage sentinels onto the error taxonomy.
func translate(err error) error {
	var e *errs.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &e):
		return err
	case errors.Is(err, repo.ErrEventNotFound):
		return errs.NotFound(errs.CodeEventNotFound, "event not found").Wrap(err)
	case errors.Is(err, repo.ErrRegistrationNotFound):
		return errs.NotFound(errs.CodeRegistrationNotFound, "registration not found").Wrap(err)
	case errors.Is(err, repo.ErrTicketNotFound):
		return errs.NotFound(errs.CodeTicketNotFound, "ticket not recognized").Wrap(err)
	case errors.Is(err, repo.ErrRegistrationClosed):
		return errs.State(errs.CodeRegistrationClosed, "event is no longer open for registration").Wrap(err)
	case errors.Is(err, repo.ErrDuplicateRegistration):
		return errs.Duplicate("already registered for this event").Wrap(err)
	case errors.Is(err, repo.ErrStatusConflict):
		return errs.State(errs.CodeStatusConflict, "status changed concurrently, reload and retry").Wrap(err)
	default:
		return fmt.Errorf("storage: %w", err)
	}
}
