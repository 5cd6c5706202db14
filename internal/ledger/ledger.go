// Package ledger reserves registration slots and merchandise stock for an
// event. Every reservation is a single conditional update in the store; a
// Reservation remembers what it took so a failed registration can give it back.
package ledger

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
)

// Store is the subset of repo.Repository the ledger needs.
type Store interface {
	ReserveSeat(ctx context.Context, eventID int64) error
	ReleaseSeat(ctx context.Context, eventID int64) error
	ReserveStock(ctx context.Context, eventID int64, participantID string, quantity, limit int) error
	ReleaseStock(ctx context.Context, eventID int64, participantID string, quantity int) error
}

type Ledger struct {
	store Store
	log   *zerolog.Logger
}

func New(store Store, log *zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Reservation is the set of counters taken for one registration attempt.
type Reservation struct {
	ledger        *Ledger
	eventID       int64
	participantID string
	seat          bool
	stock         int
}

// ReserveSeat takes one registration slot, failing with a CapacityError
// when the event is full.
func (l *Ledger) ReserveSeat(ctx context.Context, e *model.Event, participantID string) (*Reservation, error) {
	if err := l.store.ReserveSeat(ctx, e.ID); err != nil {
		return nil, translate(err)
	}
	return &Reservation{ledger: l, eventID: e.ID, participantID: participantID, seat: true}, nil
}

// ReserveStock takes quantity units of merchandise and counts them against
// the participant's cumulative purchase limit.
func (r *Reservation) ReserveStock(ctx context.Context, quantity, limit int) error {
	if err := r.ledger.store.ReserveStock(ctx, r.eventID, r.participantID, quantity, limit); err != nil {
		return translate(err)
	}
	r.stock += quantity
	return nil
}

// Release gives back everything held. Failures are logged: the caller is
// already on an error path and must report its own error.
func (r *Reservation) Release(ctx context.Context) {
	if r == nil {
		return
	}
	if r.stock > 0 {
		if err := r.ledger.store.ReleaseStock(ctx, r.eventID, r.participantID, r.stock); err != nil {
			r.ledger.log.Error().Err(err).Int64("event_id", r.eventID).Int("quantity", r.stock).
				Msg("failed to release merchandise stock")
		} else {
			r.stock = 0
		}
	}
	if r.seat {
		if err := r.ledger.store.ReleaseSeat(ctx, r.eventID); err != nil {
			r.ledger.log.Error().Err(err).Int64("event_id", r.eventID).Msg("failed to release seat")
		} else {
			r.seat = false
		}
	}
}

// ReleaseRegistration returns the counters held by a registration that has
// just been cancelled.
func (l *Ledger) ReleaseRegistration(ctx context.Context, reg *model.Registration) {
	res := &Reservation{
		ledger:        l,
		eventID:       reg.EventID,
		participantID: reg.ParticipantID,
		seat:          true,
		stock:         reg.Quantity(),
	}
	res.Release(ctx)
}

func translate(err error) error {
	switch {
	case errors.Is(err, repo.ErrEventFull):
		return errs.Capacity(errs.CodeHouseFull, "house full: registration limit reached").Wrap(err)
	case errors.Is(err, repo.ErrOutOfStock):
		return errs.Capacity(errs.CodeOutOfStock, "merchandise is out of stock").Wrap(err)
	case errors.Is(err, repo.ErrPurchaseLimit):
		return errs.Capacity(errs.CodePurchaseLimit, "purchase limit per participant reached").Wrap(err)
	case errors.Is(err, repo.ErrEventNotFound):
		return errs.NotFound(errs.CodeEventNotFound, "event not found").Wrap(err)
	case errors.Is(err, repo.ErrRegistrationClosed):
		return errs.State(errs.CodeRegistrationClosed, "event is no longer open for registration").Wrap(err)
	default:
		return err
	}
}
