// Package ticket mints ticket identifiers and QR payloads for confirmed
// registrations and resolves scanned codes back to tickets.
package ticket

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
)

const (
	IDPrefix       = "TKT-"
	PayloadVersion = "FEL1"
	idLength       = 12
	maxAttempts    = 5
)

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

type Store interface {
	CreateTicket(ctx context.Context, t *model.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*model.Ticket, error)
	GetTicketByRegistrationID(ctx context.Context, registrationID int64) (*model.Ticket, error)
}

type Issuer struct {
	store  Store
	signer Signer
	log    *zerolog.Logger
	now    func() time.Time
	newID  func() (string, error)
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithIDGenerator replaces the random id source.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(i *Issuer) { i.newID = gen }
}

func NewIssuer(store Store, signer Signer, log *zerolog.Logger, opts ...Option) *Issuer {
	i := &Issuer{
		store:  store,
		signer: signer,
		log:    log,
		now:    time.Now,
		newID:  NewID,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewID returns TKT- followed by 60 random bits in Crockford base32.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	n := binary.BigEndian.Uint64(u[:8])
	var b strings.Builder
	b.Grow(len(IDPrefix) + idLength)
	b.WriteString(IDPrefix)
	for i := idLength - 1; i >= 0; i-- {
		b.WriteByte(crockford[(n>>(uint(i)*5))&0x1f])
	}
	return b.String(), nil
}

// Payload builds the QR payload for ticketID.
func (i *Issuer) Payload(ticketID string) string {
	return PayloadVersion + "." + ticketID + "." + i.signer.Mark(ticketID)
}

// Issue returns the ticket for a confirmed registration, minting it on first
// call. A registration never gets a second ticket.
func (i *Issuer) Issue(ctx context.Context, reg *model.Registration) (*model.Ticket, error) {
	if reg.Status != model.RegistrationConfirmed {
		return nil, errs.State(errs.CodeNotConfirmed, "registration %d is %s, tickets are issued only once confirmed", reg.ID, reg.Status)
	}
	existing, err := i.store.GetTicketByRegistrationID(ctx, reg.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repo.ErrTicketNotFound) {
		return nil, err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		id, err := i.newID()
		if err != nil {
			return nil, err
		}
		t := &model.Ticket{
			ID:             id,
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			QRPayload:      i.Payload(id),
			IssuedAt:       i.now().UTC(),
		}
		err = i.store.CreateTicket(ctx, t)
		switch {
		case err == nil:
			i.log.Info().Str("ticket_id", t.ID).Int64("registration_id", reg.ID).Msg("ticket issued")
			return t, nil
		case errors.Is(err, repo.ErrTicketIDTaken):
			i.log.Warn().Str("ticket_id", id).Int("attempt", attempt).Msg("ticket id collision, regenerating")
		case errors.Is(err, repo.ErrTicketExists):
			return i.store.GetTicketByRegistrationID(ctx, reg.ID)
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to mint a unique ticket id after %d attempts", maxAttempts)
}

// Resolve maps a scanned code (bare ticket id or full QR payload) to its
// ticket. Anything that was not issued here is reported as not found.
func (i *Issuer) Resolve(ctx context.Context, code string) (*model.Ticket, error) {
	id, err := i.parse(strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	t, err := i.store.GetTicketByID(ctx, id)
	if errors.Is(err, repo.ErrTicketNotFound) {
		return nil, notRecognized().Wrap(err)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (i *Issuer) parse(code string) (string, error) {
	if !strings.HasPrefix(code, PayloadVersion+".") {
		if code == "" {
			return "", notRecognized()
		}
		return code, nil
	}
	parts := strings.Split(code, ".")
	if len(parts) != 3 || !i.signer.Verify(parts[1], parts[2]) {
		return "", notRecognized()
	}
	return parts[1], nil
}

func notRecognized() *errs.Error {
	return errs.NotFound(errs.CodeTicketNotFound, "ticket not recognized")
}
