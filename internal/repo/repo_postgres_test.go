package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
)

// These tests run the SQL against a real database and are skipped unless
// FELICITY_TEST_DSN points at a disposable Postgres. The schema is dropped
// and recreated.
const testDSNEnv = "FELICITY_TEST_DSN"

const migrationsDir = "../../migrations/postgres"

func newPostgres(t *testing.T) Repository {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDSNEnv)
	}
	db, err := dbpg.New(dsn, nil, &dbpg.Options{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	log := zerolog.Nop()
	r, err := NewRepository(db, &log)
	require.NoError(t, err)
	require.NoError(t, r.MigrateDown(migrationsDir))
	require.NoError(t, r.MigrateUp(migrationsDir))
	t.Cleanup(func() { _ = db.Master.Close() })
	return r
}

func createEvent(t *testing.T, r Repository, e *model.Event) int64 {
	t.Helper()
	if e.Status == "" {
		e.Status = model.EventPublished
	}
	if e.Type == "" {
		e.Type = model.EventNormal
	}
	e.OrganizerID = "org-1"
	e.Name = "Hackathon"
	e.Eligibility = model.EligibilityAll
	id, err := r.CreateEvent(context.Background(), e)
	require.NoError(t, err)
	return id
}

func createRegistration(t *testing.T, r Repository, eventID int64, participant string, status model.RegistrationStatus) int64 {
	t.Helper()
	id, err := r.CreateRegistration(context.Background(), &model.Registration{
		EventID:            eventID,
		ParticipantID:      participant,
		Status:             status,
		PaymentStatus:      model.PaymentNotApplicable,
		PaymentProofStatus: model.ProofNone,
	})
	require.NoError(t, err)
	return id
}

func TestPostgresSeatLimitUnderConcurrency(t *testing.T) {
	r := newPostgres(t)
	ctx := context.Background()
	limit := 5
	eventID := createEvent(t, r, &model.Event{RegistrationLimit: &limit})

	var ok, full atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := r.ReserveSeat(ctx, eventID); {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrEventFull):
				full.Add(1)
			default:
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), ok.Load())
	assert.Equal(t, int32(30-limit), full.Load())
	e, err := r.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, limit, e.CurrentRegistrations)

	assert.ErrorIs(t, r.ReserveSeat(ctx, 424242), ErrEventNotFound)
}

func TestPostgresRegistrationNeedsPublishedEvent(t *testing.T) {
	r := newPostgres(t)
	ctx := context.Background()
	eventID := createEvent(t, r, &model.Event{})

	require.NoError(t, r.UpdateEventStatusTx(ctx, eventID, model.EventPublished, model.EventOngoing))
	assert.ErrorIs(t, r.UpdateEventStatusTx(ctx, eventID, model.EventPublished, model.EventCancelled), ErrStatusConflict)

	assert.ErrorIs(t, r.ReserveSeat(ctx, eventID), ErrRegistrationClosed)
	_, err := r.CreateRegistration(ctx, &model.Registration{
		EventID: eventID, ParticipantID: "alice", Status: model.RegistrationPending,
		PaymentStatus: model.PaymentNotApplicable, PaymentProofStatus: model.ProofNone,
	})
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	e, err := r.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, e.CurrentRegistrations)
}

func TestPostgresDuplicateRegistration(t *testing.T) {
	r := newPostgres(t)
	ctx := context.Background()
	eventID := createEvent(t, r, &model.Event{})

	first := createRegistration(t, r, eventID, "alice", model.RegistrationPending)
	_, err := r.CreateRegistration(ctx, &model.Registration{
		EventID: eventID, ParticipantID: "alice", Status: model.RegistrationPending,
		PaymentStatus: model.PaymentNotApplicable, PaymentProofStatus: model.ProofNone,
	})
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	_, err = r.CancelRegistrationTx(ctx, first)
	require.NoError(t, err)
	createRegistration(t, r, eventID, "alice", model.RegistrationPending)
}

func TestPostgresPurchaseCounterAndStock(t *testing.T) {
	r := newPostgres(t)
	ctx := context.Background()
	eventID := createEvent(t, r, &model.Event{
		Type:        model.EventMerchandise,
		Merchandise: &model.MerchandiseDetails{StockQuantity: 4, PurchaseLimitPerParticipant: 3},
	})

	require.NoError(t, r.ReserveStock(ctx, eventID, "alice", 2, 3))
	assert.ErrorIs(t, r.ReserveStock(ctx, eventID, "alice", 2, 3), ErrPurchaseLimit)
	require.NoError(t, r.ReserveStock(ctx, eventID, "alice", 1, 3))

	// bob is within his own limit but only one unit is left; the purchase
	// counter insert must roll back with the stock failure.
	assert.ErrorIs(t, r.ReserveStock(ctx, eventID, "bob", 2, 3), ErrOutOfStock)
	require.NoError(t, r.ReserveStock(ctx, eventID, "bob", 1, 3))

	e, err := r.GetEventByID(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Merchandise.StockQuantity)

	require.NoError(t, r.ReleaseStock(ctx, eventID, "alice", 3))
	require.NoError(t, r.ReserveStock(ctx, eventID, "alice", 3, 3))
}

func TestPostgresMarkAttendedOnce(t *testing.T) {
	r := newPostgres(t)
	ctx := context.Background()
	eventID := createEvent(t, r, &model.Event{})
	regID := createRegistration(t, r, eventID, "alice", model.RegistrationPending)

	_, _, err := r.MarkAttendedTx(ctx, regID, time.Now())
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = r.ConfirmRegistrationTx(ctx, regID)
	require.NoError(t, err)

	var marked atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, reg, err := r.MarkAttendedTx(ctx, regID, time.Now())
			if !assert.NoError(t, err) {
				return
			}
			assert.True(t, reg.Attended)
			if ok {
				marked.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), marked.Load())
}

func TestPostgresTicketConstraints(t *testing.T) {
	r := newPostgres(t)
	ctx := context.Background()
	eventID := createEvent(t, r, &model.Event{})
	first := createRegistration(t, r, eventID, "alice", model.RegistrationPending)
	second := createRegistration(t, r, eventID, "bob", model.RegistrationPending)

	ticket := func(id string, regID int64) *model.Ticket {
		return &model.Ticket{ID: id, RegistrationID: regID, EventID: eventID,
			QRPayload: fmt.Sprintf("FEL1.%s.X", id), IssuedAt: time.Now().UTC()}
	}
	require.NoError(t, r.CreateTicket(ctx, ticket("TKT-AAAAAAAAAAAA", first)))
	assert.ErrorIs(t, r.CreateTicket(ctx, ticket("TKT-AAAAAAAAAAAA", second)), ErrTicketIDTaken)
	assert.ErrorIs(t, r.CreateTicket(ctx, ticket("TKT-BBBBBBBBBBBB", first)), ErrTicketExists)

	got, err := r.GetTicketByRegistrationID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "TKT-AAAAAAAAAAAA", got.ID)
	_, err = r.GetTicketByID(ctx, "TKT-CCCCCCCCCCCC")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}
