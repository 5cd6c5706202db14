package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/errs"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/model"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/repo"
)

func newLedger(t *testing.T, e *model.Event) (*Ledger, repo.Repository, *model.Event) {
	t.Helper()
	store := repo.NewMemoryRepository()
	if e.Status == "" {
		e.Status = model.EventPublished
	}
	id, err := store.CreateEvent(context.Background(), e)
	require.NoError(t, err)
	e.ID = id
	log := zerolog.Nop()
	return New(store, &log), store, e
}

func TestSeatLimitUnderConcurrency(t *testing.T) {
	limit := 7
	l, store, e := newLedger(t, &model.Event{Type: model.EventNormal, RegistrationLimit: &limit})

	var ok, full atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.ReserveSeat(context.Background(), e, fmt.Sprintf("p%d", i))
			if err == nil {
				ok.Add(1)
				return
			}
			assert.Equal(t, errs.CodeHouseFull, errs.CodeOf(err))
			full.Add(1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(limit), ok.Load())
	assert.Equal(t, int32(50-limit), full.Load())
	got, err := store.GetEventByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, got.CurrentRegistrations)
}

func TestReleaseReturnsEverything(t *testing.T) {
	l, store, e := newLedger(t, &model.Event{
		Type:        model.EventMerchandise,
		Merchandise: &model.MerchandiseDetails{StockQuantity: 5, PurchaseLimitPerParticipant: 2},
	})
	ctx := context.Background()

	res, err := l.ReserveSeat(ctx, e, "alice")
	require.NoError(t, err)
	require.NoError(t, res.ReserveStock(ctx, 2, 2))

	got, _ := store.GetEventByID(ctx, e.ID)
	assert.Equal(t, 3, got.Merchandise.StockQuantity)
	assert.Equal(t, 1, got.CurrentRegistrations)

	res.Release(ctx)
	res.Release(ctx)

	got, _ = store.GetEventByID(ctx, e.ID)
	assert.Equal(t, 5, got.Merchandise.StockQuantity)
	assert.Equal(t, 0, got.CurrentRegistrations)

	// The purchase counter was returned too.
	res, err = l.ReserveSeat(ctx, e, "alice")
	require.NoError(t, err)
	assert.NoError(t, res.ReserveStock(ctx, 2, 2))
}

func TestPurchaseLimitIsCumulative(t *testing.T) {
	l, store, e := newLedger(t, &model.Event{
		Type:        model.EventMerchandise,
		Merchandise: &model.MerchandiseDetails{StockQuantity: 5, PurchaseLimitPerParticipant: 2},
	})
	ctx := context.Background()

	first, err := l.ReserveSeat(ctx, e, "bob")
	require.NoError(t, err)
	require.NoError(t, first.ReserveStock(ctx, 2, 2))

	second, err := l.ReserveSeat(ctx, e, "bob")
	require.NoError(t, err)
	err = second.ReserveStock(ctx, 2, 2)
	assert.Equal(t, errs.CodePurchaseLimit, errs.CodeOf(err))
	second.Release(ctx)

	got, _ := store.GetEventByID(ctx, e.ID)
	assert.Equal(t, 3, got.Merchandise.StockQuantity, "failed reservation leaves stock untouched")
	assert.Equal(t, 1, got.CurrentRegistrations)
}

func TestStockNeverNegative(t *testing.T) {
	l, store, e := newLedger(t, &model.Event{
		Type:        model.EventMerchandise,
		Merchandise: &model.MerchandiseDetails{StockQuantity: 10, PurchaseLimitPerParticipant: 3},
	})
	ctx := context.Background()

	var sold atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := l.ReserveSeat(ctx, e, fmt.Sprintf("p%d", i))
			if !assert.NoError(t, err) {
				return
			}
			if err := res.ReserveStock(ctx, 3, 3); err != nil {
				assert.True(t, errs.IsKind(err, errs.KindCapacity))
				res.Release(ctx)
				return
			}
			sold.Add(3)
		}(i)
	}
	wg.Wait()

	got, _ := store.GetEventByID(ctx, e.ID)
	assert.Equal(t, int32(9), sold.Load())
	assert.Equal(t, 1, got.Merchandise.StockQuantity)
}

func TestUnknownEvent(t *testing.T) {
	l, _, _ := newLedger(t, &model.Event{Type: model.EventNormal})
	_, err := l.ReserveSeat(context.Background(), &model.Event{ID: 999}, "p")
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestSeatRefusedOnceEventLeavesPublished(t *testing.T) {
	l, store, e := newLedger(t, &model.Event{Type: model.EventNormal})
	ctx := context.Background()
	require.NoError(t, store.UpdateEventStatusTx(ctx, e.ID, model.EventPublished, model.EventOngoing))

	_, err := l.ReserveSeat(ctx, e, "p")
	assert.Equal(t, errs.KindState, errs.KindOf(err))
	assert.Equal(t, errs.CodeRegistrationClosed, errs.CodeOf(err))

	got, err := store.GetEventByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentRegistrations)
}
