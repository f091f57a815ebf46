package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelock/internal/models"
	"tradelock/internal/storage"
)

type fakePusher struct {
	calls   int
	batches []models.SyncBatch
	err     error
	accept  func(b models.SyncBatch) models.SyncResult
	during  func()
}

func (f *fakePusher) PushPending(_ context.Context, b models.SyncBatch) (models.SyncResult, error) {
	f.calls++
	f.batches = append(f.batches, b)

	if f.during != nil {
		f.during()
	}

	if f.err != nil {
		return models.SyncResult{}, f.err
	}

	if f.accept != nil {
		return f.accept(b), nil
	}

	res := models.SyncResult{User: b.User != nil}
	for _, t := range b.Trades {
		res.Trades = append(res.Trades, t.ID)
	}
	for _, p := range b.Payments {
		res.Payments = append(res.Payments, p.ID)
	}

	return res, nil
}

func newRecords(t *testing.T) *storage.Records {
	t.Helper()
	return storage.NewRecords(storage.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seed(t *testing.T, r *storage.Records) {
	t.Helper()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, r.Mutate(context.Background(), func(st *storage.State) error {
		u := models.User{ID: 1, Balance: 500000}
		MarkUser(&u)
		st.User = &u
		st.TouchUser()

		t1 := models.Trade{ID: 10, Status: models.TradeActive, UpdatedAt: now}
		MarkTrade(&t1)
		st.UpsertTrade(t1)
		st.UpsertTrade(models.Trade{ID: 11, Status: models.TradeCompleted, UpdatedAt: now})

		p := models.Payment{ID: "p1", Status: models.PaymentPending}
		MarkPayment(&p)
		st.UpsertPayment(p)

		return nil
	}))
}

func TestPending(t *testing.T) {
	r := newRecords(t)
	seed(t, r)

	m := New(r, &fakePusher{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b := m.Pending(context.Background())

	require.NotNil(t, b.User)
	require.Len(t, b.Trades, 1)
	assert.Equal(t, int64(10), b.Trades[0].ID)
	require.Len(t, b.Payments, 1)
	assert.False(t, b.Empty())
}

func TestReconcileClearsAcceptedAndWritesLastSync(t *testing.T) {
	r := newRecords(t)
	seed(t, r)
	ctx := context.Background()

	pusher := &fakePusher{}
	m := New(r, pusher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	_, err := m.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pusher.calls)

	assert.True(t, m.Pending(ctx).Empty())
	assert.True(t, r.LastSync(ctx).Equal(at))

	// нечего отправлять: бэкенд не вызывается
	_, err = m.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pusher.calls)
}

func TestReconcileKeepsRejectedAndChangedRecords(t *testing.T) {
	r := newRecords(t)
	seed(t, r)
	ctx := context.Background()

	pusher := &fakePusher{
		accept: func(b models.SyncBatch) models.SyncResult {
			return models.SyncResult{Trades: []int64{10}, Payments: []string{"p1"}}
		},
		during: func() {
			// платеж проведен во время отправки
			_ = r.Mutate(ctx, func(st *storage.State) error {
				st.Payment("p1").Status = models.PaymentCompleted
				st.TouchPayments()
				return nil
			})
		},
	}

	m := New(r, pusher, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	left := m.Pending(ctx)
	assert.NotNil(t, left.User, "user was not accepted")
	assert.Empty(t, left.Trades)
	require.Len(t, left.Payments, 1, "payment changed while pushing")
	assert.Equal(t, models.PaymentCompleted, left.Payments[0].Status)
}

func TestReconcileFailureKeepsFlags(t *testing.T) {
	r := newRecords(t)
	seed(t, r)
	ctx := context.Background()

	m := New(r, &fakePusher{err: errors.New("boom")}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := m.Reconcile(ctx)
	require.Error(t, err)
	assert.False(t, m.Pending(ctx).Empty())
	assert.True(t, r.LastSync(ctx).IsZero())

	m.Hook(ctx)
}
