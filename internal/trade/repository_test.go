package trade

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelock/internal/api"
	"tradelock/internal/errs"
	"tradelock/internal/models"
	"tradelock/internal/notify"
	"tradelock/internal/storage"
)

type fakeGate struct {
	mu     sync.Mutex
	online bool
	marked int
	user   models.User
}

func (g *fakeGate) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

func (g *fakeGate) MarkOffline(error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.online = false
	g.marked++
}

func (g *fakeGate) CurrentUser(context.Context) (models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.user, nil
}

func (g *fakeGate) actAs(u models.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.user = u
}

type fakeBackend struct {
	trade   models.Trade
	err     error
	calls   []string
	actions []api.Action
}

func (b *fakeBackend) record(op string) (models.Trade, error) {
	b.calls = append(b.calls, op)
	return b.trade, b.err
}

func (b *fakeBackend) ListTrades(context.Context, models.StatusFilter) ([]models.Trade, error) {
	b.calls = append(b.calls, "list")
	if b.err != nil {
		return nil, b.err
	}
	return []models.Trade{b.trade}, nil
}

func (b *fakeBackend) GetTrade(context.Context, string) (models.Trade, error) { return b.record("get") }

func (b *fakeBackend) CreateTrade(context.Context, models.TradeDraft) (models.Trade, error) {
	return b.record("create")
}

func (b *fakeBackend) JoinTrade(context.Context, string) (models.Trade, error) { return b.record("join") }

func (b *fakeBackend) TradeAction(_ context.Context, _ int64, a api.Action, _ string) (models.Trade, error) {
	b.actions = append(b.actions, a)
	return b.record("action")
}

func (b *fakeBackend) GetUser(context.Context) (models.User, error) {
	b.calls = append(b.calls, "user")
	return models.User{ID: 1, Balance: 42}, nil
}

type toasts struct {
	mu      sync.Mutex
	success []string
	errors  []string
}

func (t *toasts) Success(_ context.Context, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.success = append(t.success, msg)
}

func (t *toasts) Error(_ context.Context, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, msg)
}

func (t *toasts) Info(context.Context, string) {}

type haptics struct{ kinds []string }

func (h *haptics) Impact(_ context.Context, style string) { h.kinds = append(h.kinds, "impact:"+style) }
func (h *haptics) Notify(_ context.Context, kind string)  { h.kinds = append(h.kinds, kind) }

type fixture struct {
	repo    *Repository
	records *storage.Records
	gate    *fakeGate
	backend *fakeBackend
	toasts  *toasts
	haptics *haptics
	now     time.Time
	confirm bool
	asked   int
}

var (
	seller = models.User{ID: 1, TelegramID: 1, FirstName: "Demo", Username: "demo", Balance: 500000}
	userX  = models.User{ID: 2, TelegramID: 2, FirstName: "Xena", Username: "x", Balance: 20000000}
	userY  = models.User{ID: 3, TelegramID: 3, FirstName: "Yuri", Username: "y", Balance: 20000000}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	records := storage.NewRecords(storage.NewMemory(), logger)
	records.Seed(context.Background(), seller)

	f := &fixture{
		records: records,
		gate:    &fakeGate{user: seller},
		backend: &fakeBackend{},
		toasts:  &toasts{},
		haptics: &haptics{},
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		confirm: true,
	}

	f.repo = New(Deps{
		Gate:        f.gate,
		Backend:     f.backend,
		Records:     records,
		Notifier:    f.toasts,
		Confirmer:   notify.ConfirmFunc(f.ask),
		Haptics:     f.haptics,
		Logger:      logger,
		BotUsername: "tradelock_bot",
		Now:         func() time.Time { return f.now },
	})

	return f
}

func (f *fixture) ask(context.Context, string) bool {
	f.asked++
	return f.confirm
}

func iphone() models.TradeDraft {
	return models.TradeDraft{
		TradeType:      models.TradeSell,
		Amount:         18500000,
		CommissionType: models.CommissionCreator,
		Name:           "iPhone 15 Pro Max",
	}
}

func (f *fixture) stored(t *testing.T, id int64) models.Trade {
	t.Helper()

	st := f.records.Snapshot(context.Background())
	tr := st.Trade(id)
	require.NotNil(t, tr)

	return *tr
}

func (f *fixture) sessionUser(t *testing.T) models.User {
	t.Helper()

	u, ok := f.records.User(context.Background())
	require.True(t, ok)

	return u
}

func TestCreateScenario(t *testing.T) {
	f := newFixture(t)

	tr, err := f.repo.Create(context.Background(), iphone())
	require.NoError(t, err)

	assert.Equal(t, models.TradeActive, tr.Status)
	assert.Equal(t, int64(370000), tr.CommissionAmount)
	assert.Nil(t, tr.ParticipantID)
	assert.False(t, tr.CreatorConfirmed)
	assert.False(t, tr.ParticipantConfirmed)
	assert.True(t, tr.PendingSync)
	assert.Len(t, tr.SecretLink, 32)
	assert.Equal(t, "https://t.me/tradelock_bot?startapp="+tr.SecretLink, tr.ShareURL)
	assert.Equal(t, f.now.Add(InviteTTL), tr.ExpiresAt)
	assert.Equal(t, seller.ID, tr.CreatorID)
	assert.Equal(t, "Demo", tr.CreatorName)

	assert.Equal(t, tr, f.stored(t, tr.ID))
	assert.Equal(t, []string{"Trade created"}, f.toasts.success)

	u := f.sessionUser(t)
	assert.Equal(t, 1, u.Stats.TotalTrades)
	assert.Equal(t, 1, u.Stats.ActiveTrades)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft func(d *models.TradeDraft)
	}{
		{"amount below minimum", func(d *models.TradeDraft) { d.Amount = 999 }},
		{"zero amount", func(d *models.TradeDraft) { d.Amount = 0 }},
		{"short name", func(d *models.TradeDraft) { d.Name = "ab" }},
		{"name of spaces", func(d *models.TradeDraft) { d.Name = "  ab   " }},
		{"unknown type", func(d *models.TradeDraft) { d.TradeType = "rent" }},
		{"unknown commission", func(d *models.TradeDraft) { d.CommissionType = "nobody" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			d := iphone()
			tt.draft(&d)

			_, err := f.repo.Create(context.Background(), d)
			assert.ErrorIs(t, err, errs.ErrValidation)
			assert.Empty(t, f.records.Snapshot(context.Background()).Trades)
			assert.Len(t, f.toasts.errors, 1)
		})
	}
}

func TestJoinScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)

	f.gate.actAs(userX)
	joined, err := f.repo.Join(ctx, tr.SecretLink)
	require.NoError(t, err)
	assert.Equal(t, models.TradeInProgress, joined.Status)
	require.NotNil(t, joined.ParticipantID)
	assert.Equal(t, userX.ID, *joined.ParticipantID)
	assert.Equal(t, "Xena", joined.ParticipantName)

	before := f.stored(t, tr.ID)

	f.now = f.now.Add(time.Minute)
	f.gate.actAs(userY)
	_, err = f.repo.Join(ctx, tr.SecretLink)
	require.ErrorIs(t, err, errs.ErrStateConflict)
	assert.Equal(t, "already joined", err.Error())

	assert.Equal(t, before, f.stored(t, tr.ID), "losing join never mutates the record")
}

func TestJoinFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)

	_, err = f.repo.Join(ctx, tr.SecretLink)
	assert.ErrorIs(t, err, errs.ErrAuthorization, "creator cannot join own trade")

	f.gate.actAs(userX)

	_, err = f.repo.Join(ctx, "no-such-link")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.repo.Join(ctx, "  ")
	assert.ErrorIs(t, err, errs.ErrValidation)

	f.now = f.now.Add(InviteTTL + time.Second)
	_, err = f.repo.Join(ctx, tr.SecretLink)
	assert.ErrorIs(t, err, errs.ErrStateConflict)
	assert.Equal(t, "trade expired", err.Error())
}

func TestJoinRequiresBuyerBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := iphone()
	d.CommissionType = models.CommissionPartner
	tr, err := f.repo.Create(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, int64(18500000+370000), RequiredBalance(&tr))

	poor := userX
	poor.Balance = 18500000
	f.gate.actAs(poor)

	_, err = f.repo.Join(ctx, tr.SecretLink)
	assert.ErrorIs(t, err, errs.ErrInsufficientBalance)
	assert.Nil(t, f.stored(t, tr.ID).ParticipantID)

	// в сделке buy присоединяется продавец, баланс ему не нужен
	f.gate.actAs(seller)
	d.TradeType = models.TradeBuy
	buy, err := f.repo.Create(ctx, d)
	require.NoError(t, err)
	assert.Zero(t, RequiredBalance(&buy))

	poor.Balance = 0
	f.gate.actAs(poor)
	_, err = f.repo.Join(ctx, buy.SecretLink)
	assert.NoError(t, err)
}

func TestConfirmScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)

	f.gate.actAs(userX)
	_, err = f.repo.Join(ctx, tr.SecretLink)
	require.NoError(t, err)

	f.gate.actAs(userY)
	_, err = f.repo.Confirm(ctx, tr.ID)
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	f.gate.actAs(userX)
	half, err := f.repo.Confirm(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, half.ParticipantConfirmed)
	assert.Equal(t, models.TradeInProgress, half.Status)
	assert.Nil(t, half.CompletedAt, "completed_at requires both flags")

	f.now = f.now.Add(time.Hour)
	f.gate.actAs(seller)
	done, err := f.repo.Confirm(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeCompleted, done.Status)
	assert.True(t, done.CreatorConfirmed)
	assert.True(t, done.ParticipantConfirmed)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, f.now, *done.CompletedAt)
	assert.Equal(t, int64(370000), done.CommissionAmount)
	assert.Contains(t, f.haptics.kinds, notify.FeedbackSuccess)

	// идемпотентно
	f.now = f.now.Add(time.Hour)
	again, err := f.repo.Confirm(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, done, again)

	f.gate.actAs(userX)
	again, err = f.repo.Confirm(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, done, again)

	// продавец получил amount минус свою комиссию
	u := f.sessionUser(t)
	assert.Equal(t, int64(500000+18500000-370000), u.Balance)
	assert.True(t, u.PendingSync)
	assert.Equal(t, 1, u.Stats.CompletedTrades)
	assert.Equal(t, int64(18500000), u.Stats.TotalVolume)
	assert.Equal(t, int64(370000), u.Stats.CommissionPaid)
	assert.Equal(t, 100.0, u.Stats.SuccessRate)

	payments := f.records.Snapshot(ctx).Payments
	require.Len(t, payments, 2)

	var sum int64
	for _, p := range payments {
		require.NotNil(t, p.TradeID)
		assert.Equal(t, tr.ID, *p.TradeID)
		assert.Equal(t, models.PaymentCompleted, p.Status)
		sum += p.Signed()
	}
	assert.Equal(t, int64(18500000-370000), sum)

	_, err = f.repo.Cancel(ctx, tr.ID, "late")
	assert.ErrorIs(t, err, errs.ErrStateConflict, "no transition leaves a terminal state")
}

func TestCompletionDebitsBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// создатель покупает, комиссия пополам
	d := models.TradeDraft{TradeType: models.TradeBuy, Amount: 100000, CommissionType: models.CommissionSplit, Name: "Sneakers"}
	tr, err := f.repo.Create(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), tr.CommissionAmount)

	f.gate.actAs(userX)
	_, err = f.repo.Join(ctx, tr.SecretLink)
	require.NoError(t, err)
	_, err = f.repo.Confirm(ctx, tr.ID)
	require.NoError(t, err)

	f.gate.actAs(seller)
	_, err = f.repo.Confirm(ctx, tr.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(500000-100000-1000), f.sessionUser(t).Balance)
}

func TestCompletionWithoutFundsFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := models.TradeDraft{TradeType: models.TradeBuy, Amount: 1000000, CommissionType: models.CommissionCreator, Name: "Laptop"}
	tr, err := f.repo.Create(ctx, d)
	require.NoError(t, err)

	f.gate.actAs(userX)
	_, err = f.repo.Join(ctx, tr.SecretLink)
	require.NoError(t, err)
	_, err = f.repo.Confirm(ctx, tr.ID)
	require.NoError(t, err)

	f.gate.actAs(seller)
	_, err = f.repo.Confirm(ctx, tr.ID)
	assert.ErrorIs(t, err, errs.ErrInsufficientBalance)

	stored := f.stored(t, tr.ID)
	assert.Equal(t, models.TradeInProgress, stored.Status)
	assert.False(t, stored.CreatorConfirmed)
	assert.Nil(t, stored.CompletedAt)
	assert.Equal(t, int64(500000), f.sessionUser(t).Balance)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)

	f.gate.actAs(userY)
	_, err = f.repo.Cancel(ctx, tr.ID, "")
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	f.gate.actAs(seller)
	f.confirm = false
	_, err = f.repo.Cancel(ctx, tr.ID, "changed my mind")
	assert.ErrorIs(t, err, errs.ErrAborted)
	assert.Equal(t, models.TradeActive, f.stored(t, tr.ID).Status)

	f.confirm = true
	cancelled, err := f.repo.Cancel(ctx, tr.ID, "  changed my mind ")
	require.NoError(t, err)
	assert.Equal(t, models.TradeCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Nil(t, cancelled.CompletedAt)

	_, err = f.repo.Cancel(ctx, tr.ID, "")
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	_, err = f.repo.Confirm(ctx, tr.ID)
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	f.gate.actAs(userX)
	_, err = f.repo.Join(ctx, tr.SecretLink)
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	_, err = f.repo.Cancel(ctx, 999, "")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	u := f.sessionUser(t)
	assert.Equal(t, 1, u.Stats.CancelledTrades)
	assert.Zero(t, u.Stats.SuccessRate)
}

func TestCancelChecksTradeBeforeAsking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.Cancel(ctx, 999, "")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Zero(t, f.asked)

	tr, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)

	f.gate.actAs(userY)
	_, err = f.repo.Cancel(ctx, tr.ID, "")
	assert.ErrorIs(t, err, errs.ErrAuthorization)
	assert.Zero(t, f.asked)

	f.gate.actAs(seller)
	_, err = f.repo.Cancel(ctx, tr.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.asked)
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	d := iphone()
	d.Name = "MacBook"
	b, err := f.repo.Create(ctx, d)
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)

	f.now = f.now.Add(time.Minute)
	c, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)
	_, err = f.repo.Cancel(ctx, c.ID, "")
	require.NoError(t, err)

	f.gate.actAs(userX)
	_, err = f.repo.Join(ctx, b.SecretLink)
	require.NoError(t, err)
	f.gate.actAs(seller)

	all, err := f.repo.List(ctx, models.FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, c.ID, all[0].ID, "newest first")

	active, err := f.repo.List(ctx, models.FilterActive)
	require.NoError(t, err)
	assert.Len(t, active, 2, "active includes in_progress")

	cancelled, err := f.repo.List(ctx, models.FilterCancelled)
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)

	_, err = f.repo.List(ctx, "archived")
	assert.ErrorIs(t, err, errs.ErrValidation)

	f.gate.actAs(userY)
	none, err := f.repo.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)

	byLink, err := f.repo.Get(ctx, a.SecretLink)
	require.NoError(t, err)
	assert.Equal(t, a.ID, byLink.ID)

	byID, err := f.repo.Get(ctx, strconv.FormatInt(b.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, b.SecretLink, byID.SecretLink)

	_, err = f.repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestJoinRaceFirstCommitWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)

	local := f.repo.local

	const joiners = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)

	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			u := models.User{ID: int64(100 + i), FirstName: fmt.Sprintf("u%d", i), Balance: 100000000}
			_, err := local.Join(ctx, u, tr.SecretLink)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, errs.ErrStateConflict) {
				conflicts++
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, joiners-1, conflicts)
}

func TestOnlineMirrorsIntoCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gate.online = true
	f.backend.trade = models.Trade{ID: 77, SecretLink: "srv", Status: models.TradeCompleted, CreatorID: seller.ID}

	tr, err := f.repo.Confirm(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(77), tr.ID)
	assert.Equal(t, []api.Action{api.ActionConfirm}, f.backend.actions)
	assert.Contains(t, f.backend.calls, "user", "balance refreshed after completion")

	cached := f.stored(t, 77)
	assert.False(t, cached.PendingSync)
	assert.Equal(t, int64(42), f.sessionUser(t).Balance)
}

func TestCompletionKeepsUnsyncedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := seller
	pending.Balance = 510000
	pending.PendingSync = true
	f.records.SaveUser(ctx, pending)

	f.gate.online = true
	f.backend.trade = models.Trade{ID: 77, SecretLink: "srv", Status: models.TradeCompleted, CreatorID: seller.ID}

	_, err := f.repo.Confirm(ctx, 77)
	require.NoError(t, err)
	assert.Contains(t, f.backend.calls, "user")

	u := f.sessionUser(t)
	assert.True(t, u.PendingSync)
	assert.Equal(t, int64(510000), u.Balance)
}

func TestConnectivityFailureFallsBackLocally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gate.online = true
	f.backend.err = errs.Connectivity("timeout", context.DeadlineExceeded)

	tr, err := f.repo.Create(ctx, iphone())
	require.NoError(t, err)
	assert.True(t, tr.PendingSync)
	assert.Equal(t, 1, f.gate.marked)
	assert.False(t, f.gate.Online())

	// следующий вызов сразу идет локально
	_, err = f.repo.List(ctx, models.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"create"}, f.backend.calls)
	assert.Empty(t, f.toasts.errors, "connectivity is never surfaced")
}

func TestBackendDomainErrorSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gate.online = true
	f.backend.err = errs.StateConflict("already joined")
	f.gate.actAs(userX)

	_, err := f.repo.Join(ctx, "abc")
	assert.ErrorIs(t, err, errs.ErrStateConflict)
	assert.Zero(t, f.gate.marked)
	assert.Equal(t, []string{"already joined"}, f.toasts.errors)
}
