package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelock/internal/config"
	"tradelock/internal/errs"
	"tradelock/internal/gate"
	"tradelock/internal/models"
	"tradelock/internal/payment"
	"tradelock/internal/storage"
)

// fakeBackend - бэкенд, который можно "выключить"
type fakeBackend struct {
	up atomic.Bool

	mu     sync.Mutex
	pushed []models.SyncBatch
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !b.up.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/health":
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case "/api/auth":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "backend-token",
			"user":  models.User{ID: 42, TelegramID: 42, FirstName: "Aziz", Balance: 700000},
		})
	case "/api/sync":
		var batch models.SyncBatch
		_ = json.NewDecoder(r.Body).Decode(&batch)

		b.mu.Lock()
		b.pushed = append(b.pushed, batch)
		b.mu.Unlock()

		res := models.SyncResult{User: batch.User != nil}
		for _, t := range batch.Trades {
			res.Trades = append(res.Trades, t.ID)
		}
		for _, p := range batch.Payments {
			res.Payments = append(res.Payments, p.ID)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"data": res})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newApp(t *testing.T, apiURL string, offline bool) *App {
	t.Helper()

	cfg := &config.Config{
		APIURL:          apiURL,
		BotUsername:     "tradelock_bot",
		SettlementDelay: 2 * time.Second,
		AuthTimeout:     time.Second,
		CallTimeout:     time.Second,
		Offline:         offline,
	}

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Store:     storage.NewMemory(),
		Scheduler: &payment.ManualScheduler{},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = a.Close() })

	return a
}

func initData() string {
	v := url.Values{}
	v.Set("auth_date", "1700000000")
	v.Set("user", `{"id":42,"first_name":"Aziz"}`)
	v.Set("hash", "unchecked")

	return v.Encode()
}

func TestOfflineThenReconnectSyncs(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	a := newApp(t, srv.URL+"/api", false)
	ctx := context.Background()

	resp, err := a.Authenticate(ctx, initData())
	require.NoError(t, err)
	assert.Equal(t, "offline_mock_token", resp.Token)
	assert.Equal(t, int64(42), resp.User.ID)
	assert.Equal(t, gate.ModeOffline, a.Gate.Mode())

	created, err := a.Trades.Create(ctx, models.TradeDraft{
		TradeType:      models.TradeSell,
		Amount:         10000,
		CommissionType: models.CommissionPartner,
		Name:           "Console",
	})
	require.NoError(t, err)
	assert.True(t, created.PendingSync)

	backend.up.Store(true)

	assert.True(t, a.Gate.Probe(ctx))
	assert.Equal(t, "backend-token", a.Gate.Token())

	backend.mu.Lock()
	require.Len(t, backend.pushed, 1)
	assert.Len(t, backend.pushed[0].Trades, 1)
	backend.mu.Unlock()

	assert.True(t, a.Syncer.Pending(ctx).Empty())
	assert.False(t, a.Records.LastSync(ctx).IsZero())
}

func TestForcedOffline(t *testing.T) {
	a := newApp(t, "http://127.0.0.1:1/api", true)
	ctx := context.Background()

	resp, err := a.Authenticate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(gate.DemoBalance), resp.User.Balance)
	assert.False(t, a.Gate.Probe(ctx))
}

func TestInvalidInitData(t *testing.T) {
	a := newApp(t, "http://127.0.0.1:1/api", true)

	_, err := a.Authenticate(context.Background(), "user=%zz")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestRestartResumesPendingDeposit(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	cfg := &config.Config{
		APIURL:          "http://127.0.0.1:1/api",
		SettlementDelay: 2 * time.Second,
		AuthTimeout:     time.Second,
		CallTimeout:     time.Second,
		Offline:         true,
	}

	first, err := New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Store:     store,
		Scheduler: &payment.ManualScheduler{},
	})
	require.NoError(t, err)

	_, err = first.Authenticate(ctx, "")
	require.NoError(t, err)
	_, err = first.Payments.Deposit(ctx, 10000, models.MethodCard, "8600 1234 5678 9012")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	var logs bytes.Buffer
	scheduler := &payment.ManualScheduler{}

	second, err := New(ctx, cfg, slog.New(slog.NewTextHandler(&logs, nil)), Options{
		Store:     store,
		Scheduler: scheduler,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	assert.Equal(t, 1, strings.Count(logs.String(), "pending settlements"), "resume is logged once")

	assert.Equal(t, 1, scheduler.Advance(2*time.Second))

	u, ok := second.Records.User(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(gate.DemoBalance+10000), u.Balance)
}
