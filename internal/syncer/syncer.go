// Package syncer помечает записи, измененные в offline режиме,
// и отправляет их бэкенду, когда связь появляется.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradelock/internal/models"
	"tradelock/internal/storage"
)

func MarkTrade(t *models.Trade)     { t.PendingSync = true }
func MarkPayment(p *models.Payment) { p.PendingSync = true }
func MarkUser(u *models.User)       { u.PendingSync = true }

// Pusher принимает пакет несинхронизированных записей (бэкенд, POST /sync)
type Pusher interface {
	PushPending(ctx context.Context, batch models.SyncBatch) (models.SyncResult, error)
}

// Marker собирает и отправляет несинхронизированные записи
type Marker struct {
	records *storage.Records
	pusher  Pusher
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
}

func New(records *storage.Records, pusher Pusher, logger *slog.Logger) *Marker {
	return &Marker{
		records: records,
		pusher:  pusher,
		logger:  logger,
		now:     time.Now,
	}
}

// Pending возвращает записи с pending_sync
func (m *Marker) Pending(ctx context.Context) models.SyncBatch {
	st := m.records.Snapshot(ctx)

	batch := models.SyncBatch{
		Trades:   []models.Trade{},
		Payments: []models.Payment{},
	}

	if st.User != nil && st.User.PendingSync {
		batch.User = st.User
	}

	for _, t := range st.Trades {
		if t.PendingSync {
			batch.Trades = append(batch.Trades, t)
		}
	}

	for _, p := range st.Payments {
		if p.PendingSync {
			batch.Payments = append(batch.Payments, p)
		}
	}

	return batch
}

// Reconcile отправляет несинхронизированные записи и снимает флаг с принятых.
// Запись, измененная во время отправки, остается помеченной.
func (m *Marker) Reconcile(ctx context.Context) (models.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.Pending(ctx)
	if batch.Empty() {
		return models.SyncResult{}, nil
	}

	res, err := m.pusher.PushPending(ctx, batch)
	if err != nil {
		return models.SyncResult{}, fmt.Errorf("failed to push pending records: %w", err)
	}

	pushedTrades := make(map[int64]models.Trade, len(batch.Trades))
	for _, t := range batch.Trades {
		pushedTrades[t.ID] = t
	}

	pushedPayments := make(map[string]models.Payment, len(batch.Payments))
	for _, p := range batch.Payments {
		pushedPayments[p.ID] = p
	}

	cleared := 0

	err = m.records.Mutate(ctx, func(st *storage.State) error {
		for _, id := range res.Trades {
			t, pushed := st.Trade(id), pushedTrades[id]
			if t == nil || !t.UpdatedAt.Equal(pushed.UpdatedAt) || t.Status != pushed.Status {
				continue
			}

			t.PendingSync = false
			st.TouchTrades()
			cleared++
		}

		for _, id := range res.Payments {
			p, pushed := st.Payment(id), pushedPayments[id]
			if p == nil || p.Status != pushed.Status {
				continue
			}

			p.PendingSync = false
			st.TouchPayments()
			cleared++
		}

		if res.User && batch.User != nil && st.User != nil && sameUser(*st.User, *batch.User) {
			st.User.PendingSync = false
			st.TouchUser()
			cleared++
		}

		return nil
	})
	if err != nil {
		return models.SyncResult{}, err
	}

	m.records.SetLastSync(ctx, m.now())

	m.logger.Info("🔄 Offline changes synchronized",
		slog.Int("trades", len(batch.Trades)),
		slog.Int("payments", len(batch.Payments)),
		slog.Int("cleared", cleared))

	return res, nil
}

// Hook - хук шлюза на переход в online
func (m *Marker) Hook(ctx context.Context) {
	if _, err := m.Reconcile(ctx); err != nil {
		m.logger.Warn("Sync failed, will retry on next reconnect", slog.Any("error", err))
	}
}

func sameUser(a, b models.User) bool {
	return a.ID == b.ID &&
		a.Balance == b.Balance &&
		a.FirstName == b.FirstName &&
		a.LastName == b.LastName &&
		a.Username == b.Username &&
		a.Settings == b.Settings
}
