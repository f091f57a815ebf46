package trade

import (
	"context"
	"log/slog"

	"tradelock/internal/api"
	"tradelock/internal/models"
	"tradelock/internal/storage"
)

// Backend - часть API бэкенда для сделок
type Backend interface {
	ListTrades(ctx context.Context, filter models.StatusFilter) ([]models.Trade, error)
	GetTrade(ctx context.Context, ref string) (models.Trade, error)
	CreateTrade(ctx context.Context, draft models.TradeDraft) (models.Trade, error)
	JoinTrade(ctx context.Context, link string) (models.Trade, error)
	TradeAction(ctx context.Context, id int64, action api.Action, reason string) (models.Trade, error)
	GetUser(ctx context.Context) (models.User, error)
}

// remoteStrategy выполняет операции на бэкенде и зеркалирует результат в кэш
type remoteStrategy struct {
	backend Backend
	records *storage.Records
	logger  *slog.Logger
}

func (s *remoteStrategy) Create(ctx context.Context, _ models.User, draft models.TradeDraft) (models.Trade, error) {
	return s.mirror(ctx)(s.backend.CreateTrade(ctx, draft))
}

func (s *remoteStrategy) Join(ctx context.Context, _ models.User, link string) (models.Trade, error) {
	return s.mirror(ctx)(s.backend.JoinTrade(ctx, link))
}

func (s *remoteStrategy) Confirm(ctx context.Context, _ models.User, id int64) (models.Trade, error) {
	t, err := s.mirror(ctx)(s.backend.TradeAction(ctx, id, api.ActionConfirm, ""))
	if err != nil {
		return t, err
	}

	// баланс изменился на бэкенде
	if t.Status == models.TradeCompleted {
		s.refreshUser(ctx)
	}

	return t, nil
}

func (s *remoteStrategy) Cancel(ctx context.Context, _ models.User, id int64, reason string) (models.Trade, error) {
	return s.mirror(ctx)(s.backend.TradeAction(ctx, id, api.ActionCancel, reason))
}

func (s *remoteStrategy) List(ctx context.Context, _ models.User, filter models.StatusFilter) ([]models.Trade, error) {
	trades, err := s.backend.ListTrades(ctx, filter)
	if err != nil {
		return nil, err
	}

	_ = s.records.Mutate(ctx, func(st *storage.State) error {
		for _, t := range trades {
			cacheTrade(st, t)
		}
		return nil
	})

	return trades, nil
}

func (s *remoteStrategy) Get(ctx context.Context, _ models.User, ref string) (models.Trade, error) {
	return s.mirror(ctx)(s.backend.GetTrade(ctx, ref))
}

// mirror сохраняет ответ бэкенда в локальный кэш
func (s *remoteStrategy) mirror(ctx context.Context) func(models.Trade, error) (models.Trade, error) {
	return func(t models.Trade, err error) (models.Trade, error) {
		if err != nil {
			return models.Trade{}, err
		}

		_ = s.records.Mutate(ctx, func(st *storage.State) error {
			cacheTrade(st, t)
			return nil
		})

		return t, nil
	}
}

func (s *remoteStrategy) refreshUser(ctx context.Context) {
	u, err := s.backend.GetUser(ctx)
	if err != nil {
		s.logger.Debug("Failed to refresh user after trade completion", slog.Any("error", err))
		return
	}

	if !s.records.MirrorUser(ctx, u) {
		s.logger.Debug("Cached user has unsynced changes, backend copy skipped")
	}
}

// cacheTrade кладет версию бэкенда в кэш. Локальные несинхронизированные
// изменения той же сделки не перезаписываются.
func cacheTrade(st *storage.State, t models.Trade) {
	if cur := st.Trade(t.ID); cur != nil && cur.PendingSync {
		return
	}

	t.PendingSync = false
	st.UpsertTrade(t)
}
