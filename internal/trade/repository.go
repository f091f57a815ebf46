// Package trade - репозиторий эскроу-сделок: создание, присоединение,
// подтверждение и отмена с online и offline путями выполнения.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tradelock/internal/errs"
	"tradelock/internal/gate"
	"tradelock/internal/models"
	"tradelock/internal/notify"
	"tradelock/internal/storage"
	"tradelock/pkg/validator"
)

// Gate - шлюз режима и сессии
type Gate interface {
	gate.Switch
	CurrentUser(ctx context.Context) (models.User, error)
}

// Deps - зависимости репозитория
type Deps struct {
	Gate      Gate
	Backend   Backend
	Records   *storage.Records
	Notifier  notify.Notifier
	Confirmer notify.Confirmer
	Haptics   notify.Haptics
	Logger    *slog.Logger

	// BotUsername используется для share_url локальных сделок
	BotUsername string
	Now         func() time.Time
}

// Repository выбирает стратегию на каждый вызов и уведомляет пользователя о результате
type Repository struct {
	gate      Gate
	remote    Strategy
	local     Strategy
	notifier  notify.Notifier
	confirmer notify.Confirmer
	haptics   notify.Haptics
	logger    *slog.Logger
}

func New(d Deps) *Repository {
	if d.Now == nil {
		d.Now = time.Now
	}

	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}

	if d.Confirmer == nil {
		d.Confirmer = notify.AutoConfirm{}
	}

	if d.Haptics == nil {
		d.Haptics = notify.Nop{}
	}

	return &Repository{
		gate: d.Gate,
		remote: &remoteStrategy{
			backend: d.Backend,
			records: d.Records,
			logger:  d.Logger,
		},
		local: &localStrategy{
			records:     d.Records,
			botUsername: d.BotUsername,
			ids:         &idGenerator{},
			now:         d.Now,
			logger:      d.Logger,
		},
		notifier:  d.Notifier,
		confirmer: d.Confirmer,
		haptics:   d.Haptics,
		logger:    d.Logger,
	}
}

// Create создает сделку
func (r *Repository) Create(ctx context.Context, draft models.TradeDraft) (models.Trade, error) {
	if err := validator.Struct(draft); err != nil {
		return r.fail(ctx, errs.Validation(validator.GetErrorMsg(err)))
	}

	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	t, err := gate.Do(ctx, r.gate, r.logger, "trade.create",
		func(ctx context.Context) (models.Trade, error) { return r.remote.Create(ctx, actor, draft) },
		func(ctx context.Context) (models.Trade, error) { return r.local.Create(ctx, actor, draft) },
	)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.logger.Info("🤝 Trade created",
		slog.Int64("trade_id", t.ID),
		slog.Int64("amount", t.Amount),
		slog.Int64("commission", t.CommissionAmount))

	r.notifier.Success(ctx, "Trade created")

	return t, nil
}

// Join присоединяет текущего пользователя к сделке по секретной ссылке
func (r *Repository) Join(ctx context.Context, link string) (models.Trade, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return r.fail(ctx, errs.Validation("join link is required"))
	}

	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	t, err := gate.Do(ctx, r.gate, r.logger, "trade.join",
		func(ctx context.Context) (models.Trade, error) { return r.remote.Join(ctx, actor, link) },
		func(ctx context.Context) (models.Trade, error) { return r.local.Join(ctx, actor, link) },
	)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.logger.Info("👥 Joined trade", slog.Int64("trade_id", t.ID), slog.Int64("user_id", actor.ID))
	r.notifier.Success(ctx, "You joined the trade")
	r.haptics.Impact(ctx, notify.ImpactMedium)

	return t, nil
}

// Confirm подтверждает сделку со стороны текущего пользователя
func (r *Repository) Confirm(ctx context.Context, id int64) (models.Trade, error) {
	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	t, err := gate.Do(ctx, r.gate, r.logger, "trade.confirm",
		func(ctx context.Context) (models.Trade, error) { return r.remote.Confirm(ctx, actor, id) },
		func(ctx context.Context) (models.Trade, error) { return r.local.Confirm(ctx, actor, id) },
	)
	if err != nil {
		return r.fail(ctx, err)
	}

	if t.Status == models.TradeCompleted {
		r.logger.Info("🎉 Trade completed", slog.Int64("trade_id", t.ID))
		r.notifier.Success(ctx, "Trade completed")
		r.haptics.Notify(ctx, notify.FeedbackSuccess)
	} else {
		r.notifier.Success(ctx, "Trade confirmed")
	}

	return t, nil
}

// Cancel отменяет сделку после подтверждения пользователем. Подтверждение
// запрашивается только для существующей сделки, где пользователь - сторона.
func (r *Repository) Cancel(ctx context.Context, id int64, reason string) (models.Trade, error) {
	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	cur, err := r.Get(ctx, strconv.FormatInt(id, 10))
	if err != nil {
		return r.fail(ctx, err)
	}

	if !cur.IsParty(actor.ID) {
		return r.fail(ctx, errs.Authorization("not authorized"))
	}

	if !r.confirmer.Confirm(ctx, fmt.Sprintf("Cancel trade #%d?", id)) {
		return models.Trade{}, errs.Aborted("cancellation aborted")
	}

	t, err := gate.Do(ctx, r.gate, r.logger, "trade.cancel",
		func(ctx context.Context) (models.Trade, error) { return r.remote.Cancel(ctx, actor, id, reason) },
		func(ctx context.Context) (models.Trade, error) { return r.local.Cancel(ctx, actor, id, reason) },
	)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.logger.Info("🚫 Trade cancelled", slog.Int64("trade_id", t.ID))
	r.notifier.Success(ctx, "Trade cancelled")
	r.haptics.Notify(ctx, notify.FeedbackWarning)

	return t, nil
}

// List возвращает сделки текущего пользователя по фильтру
func (r *Repository) List(ctx context.Context, filter models.StatusFilter) ([]models.Trade, error) {
	if !filter.Valid() {
		return nil, errs.Validation(fmt.Sprintf("unknown status filter %q", filter))
	}

	if filter == "" {
		filter = models.FilterAll
	}

	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	return gate.Do(ctx, r.gate, r.logger, "trade.list",
		func(ctx context.Context) ([]models.Trade, error) { return r.remote.List(ctx, actor, filter) },
		func(ctx context.Context) ([]models.Trade, error) { return r.local.List(ctx, actor, filter) },
	)
}

// Get возвращает сделку по id или секретной ссылке
func (r *Repository) Get(ctx context.Context, ref string) (models.Trade, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Trade{}, errs.NotFound("trade not found")
	}

	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return models.Trade{}, err
	}

	return gate.Do(ctx, r.gate, r.logger, "trade.get",
		func(ctx context.Context) (models.Trade, error) { return r.remote.Get(ctx, actor, ref) },
		func(ctx context.Context) (models.Trade, error) { return r.local.Get(ctx, actor, ref) },
	)
}

// fail уведомляет пользователя об ошибке и возвращает ее
func (r *Repository) fail(ctx context.Context, err error) (models.Trade, error) {
	if errs.IsUserFacing(err) {
		r.notifier.Error(ctx, errMessage(err))
		r.haptics.Notify(ctx, notify.FeedbackError)
	} else {
		r.logger.Error("Trade operation failed", slog.Any("error", err))
		r.notifier.Error(ctx, "Something went wrong, try again")
	}

	return models.Trade{}, err
}

func errMessage(err error) string {
	_, msg := errs.Decode(err)
	return msg
}
