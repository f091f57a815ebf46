// Package payment - репозиторий пополнений и выводов
package payment

import (
	"context"
	"fmt"
	"log/slog"
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
	Scheduler Scheduler
	Notifier  notify.Notifier
	Confirmer notify.Confirmer
	Haptics   notify.Haptics
	Logger    *slog.Logger

	SettlementDelay time.Duration
	Now             func() time.Time
}

type Repository struct {
	gate      Gate
	remote    *remoteStrategy
	local     *localStrategy
	notifier  notify.Notifier
	confirmer notify.Confirmer
	haptics   notify.Haptics
	logger    *slog.Logger
}

func New(d Deps) *Repository {
	if d.Now == nil {
		d.Now = time.Now
	}

	if d.Scheduler == nil {
		d.Scheduler = TimerScheduler{}
	}

	if d.SettlementDelay <= 0 {
		d.SettlementDelay = DefaultSettlementDelay
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

	r := &Repository{
		gate: d.Gate,
		remote: &remoteStrategy{
			backend: d.Backend,
			records: d.Records,
			logger:  d.Logger,
		},
		notifier:  d.Notifier,
		confirmer: d.Confirmer,
		haptics:   d.Haptics,
		logger:    d.Logger,
	}

	r.local = &localStrategy{
		records:   d.Records,
		scheduler: d.Scheduler,
		delay:     d.SettlementDelay,
		now:       d.Now,
		logger:    d.Logger,
		onSettled: r.settled,
		tasks:     make(map[string]Task),
	}

	return r
}

// Deposit создает пополнение
func (r *Repository) Deposit(ctx context.Context, amount int64, method models.PaymentMethod, card string) (models.Payment, error) {
	return r.create(ctx, models.PaymentRequest{
		Type:       models.PaymentDeposit,
		Amount:     amount,
		Method:     method,
		CardNumber: card,
	})
}

// Withdraw создает вывод на карту после подтверждения пользователем
func (r *Repository) Withdraw(ctx context.Context, amount int64, method models.PaymentMethod, card string) (models.Payment, error) {
	if method == "" {
		method = models.MethodCard
	}

	return r.create(ctx, models.PaymentRequest{
		Type:       models.PaymentWithdraw,
		Amount:     amount,
		Method:     method,
		CardNumber: card,
	})
}

func (r *Repository) create(ctx context.Context, req models.PaymentRequest) (models.Payment, error) {
	if err := validator.Struct(req); err != nil {
		return r.fail(ctx, errs.Validation(validator.GetErrorMsg(err)))
	}

	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	if req.Type == models.PaymentWithdraw {
		if actor.Balance < req.Amount {
			return r.fail(ctx, errs.InsufficientBalance("insufficient balance"))
		}

		if !r.confirmer.Confirm(ctx, fmt.Sprintf("Withdraw %d to %s?", req.Amount, MaskCard(req.CardNumber))) {
			return models.Payment{}, errs.Aborted("withdrawal aborted")
		}
	}

	p, err := gate.Do(ctx, r.gate, r.logger, "payment."+string(req.Type),
		func(ctx context.Context) (models.Payment, error) { return r.remote.Create(ctx, actor, req) },
		func(ctx context.Context) (models.Payment, error) { return r.local.Create(ctx, actor, req) },
	)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.notifier.Info(ctx, fmt.Sprintf("Payment %s is %s", p.Reference, p.Status))
	r.haptics.Impact(ctx, notify.ImpactLight)

	return p, nil
}

// List возвращает историю платежей текущего пользователя
func (r *Repository) List(ctx context.Context) ([]models.Payment, error) {
	actor, err := r.gate.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	return gate.Do(ctx, r.gate, r.logger, "payment.list",
		func(ctx context.Context) ([]models.Payment, error) { return r.remote.List(ctx, actor) },
		func(ctx context.Context) ([]models.Payment, error) { return r.local.List(ctx, actor) },
	)
}

// Resume планирует проведение offline платежей, оставшихся pending после
// завершения прошлого процесса
func (r *Repository) Resume(ctx context.Context) int {
	n := r.local.resume(ctx)
	if n > 0 {
		r.logger.Info("⏳ Resumed pending settlements", slog.Int("count", n))
	}

	return n
}

// Close отменяет запланированные проведения
func (r *Repository) Close() {
	r.local.close()
}

func (r *Repository) settled(p models.Payment) {
	ctx := context.Background()

	switch p.Status {
	case models.PaymentCompleted:
		r.notifier.Success(ctx, fmt.Sprintf("Payment %s completed", p.Reference))
		r.haptics.Notify(ctx, notify.FeedbackSuccess)
	case models.PaymentFailed:
		r.notifier.Error(ctx, fmt.Sprintf("Payment %s failed: insufficient balance", p.Reference))
		r.haptics.Notify(ctx, notify.FeedbackError)
	}
}

func (r *Repository) fail(ctx context.Context, err error) (models.Payment, error) {
	if errs.IsUserFacing(err) {
		_, msg := errs.Decode(err)
		r.notifier.Error(ctx, msg)
		r.haptics.Notify(ctx, notify.FeedbackError)
	} else {
		r.logger.Error("Payment operation failed", slog.Any("error", err))
		r.notifier.Error(ctx, "Something went wrong, try again")
	}

	return models.Payment{}, err
}
