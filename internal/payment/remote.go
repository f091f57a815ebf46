package payment

import (
	"context"
	"log/slog"

	"tradelock/internal/models"
	"tradelock/internal/storage"
)

// Backend - часть API бэкенда для платежей
type Backend interface {
	ListPayments(ctx context.Context) ([]models.Payment, error)
	CreatePayment(ctx context.Context, req models.PaymentRequest) (models.Payment, error)
	GetUser(ctx context.Context) (models.User, error)
}

// remoteStrategy передает платежи бэкенду. Проведение и баланс - забота бэкенда,
// клиент только отражает его ответ.
type remoteStrategy struct {
	backend Backend
	records *storage.Records
	logger  *slog.Logger
}

func (s *remoteStrategy) Create(ctx context.Context, _ models.User, req models.PaymentRequest) (models.Payment, error) {
	p, err := s.backend.CreatePayment(ctx, req)
	if err != nil {
		return models.Payment{}, err
	}

	p = s.cache(ctx, []models.Payment{p})[0]

	if u, err := s.backend.GetUser(ctx); err == nil {
		if !s.records.MirrorUser(ctx, u) {
			s.logger.Debug("Cached user has unsynced changes, backend copy skipped")
		}
	} else {
		s.logger.Debug("Failed to refresh user after payment", slog.Any("error", err))
	}

	return p, nil
}

func (s *remoteStrategy) List(ctx context.Context, _ models.User) ([]models.Payment, error) {
	payments, err := s.backend.ListPayments(ctx)
	if err != nil {
		return nil, err
	}

	return s.cache(ctx, payments), nil
}

// cache сохраняет платежи бэкенда. Номер карты маскируется еще раз на случай,
// если бэкенд вернул его целиком.
func (s *remoteStrategy) cache(ctx context.Context, payments []models.Payment) []models.Payment {
	for i := range payments {
		if card := payments[i].CardNumber; card != "" && !masked(card) {
			payments[i].CardNumber = MaskCard(card)
		}
		payments[i].PendingSync = false
	}

	_ = s.records.Mutate(ctx, func(st *storage.State) error {
		for _, p := range payments {
			if cur := st.Payment(p.ID); cur != nil && cur.PendingSync {
				continue
			}
			st.UpsertPayment(p)
		}
		return nil
	})

	return payments
}
