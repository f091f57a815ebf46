package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradelock/internal/errs"
	"tradelock/internal/metrics"
	"tradelock/internal/models"
	"tradelock/internal/storage"
	"tradelock/internal/syncer"
)

// DefaultSettlementDelay - задержка проведения offline платежа
const DefaultSettlementDelay = 2 * time.Second

// localStrategy записывает платежи в хранилище и проводит их отложенной задачей
type localStrategy struct {
	records   *storage.Records
	scheduler Scheduler
	delay     time.Duration
	now       func() time.Time
	logger    *slog.Logger
	onSettled func(p models.Payment)

	mu     sync.Mutex
	tasks  map[string]Task
	closed bool
	// running - проведения, уже начатые задачами планировщика
	running sync.WaitGroup
}

func (s *localStrategy) Create(ctx context.Context, actor models.User, req models.PaymentRequest) (models.Payment, error) {
	now := s.now()

	p := models.Payment{
		ID:          uuid.NewString(),
		UserID:      actor.ID,
		Type:        req.Type,
		Amount:      req.Amount,
		Status:      models.PaymentPending,
		Reference:   models.NewReference(req.Type, now),
		Description: describe(req),
		Method:      string(req.Method),
		CardNumber:  MaskCard(req.CardNumber),
		CreatedAt:   now,
	}
	syncer.MarkPayment(&p)

	err := s.records.Mutate(ctx, func(st *storage.State) error {
		if p.Type == models.PaymentWithdraw && balanceOf(st, actor) < p.Amount {
			return errs.InsufficientBalance("insufficient balance")
		}

		st.UpsertPayment(p)

		return nil
	})
	if err != nil {
		return models.Payment{}, err
	}

	s.schedule(p.ID, s.delay)

	s.logger.Info("⏳ Payment pending settlement",
		slog.String("payment_id", p.ID),
		slog.String("type", string(p.Type)),
		slog.Int64("amount", p.Amount))

	return p, nil
}

func (s *localStrategy) List(ctx context.Context, actor models.User) ([]models.Payment, error) {
	st := s.records.Snapshot(ctx)

	out := make([]models.Payment, 0, len(st.Payments))
	for _, p := range st.Payments {
		if p.UserID == actor.ID {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *localStrategy) schedule(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if _, ok := s.tasks[id]; ok {
		return
	}

	s.tasks[id] = s.scheduler.After(delay, func() {
		s.mu.Lock()
		delete(s.tasks, id)
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.running.Add(1)
		s.mu.Unlock()

		defer s.running.Done()

		s.settle(context.Background(), id)
	})
}

// settle проводит платеж. Статус проверяется под блокировкой Records,
// поэтому изменение баланса применяется ровно один раз.
func (s *localStrategy) settle(ctx context.Context, id string) {
	var settled *models.Payment

	_ = s.records.Mutate(ctx, func(st *storage.State) error {
		p := st.Payment(id)
		if p == nil || p.Status != models.PaymentPending {
			return nil
		}

		now := s.now()

		switch {
		case st.User == nil || st.User.ID != p.UserID:
			// платеж другого пользователя: проводится бэкендом после синхронизации
			return nil
		case st.User.Balance+p.Signed() < 0:
			p.Status = models.PaymentFailed
		default:
			p.Status = models.PaymentCompleted
			p.CompletedAt = &now
			st.User.Balance += p.Signed()
			syncer.MarkUser(st.User)
			st.TouchUser()
		}

		syncer.MarkPayment(p)
		st.TouchPayments()

		cp := *p
		settled = &cp

		return nil
	})

	if settled == nil {
		return
	}

	metrics.Settlements.WithLabelValues(string(settled.Type), string(settled.Status)).Inc()

	s.logger.Info("💰 Payment settled",
		slog.String("payment_id", settled.ID),
		slog.String("status", string(settled.Status)),
		slog.Int64("amount", settled.Amount))

	if s.onSettled != nil {
		s.onSettled(*settled)
	}
}

// resume заново планирует проведение offline платежей, оставшихся pending
func (s *localStrategy) resume(ctx context.Context) int {
	st := s.records.Snapshot(ctx)
	now := s.now()

	n := 0

	for _, p := range st.Payments {
		if p.Status != models.PaymentPending || !p.PendingSync {
			continue
		}

		if st.User == nil || st.User.ID != p.UserID {
			continue
		}

		delay := p.CreatedAt.Add(s.delay).Sub(now)
		if delay < 0 {
			delay = 0
		}

		s.schedule(p.ID, delay)
		n++
	}

	return n
}

// close отменяет задачи, которые еще не сработали, и ждет завершения уже
// начатых проведений
func (s *localStrategy) close() {
	s.mu.Lock()

	s.closed = true

	for id, t := range s.tasks {
		t.Cancel()
		delete(s.tasks, id)
	}

	s.mu.Unlock()

	s.running.Wait()
}

func balanceOf(st *storage.State, actor models.User) int64 {
	if st.User != nil && st.User.ID == actor.ID {
		return st.User.Balance
	}

	return actor.Balance
}

func describe(req models.PaymentRequest) string {
	switch req.Type {
	case models.PaymentDeposit:
		return fmt.Sprintf("Deposit via %s", req.Method)
	case models.PaymentWithdraw:
		return fmt.Sprintf("Withdrawal to %s", req.Method)
	default:
		return string(req.Type)
	}
}
