package trade

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradelock/internal/errs"
	"tradelock/internal/metrics"
	"tradelock/internal/models"
	"tradelock/internal/storage"
	"tradelock/internal/syncer"
)

// InviteTTL - срок действия приглашения в сделку
const InviteTTL = 7 * 24 * time.Hour

// localStrategy выполняет операции над локальным хранилищем.
// Проверка и изменение каждой сделки идут внутри одного Records.Mutate.
type localStrategy struct {
	records     *storage.Records
	botUsername string
	ids         *idGenerator
	now         func() time.Time
	logger      *slog.Logger
}

func (s *localStrategy) Create(ctx context.Context, actor models.User, draft models.TradeDraft) (models.Trade, error) {
	link, err := NewSecretLink()
	if err != nil {
		return models.Trade{}, err
	}

	now := s.now()

	t := models.Trade{
		SecretLink:       link,
		ShareURL:         ShareURL(s.botUsername, link),
		Name:             strings.TrimSpace(draft.Name),
		Description:      strings.TrimSpace(draft.Description),
		CreatorID:        actor.ID,
		CreatorName:      actor.DisplayName(),
		CreatorUsername:  actor.Username,
		TradeType:        draft.TradeType,
		Amount:           draft.Amount,
		CommissionType:   draft.CommissionType,
		CommissionAmount: Commission(draft.Amount),
		Status:           models.TradeActive,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(InviteTTL),
	}
	syncer.MarkTrade(&t)

	err = s.records.Mutate(ctx, func(st *storage.State) error {
		t.ID = s.ids.next(now)
		for st.Trade(t.ID) != nil {
			t.ID = s.ids.next(now)
		}

		st.UpsertTrade(t)
		refreshStats(st)

		return nil
	})
	if err != nil {
		return models.Trade{}, err
	}

	metrics.TradeTransitions.WithLabelValues(string(models.TradeActive)).Inc()

	return t, nil
}

func (s *localStrategy) Join(ctx context.Context, actor models.User, link string) (models.Trade, error) {
	var out models.Trade

	err := s.records.Mutate(ctx, func(st *storage.State) error {
		t := st.TradeByLink(link)
		if t == nil {
			return errs.NotFound("trade not found")
		}

		if t.CreatorID == actor.ID {
			return errs.Authorization("cannot join own trade")
		}

		if t.HasParticipant() {
			return errs.StateConflict("already joined")
		}

		if !models.CanTransition(t.Status, models.TradeInProgress) {
			return errs.StateConflict("trade is not active")
		}

		now := s.now()
		if t.Expired(now) {
			return errs.StateConflict("trade expired")
		}

		if need := RequiredBalance(t); need > 0 && balanceOf(st, actor) < need {
			return errs.InsufficientBalance(fmt.Sprintf("insufficient balance: %d required", need))
		}

		id := actor.ID
		t.ParticipantID = &id
		t.ParticipantName = actor.DisplayName()
		t.ParticipantUsername = actor.Username
		t.Status = models.TradeInProgress
		t.UpdatedAt = now
		syncer.MarkTrade(t)

		st.TouchTrades()
		refreshStats(st)

		out = t.Clone()

		return nil
	})
	if err != nil {
		return models.Trade{}, err
	}

	metrics.TradeTransitions.WithLabelValues(string(models.TradeInProgress)).Inc()

	return out, nil
}

func (s *localStrategy) Confirm(ctx context.Context, actor models.User, id int64) (models.Trade, error) {
	var (
		out       models.Trade
		completed bool
	)

	err := s.records.Mutate(ctx, func(st *storage.State) error {
		t := st.Trade(id)
		if t == nil {
			return errs.NotFound("trade not found")
		}

		role := t.Role(actor.ID)
		if role == models.RoleNone {
			return errs.Authorization("not a participant")
		}

		switch t.Status {
		case models.TradeCancelled:
			return errs.StateConflict("trade is cancelled")
		case models.TradeCompleted:
			out = t.Clone()
			return nil
		}

		if (role == models.RoleCreator && t.CreatorConfirmed) ||
			(role == models.RoleParticipant && t.ParticipantConfirmed) {
			out = t.Clone()
			return nil
		}

		now := s.now()
		next := *t

		if role == models.RoleCreator {
			next.CreatorConfirmed = true
		} else {
			next.ParticipantConfirmed = true
		}

		if next.CreatorConfirmed && next.ParticipantConfirmed {
			if !models.CanTransition(next.Status, models.TradeCompleted) {
				return errs.StateConflict("trade is not in progress")
			}

			next.Status = models.TradeCompleted
			next.CompletedAt = &now

			if err := s.settle(st, &next, now); err != nil {
				return err
			}

			completed = true
		}

		next.UpdatedAt = now
		syncer.MarkTrade(&next)
		*t = next

		st.TouchTrades()
		refreshStats(st)

		out = t.Clone()

		return nil
	})
	if err != nil {
		return models.Trade{}, err
	}

	if completed {
		metrics.TradeTransitions.WithLabelValues(string(models.TradeCompleted)).Inc()
	}

	return out, nil
}

// settle проводит деньги завершенной сделки для пользователя сессии:
// продавец получает amount и платит свою долю комиссии, покупатель
// платит amount и свою долю. Каждое движение - отдельный completed платеж.
func (s *localStrategy) settle(st *storage.State, t *models.Trade, now time.Time) error {
	if st.User == nil {
		return nil
	}

	role := t.Role(st.User.ID)
	if role == models.RoleNone {
		return nil
	}

	share := t.Shares().For(role)
	tradeID := t.ID

	var records []models.Payment

	if role == t.SellerRole() {
		records = append(records, s.tradePayment(st.User.ID, models.PaymentTradeEarn, t.Amount, &tradeID, now,
			fmt.Sprintf("Trade #%d: %s", t.ID, t.Name)))
	} else {
		records = append(records, s.tradePayment(st.User.ID, models.PaymentTransfer, t.Amount, &tradeID, now,
			fmt.Sprintf("Trade #%d: %s", t.ID, t.Name)))
	}

	if share > 0 {
		records = append(records, s.tradePayment(st.User.ID, models.PaymentCommission, share, &tradeID, now,
			fmt.Sprintf("Commission for trade #%d", t.ID)))
	}

	var delta int64
	for _, p := range records {
		delta += p.Signed()
	}

	if st.User.Balance+delta < 0 {
		return errs.InsufficientBalance(fmt.Sprintf("insufficient balance: %d required", -delta))
	}

	st.User.Balance += delta
	syncer.MarkUser(st.User)
	st.TouchUser()

	for _, p := range records {
		st.UpsertPayment(p)
	}

	return nil
}

func (s *localStrategy) tradePayment(userID int64, typ models.PaymentType, amount int64, tradeID *int64, now time.Time, desc string) models.Payment {
	completed := now

	p := models.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Status:      models.PaymentCompleted,
		Reference:   models.NewReference(typ, now),
		Description: desc,
		TradeID:     tradeID,
		CreatedAt:   now,
		CompletedAt: &completed,
	}
	syncer.MarkPayment(&p)

	return p
}

func (s *localStrategy) Cancel(ctx context.Context, actor models.User, id int64, reason string) (models.Trade, error) {
	var out models.Trade

	err := s.records.Mutate(ctx, func(st *storage.State) error {
		t := st.Trade(id)
		if t == nil {
			return errs.NotFound("trade not found")
		}

		if !t.IsParty(actor.ID) {
			return errs.Authorization("not authorized")
		}

		if !models.CanTransition(t.Status, models.TradeCancelled) {
			return errs.StateConflict(fmt.Sprintf("trade is already %s", t.Status))
		}

		now := s.now()
		t.Status = models.TradeCancelled
		t.CancelledAt = &now
		t.CancelReason = strings.TrimSpace(reason)
		t.UpdatedAt = now
		syncer.MarkTrade(t)

		st.TouchTrades()
		refreshStats(st)

		out = t.Clone()

		return nil
	})
	if err != nil {
		return models.Trade{}, err
	}

	metrics.TradeTransitions.WithLabelValues(string(models.TradeCancelled)).Inc()

	return out, nil
}

func (s *localStrategy) List(ctx context.Context, actor models.User, filter models.StatusFilter) ([]models.Trade, error) {
	st := s.records.Snapshot(ctx)

	out := make([]models.Trade, 0, len(st.Trades))
	for _, t := range st.Trades {
		if t.IsParty(actor.ID) && filter.Match(t) {
			out = append(out, t)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (s *localStrategy) Get(ctx context.Context, _ models.User, ref string) (models.Trade, error) {
	st := s.records.Snapshot(ctx)

	if t := st.TradeByLink(ref); t != nil {
		return *t, nil
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if t := st.Trade(id); t != nil {
			return *t, nil
		}
	}

	return models.Trade{}, errs.NotFound("trade not found")
}

// balanceOf возвращает актуальный баланс: для пользователя сессии из хранилища
func balanceOf(st *storage.State, actor models.User) int64 {
	if st.User != nil && st.User.ID == actor.ID {
		return st.User.Balance
	}

	return actor.Balance
}

// refreshStats пересчитывает статистику пользователя сессии.
// commission_earned по сделкам не вычисляется и сохраняется как есть.
func refreshStats(st *storage.State) {
	if st.User == nil {
		return
	}

	earned := st.User.Stats.CommissionEarned
	st.User.Stats = models.ComputeStats(st.User.ID, st.Trades)
	st.User.Stats.CommissionEarned = earned
	st.TouchUser()
}
