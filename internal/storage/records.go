package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradelock/internal/models"
)

// State - снимок клиентских данных внутри одной транзакции Records.Mutate
type State struct {
	User     *models.User
	Trades   []models.Trade
	Payments []models.Payment

	userDirty     bool
	tradesDirty   bool
	paymentsDirty bool
}

// TouchUser помечает пользователя для записи
func (s *State) TouchUser() { s.userDirty = true }

// TouchTrades помечает список сделок для записи
func (s *State) TouchTrades() { s.tradesDirty = true }

// TouchPayments помечает список платежей для записи
func (s *State) TouchPayments() { s.paymentsDirty = true }

// Trade возвращает указатель на сделку по id
func (s *State) Trade(id int64) *models.Trade {
	for i := range s.Trades {
		if s.Trades[i].ID == id {
			return &s.Trades[i]
		}
	}

	return nil
}

// TradeByLink возвращает указатель на сделку по секретной ссылке
func (s *State) TradeByLink(link string) *models.Trade {
	for i := range s.Trades {
		if s.Trades[i].SecretLink == link {
			return &s.Trades[i]
		}
	}

	return nil
}

// Payment возвращает указатель на платеж по id
func (s *State) Payment(id string) *models.Payment {
	for i := range s.Payments {
		if s.Payments[i].ID == id {
			return &s.Payments[i]
		}
	}

	return nil
}

// UpsertTrade заменяет сделку с тем же id или добавляет новую
func (s *State) UpsertTrade(t models.Trade) {
	if cur := s.Trade(t.ID); cur != nil {
		*cur = t
	} else {
		s.Trades = append(s.Trades, t)
	}

	s.tradesDirty = true
}

// UpsertPayment заменяет платеж с тем же id или добавляет новый
func (s *State) UpsertPayment(p models.Payment) {
	if cur := s.Payment(p.ID); cur != nil {
		*cur = p
	} else {
		s.Payments = append(s.Payments, p)
	}

	s.paymentsDirty = true
}

// clone возвращает независимую копию снимка
func (s State) clone() State {
	out := State{
		Trades:   make([]models.Trade, len(s.Trades)),
		Payments: make([]models.Payment, len(s.Payments)),
	}

	for i, t := range s.Trades {
		out.Trades[i] = t.Clone()
	}

	copy(out.Payments, s.Payments)

	if s.User != nil {
		u := *s.User
		out.User = &u
	}

	return out
}

// Records - единственный владелец клиентских записей. Все изменения идут через
// Mutate, поэтому чтение, проверка и запись выполняются без вклинивания других
// операций.
type Records struct {
	store  Store
	logger *slog.Logger
	mu     sync.Mutex
}

func NewRecords(store Store, logger *slog.Logger) *Records {
	return &Records{
		store:  store,
		logger: logger,
	}
}

// Store возвращает нижележащее хранилище
func (r *Records) Store() Store {
	return r.store
}

func (r *Records) load(ctx context.Context) State {
	return State{
		User:     Load[*models.User](ctx, r.store, KeyUser, nil, r.logger),
		Trades:   Load(ctx, r.store, KeyTrades, []models.Trade{}, r.logger),
		Payments: Load(ctx, r.store, KeyPayments, []models.Payment{}, r.logger),
	}
}

// Snapshot возвращает копию текущих данных
func (r *Records) Snapshot(ctx context.Context) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(ctx).clone()
}

// Mutate загружает состояние, применяет fn и записывает помеченные коллекции.
// Если fn вернула ошибку, ничего не записывается.
func (r *Records) Mutate(ctx context.Context, fn func(st *State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.load(ctx)
	if err := fn(&st); err != nil {
		return err
	}

	// помеченные коллекции пишутся одним PutBatch
	dirty := make(map[string]any, 3)

	if st.userDirty && st.User != nil {
		dirty[KeyUser] = st.User
	}

	if st.tradesDirty {
		dirty[KeyTrades] = st.Trades
	}

	if st.paymentsDirty {
		dirty[KeyPayments] = st.Payments
	}

	SaveBatch(ctx, r.store, dirty, r.logger)

	return nil
}

// User возвращает сохраненного пользователя сессии
func (r *Records) User(ctx context.Context) (models.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := Load[*models.User](ctx, r.store, KeyUser, nil, r.logger)
	if u == nil {
		return models.User{}, false
	}

	return *u, true
}

// SaveUser записывает пользователя сессии
func (r *Records) SaveUser(ctx context.Context, u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	Save(ctx, r.store, KeyUser, u, r.logger)
}

// MirrorUser кэширует пользователя бэкенда, если у сохраненного нет
// несинхронизированных изменений. Возвращает true, если запись обновлена.
func (r *Records) MirrorUser(ctx context.Context, u models.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached := Load[*models.User](ctx, r.store, KeyUser, nil, r.logger); cached != nil && cached.PendingSync {
		return false
	}

	Save(ctx, r.store, KeyUser, u, r.logger)

	return true
}

// Token возвращает токен сессии или пустую строку
func (r *Records) Token(ctx context.Context) string {
	return Load(ctx, r.store, KeyToken, "", r.logger)
}

// SetToken записывает токен сессии
func (r *Records) SetToken(ctx context.Context, token string) {
	Save(ctx, r.store, KeyToken, token, r.logger)
}

// InvalidateToken удаляет токен после отказа бэкенда (401)
func (r *Records) InvalidateToken(ctx context.Context) {
	Remove(ctx, r.store, KeyToken, r.logger)
}

// ClearSession удаляет токен и кэшированного пользователя (logout)
func (r *Records) ClearSession(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	Remove(ctx, r.store, KeyToken, r.logger)
	Remove(ctx, r.store, KeyUser, r.logger)
}

// Settings возвращает сохраненные настройки
func (r *Records) Settings(ctx context.Context) models.Settings {
	return Load(ctx, r.store, KeySettings, models.DefaultSettings(), r.logger)
}

// SaveSettings записывает настройки
func (r *Records) SaveSettings(ctx context.Context, s models.Settings) {
	Save(ctx, r.store, KeySettings, s, r.logger)
}

// LastSync возвращает время последней синхронизации
func (r *Records) LastSync(ctx context.Context) time.Time {
	return Load(ctx, r.store, KeyLastSync, time.Time{}, r.logger)
}

// SetLastSync записывает время последней синхронизации
func (r *Records) SetLastSync(ctx context.Context, at time.Time) {
	Save(ctx, r.store, KeyLastSync, at, r.logger)
}

// Seed заполняет данные по умолчанию там, где их еще нет.
// Возвращает true, если хотя бы одна запись была создана.
func (r *Records) Seed(ctx context.Context, user models.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	seeded := false

	if !r.exists(ctx, KeyUser) {
		Save(ctx, r.store, KeyUser, user, r.logger)
		seeded = true
	}

	if !r.exists(ctx, KeyTrades) {
		Save(ctx, r.store, KeyTrades, []models.Trade{}, r.logger)
		seeded = true
	}

	if !r.exists(ctx, KeyPayments) {
		Save(ctx, r.store, KeyPayments, []models.Payment{}, r.logger)
		seeded = true
	}

	if !r.exists(ctx, KeySettings) {
		Save(ctx, r.store, KeySettings, user.Settings, r.logger)
		seeded = true
	}

	return seeded
}

func (r *Records) exists(ctx context.Context, key string) bool {
	_, err := r.store.Get(ctx, key)
	return err == nil
}
