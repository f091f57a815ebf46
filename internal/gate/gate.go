// Package gate определяет режим работы (online/offline) и сессию пользователя.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tradelock/internal/api"
	"tradelock/internal/errs"
	"tradelock/internal/metrics"
	"tradelock/internal/models"
	"tradelock/internal/storage"
)

// Mode - режим работы ядра
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// DefaultProbeInterval - период проверки доступности бэкенда
const DefaultProbeInterval = 30 * time.Second

// Backend - часть API, нужная шлюзу
type Backend interface {
	Authenticate(ctx context.Context, req api.AuthRequest) (api.AuthResponse, error)
	Health(ctx context.Context) error
}

// Options - параметры шлюза
type Options struct {
	ProbeInterval time.Duration
	// ForceOffline держит шлюз в offline независимо от сети (OFFLINE=true)
	ForceOffline bool
}

// Gate решает, каким путем выполнять операции репозиториев.
// Режим меняется только при probe, событии сети, авторизации или MarkOffline.
type Gate struct {
	backend Backend
	session *Session
	records *storage.Records
	logger  *slog.Logger
	opts    Options
	now     func() time.Time

	mu        sync.Mutex
	network   bool
	reachable bool
	online    bool
	identity  Identity
	hooks     []func(ctx context.Context)

	cron *cron.Cron
}

func New(backend Backend, session *Session, records *storage.Records, logger *slog.Logger, opts Options) *Gate {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}

	metrics.SetOnline(false)

	return &Gate{
		backend: backend,
		session: session,
		records: records,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
		network: true,
	}
}

// Session возвращает сессию шлюза
func (g *Gate) Session() *Session {
	return g.session
}

// Online возвращает true если сеть есть, бэкенд отвечал на последнем probe
// и у пользователя есть токен бэкенда
func (g *Gate) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.computeLocked()
}

// Mode возвращает текущий режим
func (g *Gate) Mode() Mode {
	if g.Online() {
		return ModeOnline
	}

	return ModeOffline
}

func (g *Gate) computeLocked() bool {
	return !g.opts.ForceOffline && g.network && g.reachable && g.session.Backend()
}

// OnOnline регистрирует хук, который вызывается при переходе offline -> online
func (g *Gate) OnOnline(fn func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.hooks = append(g.hooks, fn)
}

// update применяет изменение состояния и запускает хуки на фронте offline -> online
func (g *Gate) update(ctx context.Context, fn func()) {
	g.mu.Lock()
	was := g.online
	fn()
	g.online = g.computeLocked()
	now := g.online
	hooks := append([]func(context.Context){}, g.hooks...)
	g.mu.Unlock()

	if was == now {
		return
	}

	metrics.SetOnline(now)

	if !now {
		g.logger.Warn("📴 Switched to offline mode")
		return
	}

	g.logger.Info("🌐 Switched to online mode")

	for _, hook := range hooks {
		hook(ctx)
	}
}

// SetNetwork отражает событие сети (online/offline). При появлении сети выполняется probe.
func (g *Gate) SetNetwork(ctx context.Context, up bool) {
	g.update(ctx, func() { g.network = up })

	if up {
		g.Probe(ctx)
	}
}

// MarkOffline переводит шлюз в offline после сетевой ошибки вызова
func (g *Gate) MarkOffline(err error) {
	g.update(context.Background(), func() { g.reachable = false })

	if err != nil {
		g.logger.Debug("Backend marked unreachable", slog.Any("error", err))
	}
}

// Probe проверяет доступность бэкенда. Если бэкенд доступен, а сессия локальная
// или просрочена, выполняется повторная авторизация запомненной личностью.
func (g *Gate) Probe(ctx context.Context) bool {
	if g.opts.ForceOffline || !g.networkUp() {
		return false
	}

	if err := g.backend.Health(ctx); err != nil {
		g.update(ctx, func() { g.reachable = false })
		return false
	}

	if !g.session.Backend() {
		if id := g.rememberedIdentity(); !id.Empty() {
			if _, err := g.authenticateRemote(ctx, id); err != nil {
				g.logger.Warn("Re-authentication failed", slog.Any("error", err))
			}
		}
	}

	g.update(ctx, func() { g.reachable = true })

	return g.Online()
}

// Start запускает периодический probe
func (g *Gate) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	spec := fmt.Sprintf("@every %s", g.opts.ProbeInterval)
	if _, err := c.AddFunc(spec, func() { g.Probe(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}

	g.mu.Lock()
	g.cron = c
	g.mu.Unlock()

	c.Start()

	g.logger.Info("✅ Connectivity probe started", slog.Duration("interval", g.opts.ProbeInterval))

	return nil
}

// Stop останавливает периодический probe и ждет текущий
func (g *Gate) Stop() {
	g.mu.Lock()
	c := g.cron
	g.cron = nil
	g.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()

	g.logger.Info("Connectivity probe stopped")
}

// Authenticate создает сессию. Если бэкенд доступен и личность есть, сессия
// выдается бэкендом. Иначе создается локальная сессия offline_mock_token
// и при отсутствии данных заполняются значения по умолчанию.
func (g *Gate) Authenticate(ctx context.Context, id Identity) (api.AuthResponse, error) {
	g.mu.Lock()
	g.identity = id
	g.mu.Unlock()

	if !g.opts.ForceOffline && g.networkUp() && !id.Empty() {
		resp, err := g.authenticateRemote(ctx, id)
		if err == nil {
			g.update(ctx, func() { g.reachable = true })
			return resp, nil
		}

		if errs.IsConnectivity(err) {
			g.MarkOffline(err)
		} else {
			g.logger.Warn("Backend rejected identity, using local session", slog.Any("error", err))
		}
	}

	return g.authenticateLocal(ctx, id), nil
}

func (g *Gate) authenticateRemote(ctx context.Context, id Identity) (api.AuthResponse, error) {
	resp, err := g.backend.Authenticate(ctx, api.AuthRequest{
		InitData:   id.InitData,
		TelegramID: id.TelegramID(),
	})
	if err != nil {
		return api.AuthResponse{}, err
	}

	g.session.set(ctx, resp.Token)

	// Кэш пользователя с несинхронизированными изменениями не перезаписываем,
	// его отправит синхронизация
	g.records.MirrorUser(ctx, resp.User)

	g.logger.Info("✅ Authenticated with backend",
		slog.Int64("telegram_id", resp.User.TelegramID))

	return resp, nil
}

func (g *Gate) authenticateLocal(ctx context.Context, id Identity) api.AuthResponse {
	user := demoUser(id, g.now())

	if g.records.Seed(ctx, user) {
		g.logger.Info("🌱 Local data seeded", slog.Int64("user_id", user.ID))
	}

	g.session.set(ctx, api.OfflineToken)

	if cached, ok := g.records.User(ctx); ok {
		user = cached
	}

	g.update(ctx, func() {})

	g.logger.Info("🔌 Local session created", slog.Int64("user_id", user.ID))

	return api.AuthResponse{Token: api.OfflineToken, User: user}
}

// Token возвращает токен текущей сессии
func (g *Gate) Token() string {
	return g.session.Token(context.Background())
}

// InvalidateToken сбрасывает сессию
func (g *Gate) InvalidateToken(ctx context.Context) {
	g.session.InvalidateToken(ctx)
	g.update(ctx, func() {})
}

// Logout удаляет токен и кэш пользователя. Сделки и платежи остаются.
func (g *Gate) Logout(ctx context.Context) {
	g.session.InvalidateToken(ctx)
	g.records.ClearSession(ctx)
	g.update(ctx, func() {})

	g.logger.Info("👋 Logged out")
}

// CurrentUser возвращает пользователя текущей сессии. После 401 пользователь
// остается в кэше, чтобы локальный путь продолжал работать до повторной авторизации.
func (g *Gate) CurrentUser(ctx context.Context) (models.User, error) {
	u, ok := g.records.User(ctx)
	if !ok {
		return models.User{}, errs.Authorization("not authenticated")
	}

	return u, nil
}

func (g *Gate) networkUp() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.network
}

func (g *Gate) rememberedIdentity() Identity {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.identity
}
