// Package app собирает клиентское ядро TradeLock из конфигурации.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"tradelock/internal/api"
	"tradelock/internal/config"
	"tradelock/internal/errs"
	"tradelock/internal/gate"
	"tradelock/internal/notify"
	"tradelock/internal/payment"
	"tradelock/internal/profile"
	"tradelock/internal/storage"
	"tradelock/internal/syncer"
	"tradelock/internal/trade"
)

// Options - дополнительные коллабораторы хоста (bridge, CLI, тесты)
type Options struct {
	Notifiers []notify.Notifier
	Haptics   []notify.Haptics
	Confirmer notify.Confirmer

	// Store заменяет SQLite по DB_PATH
	Store     storage.Store
	Scheduler payment.Scheduler
	Transport http.RoundTripper
}

// App - собранное ядро
type App struct {
	Config   *config.Config
	Store    storage.Store
	Records  *storage.Records
	Client   *api.Client
	Gate     *gate.Gate
	Trades   *trade.Repository
	Payments *payment.Repository
	Profile  *profile.Repository
	Syncer   *syncer.Marker

	logger *slog.Logger
}

// New открывает хранилище и связывает компоненты
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	store := opts.Store
	if store == nil {
		db, err := storage.NewSQLite(cfg.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}

		store = db
	}

	records := storage.NewRecords(store, logger)

	sess := gate.NewSession(ctx, records)
	client := api.New(api.Config{
		BaseURL:     cfg.APIURL,
		AuthTimeout: cfg.AuthTimeout,
		CallTimeout: cfg.CallTimeout,
		Transport:   opts.Transport,
	}, sess, logger)

	g := gate.New(client, sess, records, logger, gate.Options{
		ProbeInterval: cfg.ProbeInterval,
		ForceOffline:  cfg.Offline,
	})

	notifiers := notify.Multi{notify.NewLog(logger)}
	notifiers = append(notifiers, opts.Notifiers...)

	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, recipient(records), logger)
		if err != nil {
			// бот недоступен - работаем без Telegram уведомлений
			logger.Warn("⚠️  Telegram notifications disabled", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	haptics := notify.MultiHaptics(opts.Haptics)

	marker := syncer.New(records, client, logger)
	g.OnOnline(marker.Hook)

	a := &App{
		Config:  cfg,
		Store:   store,
		Records: records,
		Client:  client,
		Gate:    g,
		Syncer:  marker,
		logger:  logger,
	}

	a.Trades = trade.New(trade.Deps{
		Gate:        g,
		Backend:     client,
		Records:     records,
		Notifier:    notifiers,
		Confirmer:   opts.Confirmer,
		Haptics:     haptics,
		Logger:      logger,
		BotUsername: cfg.BotUsername,
	})

	a.Payments = payment.New(payment.Deps{
		Gate:            g,
		Backend:         client,
		Records:         records,
		Scheduler:       opts.Scheduler,
		Notifier:        notifiers,
		Confirmer:       opts.Confirmer,
		Haptics:         haptics,
		Logger:          logger,
		SettlementDelay: cfg.SettlementDelay,
	})

	a.Profile = profile.New(g, client, records, notifiers, logger)

	a.Payments.Resume(ctx)

	return a, nil
}

// Authenticate создает сессию по строке initData (пустая строка - демо-пользователь)
func (a *App) Authenticate(ctx context.Context, initData string) (api.AuthResponse, error) {
	id, err := gate.ParseInitData(initData)
	if err != nil {
		a.logger.Warn("Invalid init data", slog.Any("error", err))
		return api.AuthResponse{}, errs.Validation("invalid init data")
	}

	return a.Gate.Authenticate(ctx, id)
}

// Close останавливает probe, отменяет таймеры расчетов и закрывает хранилище
func (a *App) Close() error {
	a.Gate.Stop()
	a.Payments.Close()

	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	a.logger.Info("✅ Core stopped")

	return nil
}

func recipient(records *storage.Records) notify.Recipient {
	return func(ctx context.Context) (int64, bool) {
		u, ok := records.User(ctx)
		if !ok || u.TelegramID == 0 {
			return 0, false
		}

		return u.TelegramID, true
	}
}
