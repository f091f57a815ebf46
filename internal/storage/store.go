package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"tradelock/internal/errs"
)

// Ключи долговременного хранилища клиента
const (
	KeyUser     = "tradelock_user"
	KeyTrades   = "tradelock_trades"
	KeyPayments = "tradelock_payments"
	KeySettings = "tradelock_settings"
	KeyToken    = "tradelock_token"
	KeyLastSync = "tradelock_last_sync"
)

// Keys возвращает все ключи клиента
func Keys() []string {
	return []string{KeyUser, KeyTrades, KeyPayments, KeySettings, KeyToken, KeyLastSync}
}

// ErrMissing возвращается бэкендом, если ключа нет
var ErrMissing = errors.New("key not found")

// Store - key-value хранилище байтовых значений
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// PutBatch записывает все значения разом: либо все, либо ни одного
	PutBatch(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Save сериализует значение в JSON и записывает его.
// Ошибка записи только логируется: вызывающий код продолжает работу.
func Save(ctx context.Context, s Store, key string, value any, logger *slog.Logger) {
	if err := trySave(ctx, s, key, value); err != nil {
		logger.Error("Failed to save record", slog.String("key", key), slog.Any("error", err))
	}
}

func trySave(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Persistence("failed to encode record", err)
	}

	if err := s.Put(ctx, key, data); err != nil {
		return errs.Persistence("failed to write record", err)
	}

	return nil
}

// SaveBatch сериализует значения и записывает их одной операцией PutBatch.
// Ошибка только логируется, как и в Save.
func SaveBatch(ctx context.Context, s Store, values map[string]any, logger *slog.Logger) {
	if len(values) == 0 {
		return
	}

	entries := make(map[string][]byte, len(values))

	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			logger.Error("Failed to encode record", slog.String("key", key), slog.Any("error", err))
			return
		}

		entries[key] = data
	}

	if err := s.PutBatch(ctx, entries); err != nil {
		logger.Error("Failed to save records", slog.Int("count", len(entries)), slog.Any("error", err))
	}
}

// Load читает и десериализует значение. При отсутствии ключа или
// поврежденных данных возвращает def. JSON null считается поврежденными данными.
func Load[T any](ctx context.Context, s Store, key string, def T, logger *slog.Logger) (out T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while loading record", slog.String("key", key), slog.Any("panic", r))
			out = def
		}
	}()

	data, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMissing) {
			logger.Warn("Failed to read record", slog.String("key", key), slog.Any("error", err))
		}

		return def
	}

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		logger.Warn("Null record, using default", slog.String("key", key))
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		logger.Warn("Corrupted record, using default", slog.String("key", key), slog.Any("error", err))
		return def
	}

	return v
}

// Remove удаляет ключ, ошибка только логируется
func Remove(ctx context.Context, s Store, key string, logger *slog.Logger) {
	if err := s.Delete(ctx, key); err != nil && !errors.Is(err, ErrMissing) {
		logger.Error("Failed to remove record", slog.String("key", key), slog.Any("error", err))
	}
}

// ClearAll очищает хранилище, ошибка только логируется
func ClearAll(ctx context.Context, s Store, logger *slog.Logger) {
	if err := s.Clear(ctx); err != nil {
		logger.Error("Failed to clear storage", slog.Any("error", err))
	}
}
