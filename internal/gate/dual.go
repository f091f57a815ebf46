package gate

import (
	"context"
	"log/slog"

	"tradelock/internal/errs"
	"tradelock/internal/metrics"
)

// Switch - часть шлюза, нужная для выбора пути выполнения
type Switch interface {
	Online() bool
	MarkOffline(err error)
}

// Do выбирает путь один раз на вызов: remote если шлюз online, иначе local.
// Сетевая ошибка remote пути переводит шлюз в offline и повторяет вызов локально.
// Доменные ошибки бэкенда возвращаются как есть.
func Do[T any](ctx context.Context, sw Switch, logger *slog.Logger, op string,
	remote, local func(ctx context.Context) (T, error),
) (T, error) {
	if sw.Online() {
		v, err := remote(ctx)
		if err == nil || !errs.IsConnectivity(err) {
			metrics.Operations.WithLabelValues(op, "remote", metrics.Result(err)).Inc()
			return v, err
		}

		sw.MarkOffline(err)
		metrics.Fallbacks.WithLabelValues(op).Inc()

		logger.Warn("Backend unreachable, falling back to local data",
			slog.String("op", op),
			slog.Any("error", err))
	}

	v, err := local(ctx)
	metrics.Operations.WithLabelValues(op, "local", metrics.Result(err)).Inc()

	return v, err
}
