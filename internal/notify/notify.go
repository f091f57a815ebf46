// Package notify - презентационные коллабораторы ядра: уведомления,
// диалог подтверждения и тактильная отдача.
package notify

import (
	"context"
	"log/slog"
)

// Notifier показывает пользователю уведомления (toast)
type Notifier interface {
	Success(ctx context.Context, msg string)
	Error(ctx context.Context, msg string)
	Info(ctx context.Context, msg string)
}

// Confirmer спрашивает подтверждение перед необратимым действием
type Confirmer interface {
	Confirm(ctx context.Context, msg string) bool
}

// Haptics - тактильная отдача Telegram WebApp
type Haptics interface {
	Impact(ctx context.Context, style string)
	Notify(ctx context.Context, kind string)
}

// Стили и виды тактильной отдачи (HapticFeedback Telegram WebApp)
const (
	ImpactLight  = "light"
	ImpactMedium = "medium"
	ImpactHeavy  = "heavy"

	FeedbackSuccess = "success"
	FeedbackError   = "error"
	FeedbackWarning = "warning"
)

// Log пишет уведомления в лог
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Success(ctx context.Context, msg string) {
	l.logger.InfoContext(ctx, "✅ "+msg)
}

func (l *Log) Error(ctx context.Context, msg string) {
	l.logger.WarnContext(ctx, "❌ "+msg)
}

func (l *Log) Info(ctx context.Context, msg string) {
	l.logger.InfoContext(ctx, "ℹ️ "+msg)
}

// Multi рассылает уведомление всем получателям
type Multi []Notifier

func (m Multi) Success(ctx context.Context, msg string) {
	for _, n := range m {
		n.Success(ctx, msg)
	}
}

func (m Multi) Error(ctx context.Context, msg string) {
	for _, n := range m {
		n.Error(ctx, msg)
	}
}

func (m Multi) Info(ctx context.Context, msg string) {
	for _, n := range m {
		n.Info(ctx, msg)
	}
}

// MultiHaptics передает отдачу всем получателям
type MultiHaptics []Haptics

func (m MultiHaptics) Impact(ctx context.Context, style string) {
	for _, h := range m {
		h.Impact(ctx, style)
	}
}

func (m MultiHaptics) Notify(ctx context.Context, kind string) {
	for _, h := range m {
		h.Notify(ctx, kind)
	}
}

// AutoConfirm подтверждает все без вопросов
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) bool { return true }

// ConfirmFunc адаптирует функцию к Confirmer
type ConfirmFunc func(ctx context.Context, msg string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, msg string) bool { return f(ctx, msg) }

// Nop ничего не делает
type Nop struct{}

func (Nop) Success(context.Context, string) {}
func (Nop) Error(context.Context, string)   {}
func (Nop) Info(context.Context, string)    {}
func (Nop) Impact(context.Context, string)  {}
func (Nop) Notify(context.Context, string)  {}
