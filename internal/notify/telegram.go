package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Recipient возвращает telegram id получателя для текущей сессии
type Recipient func(ctx context.Context) (int64, bool)

// Telegram отправляет уведомления сообщениями бота в чат пользователя
type Telegram struct {
	bot       *tgbotapi.BotAPI
	recipient Recipient
	logger    *slog.Logger
}

// NewTelegram авторизует бота по токену
func NewTelegram(token string, recipient Recipient, logger *slog.Logger) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint, recipient, logger)
}

// NewTelegramWithEndpoint позволяет указать адрес Bot API (локальный сервер, тесты)
func NewTelegramWithEndpoint(token, endpoint string, recipient Recipient, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}

	logger.Info("✅ Bot authorized", slog.String("username", bot.Self.UserName))

	return &Telegram{
		bot:       bot,
		recipient: recipient,
		logger:    logger,
	}, nil
}

// Username возвращает имя бота
func (t *Telegram) Username() string {
	return t.bot.Self.UserName
}

func (t *Telegram) Success(ctx context.Context, msg string) {
	t.send(ctx, "✅ "+msg)
}

func (t *Telegram) Error(ctx context.Context, msg string) {
	t.send(ctx, "❌ "+msg)
}

func (t *Telegram) Info(ctx context.Context, msg string) {
	t.send(ctx, "ℹ️ "+msg)
}

// SendMessage отправляет текстовое сообщение
func (t *Telegram) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := t.bot.Send(msg)

	return err
}

func (t *Telegram) send(ctx context.Context, text string) {
	chatID, ok := t.recipient(ctx)
	if !ok || chatID == 0 {
		return
	}

	if err := t.SendMessage(chatID, text); err != nil {
		t.logger.Warn("Failed to send telegram notification",
			slog.Int64("chat_id", chatID),
			slog.Any("error", err))
	}
}
