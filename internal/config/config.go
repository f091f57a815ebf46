package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию клиентского ядра и исполняемых файлов
type Config struct {
	APIURL  string // базовый URL бэкенда, включая /api
	DBPath  string
	LogFile string

	// Bridge
	BridgeAddress string
	WebDir        string

	// Telegram
	TelegramToken string // необязательный, включает Telegram-уведомления и проверку initData
	BotUsername   string // для ссылок https://t.me/<bot>?startapp=<link>
	InitData      string // identity для CLI

	ProbeInterval   time.Duration
	SettlementDelay time.Duration
	AuthTimeout     time.Duration
	CallTimeout     time.Duration

	Offline bool // принудительный offline режим
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load(logger *slog.Logger) *Config {
	if err := godotenv.Load(); err == nil {
		logger.Debug("📄 Loaded .env")
	}

	cfg := &Config{
		APIURL:          env("API_URL", "http://localhost:8080/api"),
		DBPath:          env("DB_PATH", "./tradelock.db"),
		LogFile:         LogFile(),
		BridgeAddress:   env("BRIDGE_ADDRESS", "127.0.0.1:8090"),
		WebDir:          env("WEB_DIR", "./web"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotUsername:     env("BOT_USERNAME", "tradelock_bot"),
		InitData:        os.Getenv("TELEGRAM_INIT_DATA"),
		ProbeInterval:   duration(logger, "PROBE_INTERVAL", 30*time.Second),
		SettlementDelay: duration(logger, "SETTLEMENT_DELAY", 2*time.Second),
		AuthTimeout:     duration(logger, "AUTH_TIMEOUT", 5*time.Second),
		CallTimeout:     duration(logger, "CALL_TIMEOUT", 10*time.Second),
	}

	if v := os.Getenv("OFFLINE"); v != "" {
		offline, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("⚠️  OFFLINE is not a boolean, ignored", slog.String("value", v))
		}

		cfg.Offline = offline
	}

	if cfg.TelegramToken == "" {
		logger.Warn("⚠️  TELEGRAM_BOT_TOKEN not set, initData is not verified and Telegram notifications are off")
	}

	if cfg.Offline {
		logger.Info("📴 Offline mode forced")
	} else {
		logger.Info("🔗 Backend", slog.String("url", cfg.APIURL))
	}

	return cfg
}

// LogFile возвращает путь лога до загрузки остальной конфигурации:
// логгер нужен раньше, чем Load
func LogFile() string {
	_ = godotenv.Load()

	return env("LOG_FILE", "tradelock.log")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func duration(logger *slog.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("⚠️  Invalid duration, using default",
			slog.String("key", key),
			slog.String("value", v),
			slog.Duration("default", def),
		)

		return def
	}

	return d
}
