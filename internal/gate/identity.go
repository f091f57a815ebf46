package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tradelock/internal/models"
)

// TelegramUser - поле user из Telegram WebApp initData
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Identity - то, чем Mini App представляется при авторизации.
// Пустая Identity означает, что Telegram данных нет (открыто вне Telegram).
type Identity struct {
	InitData string
	User     *TelegramUser
	AuthDate time.Time
}

// Empty возвращает true если проверить личность на бэкенде нечем
func (id Identity) Empty() bool {
	return id.InitData == ""
}

// TelegramID возвращает id пользователя Telegram или 0
func (id Identity) TelegramID() int64 {
	if id.User == nil {
		return 0
	}

	return id.User.ID
}

// ParseInitData разбирает строку initData. Подпись не проверяется, см. VerifyInitData.
func ParseInitData(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, nil
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to parse init data: %w", err)
	}

	id := Identity{InitData: raw}

	if u := values.Get("user"); u != "" {
		var tu TelegramUser
		if err := json.Unmarshal([]byte(u), &tu); err != nil {
			return Identity{}, fmt.Errorf("failed to parse init data user: %w", err)
		}
		id.User = &tu
	}

	if ad := values.Get("auth_date"); ad != "" {
		sec, err := strconv.ParseInt(ad, 10, 64)
		if err != nil {
			return Identity{}, fmt.Errorf("invalid auth_date: %w", err)
		}
		id.AuthDate = time.Unix(sec, 0)
	}

	return id, nil
}

var (
	ErrInitDataSignature = errors.New("init data signature mismatch")
	ErrInitDataExpired   = errors.New("init data expired")
)

// VerifyInitData проверяет подпись initData ключом бота.
// maxAge = 0 отключает проверку возраста.
func VerifyInitData(raw, botToken string, maxAge time.Duration, now time.Time) error {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("failed to parse init data: %w", err)
	}

	hash := values.Get("hash")
	if hash == "" {
		return ErrInitDataSignature
	}

	if !hmac.Equal([]byte(hash), []byte(SignInitData(values, botToken))) {
		return ErrInitDataSignature
	}

	if maxAge > 0 {
		sec, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(sec, 0)) > maxAge {
			return ErrInitDataExpired
		}
	}

	return nil
}

// SignInitData считает hash initData по алгоритму Telegram WebApp:
// secret = HMAC_SHA256("WebAppData", token), hash = HMAC_SHA256(secret, data_check_string)
func SignInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	return hex.EncodeToString(mac.Sum(nil))
}

// demoTelegramID - фиксированный id демо пользователя локальной сессии
const demoTelegramID = 123456789

// DemoBalance - стартовый баланс демо пользователя
const DemoBalance = 500000

// demoUser строит пользователя локальной сессии
func demoUser(id Identity, now time.Time) models.User {
	u := models.User{
		ID:         demoTelegramID,
		TelegramID: demoTelegramID,
		Username:   "demo_user",
		FirstName:  "Demo",
		LastName:   "User",
		Balance:    DemoBalance,
		Settings:   models.DefaultSettings(),
		CreatedAt:  now,
	}

	if tu := id.User; tu != nil && tu.ID != 0 {
		u.ID = tu.ID
		u.TelegramID = tu.ID
		u.Username = tu.Username
		u.FirstName = tu.FirstName
		u.LastName = tu.LastName
	}

	return u
}
