package models

import "time"

// Theme - тема оформления Mini App
type Theme string

const (
	ThemeAuto  Theme = "auto"
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Notifications - каналы уведомлений пользователя
type Notifications struct {
	Telegram bool `json:"telegram"`
	Email    bool `json:"email"`
	Push     bool `json:"push"`
}

// Settings - пользовательские настройки
type Settings struct {
	BalanceHide   bool          `json:"balance_hide"`
	Theme         Theme         `json:"theme" validate:"omitempty,oneof=auto light dark"`
	Notifications Notifications `json:"notifications"`
	TwoFactor     bool          `json:"two_factor"`
}

// DefaultSettings возвращает настройки нового пользователя
func DefaultSettings() Settings {
	return Settings{
		Theme: ThemeAuto,
		Notifications: Notifications{
			Telegram: true,
			Push:     true,
		},
	}
}

// Stats - агрегированные счетчики по сделкам пользователя
type Stats struct {
	TotalTrades      int     `json:"total_trades"`
	ActiveTrades     int     `json:"active_trades"`
	CompletedTrades  int     `json:"completed_trades"`
	CancelledTrades  int     `json:"cancelled_trades"`
	SuccessRate      float64 `json:"success_rate"`
	TotalVolume      int64   `json:"total_volume"`
	CommissionPaid   int64   `json:"commission_paid"`
	CommissionEarned int64   `json:"commission_earned"`
}

// User представляет пользователя Mini App
type User struct {
	ID          int64     `json:"id"`
	TelegramID  int64     `json:"telegram_id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Balance     int64     `json:"balance"` // в минимальных единицах валюты
	Settings    Settings  `json:"settings"`
	Stats       Stats     `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	PendingSync bool      `json:"pending_sync,omitempty"`
}

// DisplayName возвращает имя для карточек сделок
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return "User"
	}
}
