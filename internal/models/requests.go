package models

// MinAmount - минимальная сумма сделки и платежа
const MinAmount = 1000

// TradeDraft - параметры новой сделки
type TradeDraft struct {
	TradeType      TradeType      `json:"trade_type" validate:"required,oneof=sell buy"`
	Amount         int64          `json:"amount" validate:"min=1000"`
	CommissionType CommissionType `json:"commission_type" validate:"required,oneof=creator partner participant split"`
	Name           string         `json:"name" validate:"trimmed_min=3"`
	Description    string         `json:"description,omitempty" validate:"max=500"`
}

// PaymentMethod - платежный метод для пополнения и вывода
type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodUzcard PaymentMethod = "uzcard"
	MethodHumo   PaymentMethod = "humo"
)

// PaymentRequest - запрос на пополнение или вывод.
// CardNumber содержит полный номер карты и никогда не сохраняется.
type PaymentRequest struct {
	Type       PaymentType   `json:"type" validate:"required,oneof=deposit withdraw"`
	Amount     int64         `json:"amount" validate:"min=1000"`
	Method     PaymentMethod `json:"method" validate:"required,oneof=card uzcard humo"`
	CardNumber string        `json:"card_number" validate:"required,card_number"`
}

// ProfileUpdate - изменяемые поля профиля
type ProfileUpdate struct {
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
	Username  string `json:"username" validate:"max=32"`
}

// SyncBatch - записи, измененные в offline режиме
type SyncBatch struct {
	User     *User     `json:"user,omitempty"`
	Trades   []Trade   `json:"trades"`
	Payments []Payment `json:"payments"`
}

// Empty возвращает true если синхронизировать нечего
func (b SyncBatch) Empty() bool {
	return b.User == nil && len(b.Trades) == 0 && len(b.Payments) == 0
}

// SyncResult - записи, принятые бэкендом
type SyncResult struct {
	User     bool     `json:"user"`
	Trades   []int64  `json:"trades"`
	Payments []string `json:"payments"`
}
