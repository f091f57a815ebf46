package models

import (
	"fmt"
	"time"
)

// PaymentType - тип платежной операции
type PaymentType string

const (
	PaymentDeposit    PaymentType = "deposit"
	PaymentWithdraw   PaymentType = "withdraw"
	PaymentTransfer   PaymentType = "transfer"
	PaymentCommission PaymentType = "commission"
	PaymentTradeEarn  PaymentType = "trade_earn"
	PaymentBonus      PaymentType = "bonus"
	PaymentPenalty    PaymentType = "penalty"
)

// Credit возвращает true если операция увеличивает баланс
func (t PaymentType) Credit() bool {
	switch t {
	case PaymentDeposit, PaymentTradeEarn, PaymentBonus:
		return true
	default:
		return false
	}
}

// PaymentStatus - статус платежа
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment - запись о движении средств пользователя
type Payment struct {
	ID          string        `json:"id"`
	UserID      int64         `json:"user_id"`
	Type        PaymentType   `json:"type"`
	Amount      int64         `json:"amount"`
	Status      PaymentStatus `json:"status"`
	Reference   string        `json:"reference"`
	Description string        `json:"description,omitempty"`
	Method      string        `json:"method,omitempty"`
	CardNumber  string        `json:"card_number,omitempty"` // только маска XXXX****YYYY
	TradeID     *int64        `json:"trade_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	PendingSync bool          `json:"pending_sync,omitempty"`
}

// Signed возвращает изменение баланса со знаком
func (p Payment) Signed() int64 {
	if p.Type.Credit() {
		return p.Amount
	}

	return -p.Amount
}

// Prefix возвращает префикс номера операции
func (t PaymentType) Prefix() string {
	switch t {
	case PaymentDeposit:
		return "DEP"
	case PaymentWithdraw:
		return "WDR"
	case PaymentTransfer:
		return "TRF"
	case PaymentCommission:
		return "COM"
	case PaymentTradeEarn:
		return "ERN"
	case PaymentBonus:
		return "BON"
	case PaymentPenalty:
		return "PEN"
	default:
		return "PAY"
	}
}

// NewReference строит номер операции: префикс и последние 6 цифр unix millis.
// Номер - только подпись для пользователя, уникальность не требуется.
func NewReference(t PaymentType, now time.Time) string {
	return fmt.Sprintf("%s%06d", t.Prefix(), now.UnixMilli()%1000000)
}
