package trade

import (
	"github.com/shopspring/decimal"

	"tradelock/internal/models"
)

// CommissionRate - комиссия сервиса, фиксированная константа протокола
var CommissionRate = decimal.RequireFromString("0.02")

// Commission возвращает round(amount * 0.02)
func Commission(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(CommissionRate).Round(0).IntPart()
}

// RequiredBalance возвращает сумму, которая должна быть у присоединяющегося
// покупателя: amount плюс его доля комиссии. Продавцу баланс не нужен.
func RequiredBalance(t *models.Trade) int64 {
	if t.BuyerRole() != models.RoleParticipant {
		return 0
	}

	return t.Amount + t.Shares().Participant
}
