package payment

import (
	"tradelock/pkg/validator"
)

// MaskCard оставляет первые 4 и последние 4 цифры: XXXX****YYYY
func MaskCard(card string) string {
	digits := validator.DigitsOnly(card)
	if len(digits) < 8 {
		return "****"
	}

	return digits[:4] + "****" + digits[len(digits)-4:]
}

// masked возвращает true если номер уже замаскирован
func masked(card string) bool {
	digits := 0
	for _, r := range card {
		if r >= '0' && r <= '9' {
			digits++
		}
	}

	return digits <= 8
}
