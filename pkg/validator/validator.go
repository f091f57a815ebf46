package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})

		_ = validate.RegisterValidation("trimmed_min", trimmedMin)
		_ = validate.RegisterValidation("card_number", cardNumber)
	})

	return validate
}

// Struct проверяет структуру по тегам validate
func Struct(v any) error {
	return engine().Struct(v)
}

// DigitsOnly убирает пробелы и дефисы из номера карты
func DigitsOnly(card string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, card)
}

// trimmedMin проверяет длину строки в символах после обрезки пробелов
func trimmedMin(fl validator.FieldLevel) bool {
	var min int
	if _, err := fmt.Sscan(fl.Param(), &min); err != nil {
		return false
	}

	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= min
}

// cardNumber принимает 13-19 цифр, пробелы и дефисы игнорируются
func cardNumber(fl validator.FieldLevel) bool {
	digits := DigitsOnly(fl.Field().String())
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// GetErrorMsg переводит ошибки валидации в сообщение для пользователя
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid request"
	}

	var errMsgs []string
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s is required", field))
		case "min":
			if field == "amount" {
				errMsgs = append(errMsgs, fmt.Sprintf("minimum amount is %s", param))
			} else {
				errMsgs = append(errMsgs, fmt.Sprintf("%s must be at least %s", field, param))
			}
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be at most %s characters", field, param))
		case "trimmed_min":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be at least %s characters", field, param))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be one of [%s]", field, param))
		case "card_number":
			errMsgs = append(errMsgs, "invalid card number")
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s is invalid (%s)", field, e.Tag()))
		}
	}

	return strings.Join(errMsgs, "; ")
}
