// Package errs описывает таксономию ошибок клиентского ядра.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind - класс ошибки
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindStateConflict
	KindInsufficientBalance
	KindConnectivity
	KindPersistence
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindStateConflict:
		return "state_conflict"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindConnectivity:
		return "connectivity"
	case KindPersistence:
		return "persistence"
	case KindAborted:
		return "aborted"
	default:
		return "internal"
	}
}

// Error - ошибка ядра с кодом и сообщением для пользователя
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по классу, чтобы errors.Is(err, ErrNotFound) работал
// для любого сообщения
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind
}

// Базовые ошибки каждого класса
var (
	ErrInternal            = &Error{Kind: KindInternal, Code: 10001, Message: "internal error"}
	ErrValidation          = &Error{Kind: KindValidation, Code: 20001, Message: "validation failed"}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: 20101, Message: "not found"}
	ErrAuthorization       = &Error{Kind: KindAuthorization, Code: 20201, Message: "not authorized"}
	ErrStateConflict       = &Error{Kind: KindStateConflict, Code: 20301, Message: "state conflict"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Code: 20401, Message: "insufficient balance"}
	ErrConnectivity        = &Error{Kind: KindConnectivity, Code: 30001, Message: "backend unreachable"}
	ErrPersistence         = &Error{Kind: KindPersistence, Code: 30101, Message: "storage failure"}
	ErrAborted             = &Error{Kind: KindAborted, Code: 20501, Message: "aborted by user"}
)

func newError(base *Error, msg string, err error) *Error {
	if msg == "" {
		msg = base.Message
	}

	return &Error{Kind: base.Kind, Code: base.Code, Message: msg, Err: err}
}

func Validation(msg string) error          { return newError(ErrValidation, msg, nil) }
func NotFound(msg string) error            { return newError(ErrNotFound, msg, nil) }
func Authorization(msg string) error       { return newError(ErrAuthorization, msg, nil) }
func StateConflict(msg string) error       { return newError(ErrStateConflict, msg, nil) }
func InsufficientBalance(msg string) error { return newError(ErrInsufficientBalance, msg, nil) }
func Aborted(msg string) error             { return newError(ErrAborted, msg, nil) }

// Connectivity оборачивает сетевую ошибку
func Connectivity(msg string, err error) error { return newError(ErrConnectivity, msg, err) }

// Persistence оборачивает ошибку хранилища
func Persistence(msg string, err error) error { return newError(ErrPersistence, msg, err) }

// KindOf возвращает класс ошибки
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	if IsConnectivity(err) {
		return KindConnectivity
	}

	return KindInternal
}

// IsConnectivity возвращает true для ошибок, после которых нужно уйти в offline:
// явная Connectivity, таймаут контекста или сетевая ошибка
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindConnectivity
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}

// IsUserFacing возвращает true для ошибок, которые показываются пользователю
func IsUserFacing(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindAuthorization, KindStateConflict, KindInsufficientBalance, KindAborted:
		return true
	default:
		return false
	}
}

// Decode возвращает код и сообщение для ответа
func Decode(err error) (int, string) {
	if err == nil {
		return 0, "Success"
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}

	return ErrInternal.Code, err.Error()
}

// HTTPStatus сопоставляет класс ошибки со статусом HTTP
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindStateConflict:
		return http.StatusConflict
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	case KindAborted:
		return http.StatusConflict
	case KindConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus строит доменную ошибку по ответу бэкенда. nil означает, что статус
// не относится к доменным ошибкам и должен обрабатываться как недоступность.
func FromHTTPStatus(status int, msg string) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return Validation(msg)
	case http.StatusPaymentRequired:
		return InsufficientBalance(msg)
	case http.StatusForbidden:
		return Authorization(msg)
	case http.StatusNotFound:
		return NotFound(msg)
	case http.StatusConflict:
		return StateConflict(msg)
	default:
		return nil
	}
}
