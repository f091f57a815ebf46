// Package bridge - локальный HTTP + WebSocket мост между Mini App и клиентским ядром.
package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tradelock/internal/app"
	"tradelock/internal/errs"
)

// DefaultInitDataMaxAge - срок действия подписанного initData
const DefaultInitDataMaxAge = 24 * time.Hour

// Handler обрабатывает запросы Mini App
type Handler struct {
	core     *app.App
	hub      *Hub
	botToken string
	maxAge   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// New создает обработчик. При пустом botToken подпись initData не проверяется.
func New(core *app.App, hub *Hub, botToken string, logger *slog.Logger) *Handler {
	return &Handler{
		core:     core,
		hub:      hub,
		botToken: botToken,
		maxAge:   DefaultInitDataMaxAge,
		now:      time.Now,
		logger:   logger,
	}
}

// Helper функции для JSON ответов

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("Failed to write response", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondErr отвечает ошибкой ядра со статусом по ее классу
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	code, msg := errs.Decode(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", slog.Any("error", err))
	}

	h.respondJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func (h *Handler) respondSuccess(w http.ResponseWriter, message string, data any) {
	h.respondJSON(w, http.StatusOK, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errs.Validation("invalid request body")
	}

	return nil
}
