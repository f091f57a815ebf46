package bridge

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tradelock/internal/gate"
	"tradelock/internal/models"
)

type AuthRequest struct {
	InitData string `json:"init_data"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
	Mode  gate.Mode   `json:"mode"`
}

// HandleAuth создает сессию ядра по Telegram initData
func (h *Handler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	if req.InitData != "" && h.botToken != "" {
		if err := gate.VerifyInitData(req.InitData, h.botToken, h.maxAge, h.now()); err != nil {
			h.logger.Warn("⚠️  Rejected init data", slog.Any("error", err))

			msg := "Invalid init data"
			if errors.Is(err, gate.ErrInitDataExpired) {
				msg = "Init data expired"
			}

			h.respondError(w, http.StatusUnauthorized, msg)

			return
		}
	}

	resp, err := h.core.Authenticate(r.Context(), req.InitData)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	mode := h.core.Gate.Mode()
	h.hub.Broadcast(EventMode, mode)

	h.respondSuccess(w, "Authenticated", AuthResponse{
		Token: resp.Token,
		User:  resp.User,
		Mode:  mode,
	})
}

type PendingCounts struct {
	User     bool `json:"user"`
	Trades   int  `json:"trades"`
	Payments int  `json:"payments"`
}

type StatusResponse struct {
	Mode     gate.Mode     `json:"mode"`
	Online   bool          `json:"online"`
	Pending  PendingCounts `json:"pending"`
	LastSync *time.Time    `json:"last_sync,omitempty"`
	Clients  int           `json:"clients"`
}

// HandleStatus возвращает режим ядра и очередь синхронизации
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.respondSuccess(w, "", h.status(r))
}

func (h *Handler) status(r *http.Request) StatusResponse {
	ctx := r.Context()
	batch := h.core.Syncer.Pending(ctx)

	st := StatusResponse{
		Mode:   h.core.Gate.Mode(),
		Online: h.core.Gate.Online(),
		Pending: PendingCounts{
			User:     batch.User != nil,
			Trades:   len(batch.Trades),
			Payments: len(batch.Payments),
		},
		Clients: h.hub.Clients(),
	}

	if last := h.core.Records.LastSync(ctx); !last.IsZero() {
		st.LastSync = &last
	}

	return st
}

type NetworkRequest struct {
	Online bool `json:"online"`
}

// HandleNetwork принимает события online/offline браузера
func (h *Handler) HandleNetwork(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	h.core.Gate.SetNetwork(r.Context(), req.Online)
	h.hub.Broadcast(EventMode, h.core.Gate.Mode())

	h.respondSuccess(w, "", h.status(r))
}

// HandleLogout завершает сессию
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.core.Gate.Logout(r.Context())
	h.respondSuccess(w, "Logged out", nil)
}

// HandleSync проверяет бэкенд и отправляет накопленные offline изменения
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.core.Gate.Probe(ctx) {
		h.respondError(w, http.StatusServiceUnavailable, "Backend unreachable")
		return
	}

	res, err := h.core.Syncer.Reconcile(ctx)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondSuccess(w, "Synced", res)
}
