package bridge

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradelock/internal/api"
	"tradelock/internal/errs"
	"tradelock/internal/models"
)

// CreateTradeRequest - создание сделки или присоединение по join_link
type CreateTradeRequest struct {
	models.TradeDraft
	JoinLink string `json:"join_link,omitempty"`
}

type TradeActionRequest struct {
	Action api.Action `json:"action"`
	Reason string     `json:"reason,omitempty"`
}

// HandleListTrades возвращает сделки пользователя (?status=all|active|completed|cancelled)
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	filter := models.StatusFilter(r.URL.Query().Get("status"))

	trades, err := h.core.Trades.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondSuccess(w, "", trades)
}

// HandleGetTrade возвращает сделку по id или секретной ссылке
func (h *Handler) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	t, err := h.core.Trades.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondSuccess(w, "", t)
}

// HandleCreateTrade создает сделку, а при наличии join_link присоединяется к ней
func (h *Handler) HandleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req CreateTradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	var (
		t   models.Trade
		err error
		msg string
	)

	if req.JoinLink != "" {
		t, err = h.core.Trades.Join(r.Context(), req.JoinLink)
		msg = "Joined trade"
	} else {
		t, err = h.core.Trades.Create(r.Context(), req.TradeDraft)
		msg = "Trade created"
	}

	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.hub.Broadcast(EventTrade, t)
	h.respondSuccess(w, msg, t)
}

// HandleTradeAction подтверждает или отменяет сделку
func (h *Handler) HandleTradeAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid trade id")
		return
	}

	var req TradeActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	var t models.Trade

	switch req.Action {
	case api.ActionConfirm:
		t, err = h.core.Trades.Confirm(r.Context(), id)
	case api.ActionCancel:
		t, err = h.core.Trades.Cancel(r.Context(), id, req.Reason)
	default:
		err = errs.Validation("action must be confirm or cancel")
	}

	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.hub.Broadcast(EventTrade, t)
	h.respondSuccess(w, "", t)
}
