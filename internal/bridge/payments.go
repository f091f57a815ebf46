package bridge

import (
	"net/http"

	"tradelock/internal/errs"
	"tradelock/internal/models"
)

// HandleListPayments возвращает историю платежей
func (h *Handler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.core.Payments.List(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondSuccess(w, "", payments)
}

// HandleCreatePayment создает пополнение или вывод
func (h *Handler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	var (
		p   models.Payment
		err error
	)

	switch req.Type {
	case models.PaymentDeposit:
		p, err = h.core.Payments.Deposit(r.Context(), req.Amount, req.Method, req.CardNumber)
	case models.PaymentWithdraw:
		p, err = h.core.Payments.Withdraw(r.Context(), req.Amount, req.Method, req.CardNumber)
	default:
		err = errs.Validation("type must be deposit or withdraw")
	}

	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.hub.Broadcast(EventPayment, p)
	h.respondSuccess(w, "Payment created", p)
}
