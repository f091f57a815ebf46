package bridge

import (
	"net/http"

	"tradelock/internal/models"
)

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.core.Profile.Get(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondSuccess(w, "", u)
}

func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if err := decodeBody(w, r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	u, err := h.core.Profile.UpdateProfile(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondSuccess(w, "Profile updated", u)
}

func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := decodeBody(w, r, &req); err != nil {
		h.respondErr(w, err)
		return
	}

	u, err := h.core.Profile.UpdateSettings(r.Context(), req)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondSuccess(w, "Settings saved", u)
}
