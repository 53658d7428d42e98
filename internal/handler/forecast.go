package handler

import (
	"net/http"
)

func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	f, err := h.svc.Forecast(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// KeyRate reports the reference rate floating loans follow
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.KeyRate(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get key rate")
		http.Error(w, "Failed to get key rate", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key_rate": rate.String()})
}
