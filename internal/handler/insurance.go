package handler

import (
	"net/http"

	"github.com/DreamDayCrew/FinanceTracker/internal/service"
)

func (h *Handler) CreateInsurance(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req service.InsuranceInput
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.CreateInsurance(r.Context(), uid, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) ListPremiums(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ListPremiums(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
