package handler

import (
	"net/http"

	"github.com/DreamDayCrew/FinanceTracker/internal/service"
)

func (h *Handler) CreateScheduledPayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req service.ScheduledPaymentInput
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateScheduledPayment(r.Context(), uid, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListScheduledPayments(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListScheduledPayments(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) UpdateScheduledPayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.ScheduledPaymentInput
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateScheduledPayment(r.Context(), uid, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteScheduledPayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteScheduledPayment(r.Context(), uid, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateCreditCard(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req service.CreditCardInput
	if !h.decode(w, r, &req) {
		return
	}
	card, err := h.svc.CreateCreditCard(r.Context(), uid, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}
