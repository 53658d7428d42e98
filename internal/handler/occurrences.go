package handler

import (
	"net/http"

	"github.com/DreamDayCrew/FinanceTracker/internal/service"
)

type monthRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Checklist lists the month's occurrences, generating them on first view
func (h *Handler) Checklist(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	month, year, ok := h.monthParams(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Checklist(r.Context(), uid, month, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	month, year, ok := h.monthParams(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Preview(r.Context(), uid, month, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	today := h.svc.Today()
	req := monthRequest{Month: int(today.Month()), Year: today.Year()}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Generate(r.Context(), uid, req.Month, req.Year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.PaymentInput
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.MarkPaid(r.Context(), uid, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Unmark(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Unmark(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Skip(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), uid, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
