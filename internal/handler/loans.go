package handler

import (
	"net/http"

	"github.com/DreamDayCrew/FinanceTracker/internal/service"
)

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req service.LoanInput
	if !h.decode(w, r, &req) {
		return
	}
	ls, err := h.svc.CreateLoan(r.Context(), uid, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ls)
}

func (h *Handler) GetLoanSchedule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ls, err := h.svc.GetLoanSchedule(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (h *Handler) ChangeLoanTerms(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.TermChangeInput
	if !h.decode(w, r, &req) {
		return
	}
	ls, err := h.svc.ChangeLoanTerms(r.Context(), uid, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (h *Handler) PrecloseLoan(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.PrecloseInput
	if !h.decode(w, r, &req) {
		return
	}
	loan, err := h.svc.PrecloseLoan(r.Context(), uid, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) BalanceTransfer(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req service.BalanceTransferInput
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.DisburseBalanceTransfer(r.Context(), uid, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) RefreshRate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.RefreshFloatingRate(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
