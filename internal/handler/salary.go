package handler

import (
	"net/http"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/service"
)

func (h *Handler) SaveSalaryProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req service.SalaryProfileInput
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.SaveSalaryProfile(r.Context(), uid, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) NextPaydays(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	count, ok := queryInt(w, r, "count", 3)
	if !ok {
		return
	}
	days, err := h.svc.NextPaydays(r.Context(), uid, count)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]time.Time{"paydays": days})
}

type cycleResponse struct {
	Cycle   *models.SalaryCycle `json:"cycle"`
	Created bool                `json:"created"`
}

func (h *Handler) EnsureSalaryCycle(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	today := h.svc.Today()
	req := monthRequest{Month: int(today.Month()), Year: today.Year()}
	if !h.decode(w, r, &req) {
		return
	}
	c, created, err := h.svc.EnsureSalaryCycle(r.Context(), uid, req.Month, req.Year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, cycleResponse{Cycle: c, Created: created})
}

func (h *Handler) CreditSalary(w http.ResponseWriter, r *http.Request) {
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
	res, err := h.svc.MarkSalaryCredited(r.Context(), uid, id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) UncreditSalary(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.UnmarkSalaryCredited(r.Context(), uid, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
