package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/DreamDayCrew/FinanceTracker/internal/middleware"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler exposes the service over JSON HTTP. Every route expects AuthMiddleware to have
// put the caller's user id into the request context.
type Handler struct {
	svc    *service.Service
	logger *logrus.Logger
}

func NewHandler(svc *service.Service, logger *logrus.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/occurrences", h.Checklist).Methods("GET")
	router.HandleFunc("/occurrences/preview", h.Preview).Methods("GET")
	router.HandleFunc("/occurrences/generate", h.Generate).Methods("POST")
	router.HandleFunc("/occurrences/{id}/pay", h.MarkPaid).Methods("POST")
	router.HandleFunc("/occurrences/{id}/unpay", h.Unmark).Methods("POST")
	router.HandleFunc("/occurrences/{id}/skip", h.Skip).Methods("POST")
	router.HandleFunc("/occurrences/{id}", h.DeleteOccurrence).Methods("DELETE")

	router.HandleFunc("/scheduled-payments", h.CreateScheduledPayment).Methods("POST")
	router.HandleFunc("/scheduled-payments", h.ListScheduledPayments).Methods("GET")
	router.HandleFunc("/scheduled-payments/{id}", h.UpdateScheduledPayment).Methods("PUT")
	router.HandleFunc("/scheduled-payments/{id}", h.DeleteScheduledPayment).Methods("DELETE")
	router.HandleFunc("/credit-cards", h.CreateCreditCard).Methods("POST")

	router.HandleFunc("/loans", h.CreateLoan).Methods("POST")
	router.HandleFunc("/loans/{id}/schedule", h.GetLoanSchedule).Methods("GET")
	router.HandleFunc("/loans/{id}/terms", h.ChangeLoanTerms).Methods("POST")
	router.HandleFunc("/loans/{id}/preclose", h.PrecloseLoan).Methods("POST")
	router.HandleFunc("/loans/{id}/balance-transfer", h.BalanceTransfer).Methods("POST")
	router.HandleFunc("/loans/{id}/refresh-rate", h.RefreshRate).Methods("POST")

	router.HandleFunc("/insurance", h.CreateInsurance).Methods("POST")
	router.HandleFunc("/insurance/{id}/premiums", h.ListPremiums).Methods("GET")

	router.HandleFunc("/salary/profile", h.SaveSalaryProfile).Methods("PUT")
	router.HandleFunc("/salary/paydays", h.NextPaydays).Methods("GET")
	router.HandleFunc("/salary/cycles", h.EnsureSalaryCycle).Methods("POST")
	router.HandleFunc("/salary/cycles/{id}/credit", h.CreditSalary).Methods("POST")
	router.HandleFunc("/salary/cycles/{id}/uncredit", h.UncreditSalary).Methods("POST")

	router.HandleFunc("/forecast", h.Forecast).Methods("GET")
	router.HandleFunc("/key-rate", h.KeyRate).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps service errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, repository.ErrDuplicate):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decode reads the JSON body into v. An empty body leaves v untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.logger.WithError(err).Warn("Failed to decode request body")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return false
	}
	return true
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return id, ok
}

// pathID parses the {id} route variable.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an integer query parameter, falling back to def when absent.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// monthParams reads month and year, defaulting to the current month.
func (h *Handler) monthParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	today := h.svc.Today()
	month, ok := queryInt(w, r, "month", int(today.Month()))
	if !ok {
		return 0, 0, false
	}
	year, ok := queryInt(w, r, "year", today.Year())
	if !ok {
		return 0, 0, false
	}
	return month, year, true
}
