package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DreamDayCrew/FinanceTracker/internal/middleware"
	"github.com/DreamDayCrew/FinanceTracker/internal/models"
	"github.com/DreamDayCrew/FinanceTracker/internal/repository"
	"github.com/DreamDayCrew/FinanceTracker/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const secret = "test-secret"

type testServer struct {
	router *mux.Router
	mem    *repository.Memory
	user   uuid.UUID
	token  string
	acct   uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	mem := repository.NewMemory()
	svc := service.NewService(mem, service.FixedClock(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)), nil, logger)

	user := uuid.New()
	acct := uuid.New()
	mem.PutAccount(models.Account{ID: acct, UserID: user, Name: "Main", Type: models.AccountTypeBank, Balance: decimal.NewFromInt(10000)})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(secret, logger))
	NewHandler(svc, logger).RegisterRoutes(api)
	return &testServer{router: router, mem: mem, user: user, token: token, acct: acct}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api"+path, r)
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestOccurrenceLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/scheduled-payments", `{
		"account_id": "`+s.acct.String()+`",
		"name": "Rent",
		"amount": "1500",
		"frequency": "monthly",
		"due_date_type": "fixed_day",
		"due_date": 5
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet, "/occurrences?month=3&year=2025", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("checklist: status = %d", rec.Code)
	}
	var list service.GenerationResult
	decodeBody(t, rec, &list)
	if len(list.Occurrences) != 1 {
		t.Fatalf("occurrences = %d, want 1", len(list.Occurrences))
	}
	id := list.Occurrences[0].ID.String()

	rec = s.do(t, http.MethodPost, "/occurrences/"+id+"/pay", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pay: status = %d, body %s", rec.Code, rec.Body)
	}
	var paid service.ReconcileResult
	decodeBody(t, rec, &paid)
	if !paid.Applied || paid.Occurrence.Status != models.OccurrencePaid {
		t.Errorf("pay result = %+v", paid)
	}
	if a, _ := s.mem.GetAccount(context.Background(), s.acct); !a.Balance.Equal(decimal.NewFromInt(8500)) {
		t.Errorf("balance = %s, want 8500", a.Balance)
	}

	if rec = s.do(t, http.MethodPost, "/occurrences/"+id+"/skip", ""); rec.Code != http.StatusConflict {
		t.Errorf("skip paid: status = %d, want 409", rec.Code)
	}
	if rec = s.do(t, http.MethodDelete, "/occurrences/"+id, ""); rec.Code != http.StatusConflict {
		t.Errorf("delete paid: status = %d, want 409", rec.Code)
	}
	if rec = s.do(t, http.MethodPost, "/occurrences/"+id+"/unpay", ""); rec.Code != http.StatusOK {
		t.Errorf("unpay: status = %d", rec.Code)
	}
	if rec = s.do(t, http.MethodDelete, "/occurrences/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete pending: status = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
		field  string
	}{
		{"bad id", http.MethodPost, "/occurrences/not-a-uuid/pay", "", http.StatusBadRequest, ""},
		{"unknown occurrence", http.MethodPost, "/occurrences/" + uuid.NewString() + "/pay", "", http.StatusNotFound, ""},
		{"bad json", http.MethodPost, "/loans", "{", http.StatusBadRequest, ""},
		{"bad month", http.MethodGet, "/occurrences?month=13&year=2025", "", http.StatusBadRequest, "month"},
		{"month not a number", http.MethodGet, "/occurrences?month=march", "", http.StatusBadRequest, ""},
		{"validation", http.MethodPost, "/scheduled-payments", `{"name":"Rent","frequency":"monthly","due_date_type":"fixed_day","due_date":5}`, http.StatusBadRequest, "amount"},
		{"paydays without profile", http.MethodGet, "/salary/paydays?count=3", "", http.StatusNotFound, ""},
		{"paydays count", http.MethodGet, "/salary/paydays?count=99", "", http.StatusBadRequest, "count"},
		{"key rate without feed", http.MethodGet, "/key-rate", "", http.StatusBadGateway, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if tt.field != "" {
				var e errorResponse
				decodeBody(t, rec, &e)
				if e.Field != tt.field {
					t.Errorf("field = %q, want %q", e.Field, tt.field)
				}
			}
		})
	}
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoanAndForecastOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/loans", `{
		"name": "Car",
		"principal_amount": "100000",
		"interest_rate": "12",
		"tenure_months": 12,
		"emi_day": 5,
		"start_date": "2025-02-15T00:00:00Z"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create loan: status = %d, body %s", rec.Code, rec.Body)
	}
	var ls service.LoanSchedule
	decodeBody(t, rec, &ls)
	if len(ls.Installments) != 12 {
		t.Fatalf("installments = %d", len(ls.Installments))
	}

	rec = s.do(t, http.MethodGet, "/loans/"+ls.Loan.ID.String()+"/schedule", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule: status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/forecast", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("forecast: status = %d", rec.Code)
	}
	var f models.Forecast
	decodeBody(t, rec, &f)
	if !f.NextMonth.LoanEMIs.Equal(ls.Loan.EMIAmount) {
		t.Errorf("next month EMIs = %s, want %s", f.NextMonth.LoanEMIs, ls.Loan.EMIAmount)
	}
}
