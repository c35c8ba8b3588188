package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/loan-ledger/pkg/response"
)

// NewRouter mounts the health, metrics and ledger API routes. metrics may be
// nil.
func NewRouter(ledger *LedgerHandler, health *HealthHandler, metrics http.Handler, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger), response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/products", ledger.CreateProduct).Methods(http.MethodPost)
	api.HandleFunc("/products", ledger.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{productId}", ledger.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{productId}/archive", ledger.ArchiveProduct).Methods(http.MethodPost)
	api.HandleFunc("/quotes", ledger.Quote).Methods(http.MethodPost)

	api.HandleFunc("/loans", ledger.DisburseLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}", ledger.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/schedule", ledger.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/balance", ledger.GetBalance).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/payments", ledger.ApplyPayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/payments", ledger.ListPayments).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/payments/{paymentId}/reverse", ledger.ReversePayment).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/overdue", ledger.DetectOverdue).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/installments/{installment}/penalties", ledger.ApplyPenalty).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/penalties", ledger.ListPenalties).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/close", ledger.CloseLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/suspend", ledger.SuspendLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/resume", ledger.ResumeLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{loanId}/restructure", ledger.RestructureLoan).Methods(http.MethodPost)

	return router
}
