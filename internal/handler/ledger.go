package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/segyhp/loan-ledger/internal/amortization"
	"github.com/segyhp/loan-ledger/internal/domain"
	customError "github.com/segyhp/loan-ledger/pkg/errors"
	"github.com/segyhp/loan-ledger/pkg/response"
)

const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

// LedgerService is the ledger surface exposed over HTTP.
type LedgerService interface {
	DisburseLoan(ctx context.Context, actor domain.Actor, req domain.DisburseLoanRequest) (*domain.LoanDetailResponse, error)
	ApplyPayment(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.MakePaymentRequest) (*domain.Payment, error)
	ReversePayment(ctx context.Context, actor domain.Actor, loanID, paymentID uuid.UUID, reason string) (*domain.Payment, error)
	GetLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.Loan, error)
	GetSchedule(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.ScheduleResponse, error)
	GetBalance(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.BalanceResponse, error)
	ListPayments(ctx context.Context, actor domain.Actor, loanID uuid.UUID) ([]domain.Payment, error)
	ListPenalties(ctx context.Context, actor domain.Actor, loanID uuid.UUID) ([]domain.PenaltyCharge, error)
	DetectOverdue(ctx context.Context, actor domain.Actor, loanID uuid.UUID, asOf time.Time) (*domain.Loan, error)
	ApplyLatePenalty(ctx context.Context, actor domain.Actor, loanID uuid.UUID, installment int, req domain.ApplyPenaltyRequest) (*domain.PenaltyCharge, error)
	CloseLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.CloseLoanRequest) (*domain.Loan, error)
	SuspendLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, reason string) (*domain.Loan, error)
	ResumeLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID) (*domain.Loan, error)
	RestructureLoan(ctx context.Context, actor domain.Actor, loanID uuid.UUID, req domain.RestructureLoanRequest) (*domain.LoanDetailResponse, error)
	Quote(ctx context.Context, actor domain.Actor, req domain.QuoteRequest) (*amortization.Breakdown, error)
	CreateProduct(ctx context.Context, actor domain.Actor, req domain.CreateProductRequest) (*domain.LoanProduct, error)
	GetProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.LoanProduct, error)
	ListProducts(ctx context.Context, actor domain.Actor, includeArchived bool) ([]domain.LoanProduct, error)
	ArchiveProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

type LedgerHandler struct {
	service   LedgerService
	validator *validator.Validate
}

func NewLedgerHandler(service LedgerService) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: NewValidator(),
	}
}

// actorFrom reads the caller identity set by the upstream gateway.
func actorFrom(r *http.Request) (domain.Actor, bool) {
	actor := domain.Actor{
		TenantID: r.Header.Get(HeaderTenantID),
		UserID:   r.Header.Get(HeaderUserID),
	}
	return actor, actor.TenantID != "" && actor.UserID != ""
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted for requests whose fields are all optional.
func (h *LedgerHandler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return customError.WrapValidationError(err)
	}
	if err := h.validator.Struct(dst); err != nil {
		return customError.WrapValidationError(err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, customError.WrapValidationError(errors.New(name + " must be a UUID"))
	}
	return id, nil
}

// loanRequest resolves the actor and the loan ID of a loan-scoped route.
func loanRequest(w http.ResponseWriter, r *http.Request) (domain.Actor, uuid.UUID, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "X-Tenant-ID and X-User-ID headers are required")
		return actor, uuid.Nil, false
	}
	loanID, err := pathUUID(r, "loanId")
	if err != nil {
		response.FromError(w, err)
		return actor, uuid.Nil, false
	}
	return actor, loanID, true
}

// DisburseLoan handles POST /api/v1/loans
func (h *LedgerHandler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "X-Tenant-ID and X-User-ID headers are required")
		return
	}

	var req domain.DisburseLoanRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	resp, err := h.service.DisburseLoan(r.Context(), actor, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, resp)
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LedgerHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(r.Context(), actor, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// GetSchedule handles GET /api/v1/loans/{loanId}/schedule
func (h *LedgerHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetSchedule(r.Context(), actor, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, resp)
}

// GetBalance handles GET /api/v1/loans/{loanId}/balance
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetBalance(r.Context(), actor, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, resp)
}

// ApplyPayment handles POST /api/v1/loans/{loanId}/payments
func (h *LedgerHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	var req domain.MakePaymentRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	payment, err := h.service.ApplyPayment(r.Context(), actor, loanID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, payment)
}

// ListPayments handles GET /api/v1/loans/{loanId}/payments
func (h *LedgerHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), actor, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, payments)
}

// ReversePayment handles POST /api/v1/loans/{loanId}/payments/{paymentId}/reverse
func (h *LedgerHandler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}
	paymentID, err := pathUUID(r, "paymentId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	var req domain.ReversePaymentRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	payment, err := h.service.ReversePayment(r.Context(), actor, loanID, paymentID, req.Reason)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, payment)
}

// DetectOverdue handles POST /api/v1/loans/{loanId}/overdue
func (h *LedgerHandler) DetectOverdue(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	var req domain.DetectOverdueRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.DetectOverdue(r.Context(), actor, loanID, req.AsOf)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// ApplyPenalty handles POST /api/v1/loans/{loanId}/installments/{installment}/penalties
func (h *LedgerHandler) ApplyPenalty(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}
	installment, err := strconv.Atoi(mux.Vars(r)["installment"])
	if err != nil || installment <= 0 {
		response.FromError(w, customError.WrapValidationError(errors.New("installment must be a positive integer")))
		return
	}

	var req domain.ApplyPenaltyRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	charge, err := h.service.ApplyLatePenalty(r.Context(), actor, loanID, installment, req)
	if err != nil {
		response.FromError(w, err)
		return
	}

	resp := domain.PenaltyResponse{LoanID: loanID, InstallmentNumber: installment, PeriodKey: req.PeriodKey}
	if charge == nil {
		response.Success(w, resp)
		return
	}
	resp.Amount = charge.Amount
	response.Created(w, resp)
}

// ListPenalties handles GET /api/v1/loans/{loanId}/penalties
func (h *LedgerHandler) ListPenalties(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	charges, err := h.service.ListPenalties(r.Context(), actor, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, charges)
}

// CloseLoan handles POST /api/v1/loans/{loanId}/close
func (h *LedgerHandler) CloseLoan(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	var req domain.CloseLoanRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.CloseLoan(r.Context(), actor, loanID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// SuspendLoan handles POST /api/v1/loans/{loanId}/suspend
func (h *LedgerHandler) SuspendLoan(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	var req domain.SuspendLoanRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	loan, err := h.service.SuspendLoan(r.Context(), actor, loanID, req.Reason)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// ResumeLoan handles POST /api/v1/loans/{loanId}/resume
func (h *LedgerHandler) ResumeLoan(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	loan, err := h.service.ResumeLoan(r.Context(), actor, loanID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, loan)
}

// RestructureLoan handles POST /api/v1/loans/{loanId}/restructure
func (h *LedgerHandler) RestructureLoan(w http.ResponseWriter, r *http.Request) {
	actor, loanID, ok := loanRequest(w, r)
	if !ok {
		return
	}

	var req domain.RestructureLoanRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	resp, err := h.service.RestructureLoan(r.Context(), actor, loanID, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, resp)
}

// Quote handles POST /api/v1/quotes
func (h *LedgerHandler) Quote(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "X-Tenant-ID and X-User-ID headers are required")
		return
	}

	var req domain.QuoteRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	quote, err := h.service.Quote(r.Context(), actor, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, quote)
}

// CreateProduct handles POST /api/v1/products
func (h *LedgerHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "X-Tenant-ID and X-User-ID headers are required")
		return
	}

	var req domain.CreateProductRequest
	if err := h.decode(r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), actor, req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, product)
}

// ListProducts handles GET /api/v1/products?include_archived=true
func (h *LedgerHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "X-Tenant-ID and X-User-ID headers are required")
		return
	}
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))

	products, err := h.service.ListProducts(r.Context(), actor, includeArchived)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, products)
}

// GetProduct handles GET /api/v1/products/{productId}
func (h *LedgerHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "X-Tenant-ID and X-User-ID headers are required")
		return
	}
	id, err := pathUUID(r, "productId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	product, err := h.service.GetProduct(r.Context(), actor, id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, product)
}

// ArchiveProduct handles POST /api/v1/products/{productId}/archive
func (h *LedgerHandler) ArchiveProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		response.Unauthorized(w, "X-Tenant-ID and X-User-ID headers are required")
		return
	}
	id, err := pathUUID(r, "productId")
	if err != nil {
		response.FromError(w, err)
		return
	}

	if err := h.service.ArchiveProduct(r.Context(), actor, id); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
