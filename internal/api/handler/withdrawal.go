package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/escrow-ledger/internal/api/middleware"
	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/service"
)

// WithdrawalHandler handles HTTP requests for withdrawals.
type WithdrawalHandler struct {
	svc *service.WithdrawalService
}

func NewWithdrawalHandler(svc *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc}
}

type createWithdrawalRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
}

// CreateWithdrawal handles POST /v1/withdrawals. The Idempotency-Key doubles
// as the withdrawal reference, and the request is accepted with 202 while
// the worker settles it.
func (h *WithdrawalHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	reference := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
	if reference == "" {
		RespondError(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	}

	var req createWithdrawalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, "create withdrawal", err)
		return
	}

	wd, created, err := h.svc.RequestWithdrawal(r.Context(), actor, service.RequestWithdrawalInput{
		Amount:      amount,
		Currency:    req.Currency,
		Destination: req.Destination,
		ReferenceID: actor.UserID.String() + ":" + reference,
	})
	if err != nil {
		writeServiceError(w, r, "create withdrawal", err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	RespondJSON(w, status, newWithdrawalResponse(wd))
}

// GetWithdrawal handles GET /v1/withdrawals/{id}.
func (h *WithdrawalHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	withdrawalID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	wd, err := h.svc.GetWithdrawal(r.Context(), actor, withdrawalID)
	if err != nil {
		writeServiceError(w, r, "get withdrawal", err)
		return
	}
	RespondJSON(w, http.StatusOK, newWithdrawalResponse(wd))
}
