package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/service"
	"github.com/google/uuid"
)

// EscrowHandler exposes the escrow lifecycle over HTTP.
type EscrowHandler struct {
	svc *service.EscrowService
}

func NewEscrowHandler(svc *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: svc}
}

type createEscrowRequest struct {
	ServiceType       string          `json:"service_type"`
	ServiceTypeID     *uuid.UUID      `json:"service_type_id,omitempty"`
	Amount            string          `json:"amount"`
	Currency          string          `json:"currency"`
	Counterparty      domain.OwnerRef `json:"counterparty"`
	CounterpartyEmail string          `json:"counterparty_email"`
	CounterpartyOrgID *uuid.UUID      `json:"counterparty_org_id,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	ExpiresAt         *time.Time      `json:"expires_at,omitempty"`
	Draft             bool            `json:"draft"`
}

// CreateEscrow handles POST /v1/escrows.
func (h *EscrowHandler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req createEscrowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		writeServiceError(w, r, "create escrow", err)
		return
	}

	in := service.CreateEscrowInput{
		ServiceTypeCode:   req.ServiceType,
		Amount:            amount,
		Currency:          req.Currency,
		Counterparty:      req.Counterparty,
		CounterpartyEmail: req.CounterpartyEmail,
		CounterpartyOrgID: req.CounterpartyOrgID,
		Metadata:          req.Metadata,
		ExpiresAt:         req.ExpiresAt,
		Draft:             req.Draft,
	}
	if req.ServiceTypeID != nil {
		in.ServiceTypeID = *req.ServiceTypeID
	}

	esc, err := h.svc.CreateEscrow(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, "create escrow", err)
		return
	}
	RespondJSON(w, http.StatusCreated, newEscrowResponse(esc))
}

// ListEscrows handles GET /v1/escrows for the acting identity.
func (h *EscrowHandler) ListEscrows(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	escrows, err := h.svc.ListEscrowsForActor(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, r, "list escrows", err)
		return
	}
	items := make([]escrowResponse, 0, len(escrows))
	for i := range escrows {
		items = append(items, newEscrowResponse(&escrows[i]))
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"count":  len(items),
	})
}

// GetEscrow handles GET /v1/escrows/{id}.
func (h *EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	escrowID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	esc, err := h.svc.GetEscrow(r.Context(), actor, escrowID)
	if err != nil {
		writeServiceError(w, r, "get escrow", err)
		return
	}
	RespondJSON(w, http.StatusOK, newEscrowResponse(esc))
}

// ListEvents handles GET /v1/escrows/{id}/events.
func (h *EscrowHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	escrowID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	events, err := h.svc.ListEscrowEvents(r.Context(), actor, escrowID)
	if err != nil {
		writeServiceError(w, r, "list escrow events", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"items": events, "count": len(events)})
}

func (h *EscrowHandler) Post(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "post escrow", h.svc.PostEscrow)
}

func (h *EscrowHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "accept escrow", h.svc.AcceptEscrow)
}

func (h *EscrowHandler) Fund(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "fund escrow", h.svc.FundEscrow)
}

func (h *EscrowHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "confirm escrow", h.svc.ConfirmEscrow)
}

func (h *EscrowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.actWithReason(w, r, "cancel escrow", h.svc.CancelEscrow)
}

func (h *EscrowHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	h.actWithReason(w, r, "dispute escrow", h.svc.DisputeEscrow)
}

type escrowAction func(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) (*models.Escrow, error)

func (h *EscrowHandler) act(w http.ResponseWriter, r *http.Request, op string, fn escrowAction) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	escrowID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	esc, err := fn(r.Context(), actor, escrowID)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	RespondJSON(w, http.StatusOK, newEscrowResponse(esc))
}

func (h *EscrowHandler) actWithReason(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, domain.Actor, uuid.UUID, string) (*models.Escrow, error)) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	h.act(w, r, op, func(ctx context.Context, actor domain.Actor, escrowID uuid.UUID) (*models.Escrow, error) {
		return fn(ctx, actor, escrowID, req.Reason)
	})
}
