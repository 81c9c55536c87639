package handler

import (
	"net/http"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/service"
)

type AccountHandler struct {
	ledger *service.LedgerService
}

func NewAccountHandler(ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// OpenAccount handles POST /v1/accounts. It returns the caller's account,
// creating it on first use.
func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Currency string `json:"currency"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	account, err := h.ledger.GetOrCreateAccount(r.Context(), actor.Owner(), req.Currency)
	if err != nil {
		writeServiceError(w, r, "open account", err)
		return
	}
	RespondJSON(w, http.StatusOK, newAccountResponse(account))
}

// GetAccount handles GET /v1/accounts/{id}.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, newAccountResponse(account))
}

// GetEntries handles GET /v1/accounts/{id}/entries, newest first.
func (h *AccountHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	entries, err := h.ledger.GetLedgerEntries(r.Context(), account.ID, limit, offset)
	if err != nil {
		writeServiceError(w, r, "list ledger entries", err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  newEntryResponses(entries),
		"limit":  limit,
		"offset": offset,
		"count":  len(entries),
	})
}

func (h *AccountHandler) authorizedAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	actor, ok := requestActor(w, r)
	if !ok {
		return nil, false
	}
	accountID, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	account, err := h.ledger.GetAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, "get account", err)
		return nil, false
	}
	if !actor.IsAdmin && !actor.Represents(account.Owner) {
		writeServiceError(w, r, "get account", domain.ErrPermissionDenied)
		return nil, false
	}
	return account, true
}
