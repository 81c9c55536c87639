package handler

import (
	"net/http"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/models"
	"github.com/ayo6706/escrow-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ServiceTypeHandler struct {
	catalog *service.ServiceTypeCatalog
}

func NewServiceTypeHandler(catalog *service.ServiceTypeCatalog) *ServiceTypeHandler {
	return &ServiceTypeHandler{catalog: catalog}
}

type serviceTypeResponse struct {
	models.ServiceType
	DefaultExpiryHours int64 `json:"default_expiry_hours"`
}

func newServiceTypeResponse(st models.ServiceType) serviceTypeResponse {
	return serviceTypeResponse{ServiceType: st, DefaultExpiryHours: int64(st.DefaultExpiry / time.Hour)}
}

// List handles GET /v1/service-types.
func (h *ServiceTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	types, err := h.catalog.List(r.Context())
	if err != nil {
		writeServiceError(w, r, "list service types", err)
		return
	}
	items := make([]serviceTypeResponse, 0, len(types))
	for _, st := range types {
		items = append(items, newServiceTypeResponse(st))
	}
	RespondJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type upsertServiceTypeRequest struct {
	Name                       string          `json:"name"`
	PlatformFeePercent         decimal.Decimal `json:"platform_fee_percent"`
	RequiresPartyAConfirmation bool            `json:"requires_party_a_confirmation"`
	RequiresPartyBConfirmation bool            `json:"requires_party_b_confirmation"`
	DefaultExpiryHours         int64           `json:"default_expiry_hours"`
}

// Upsert handles PUT /v1/service-types/{code} (admin only).
func (h *ServiceTypeHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertServiceTypeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := h.catalog.Upsert(r.Context(), service.UpsertServiceTypeInput{
		Code:                       chi.URLParam(r, "code"),
		Name:                       req.Name,
		PlatformFeePercent:         req.PlatformFeePercent,
		RequiresPartyAConfirmation: req.RequiresPartyAConfirmation,
		RequiresPartyBConfirmation: req.RequiresPartyBConfirmation,
		DefaultExpiry:              time.Duration(req.DefaultExpiryHours) * time.Hour,
	})
	if err != nil {
		writeServiceError(w, r, "upsert service type", err)
		return
	}
	RespondJSON(w, http.StatusOK, newServiceTypeResponse(*st))
}
