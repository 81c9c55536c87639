package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/escrow-ledger/internal/service"
	"go.uber.org/zap"
)

const (
	maxWebhookBody  = 1 << 20
	signatureHeader = "X-Webhook-Signature"
)

// WebhookHandler receives deposit notifications from the payment provider.
// It is unauthenticated; the HMAC signature is the only proof of origin.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// HandleDepositWebhook handles POST /v1/webhooks/deposits. The signature is
// computed over the raw body, so the body is read before any decoding.
func (h *WebhookHandler) HandleDepositWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, r, http.StatusRequestEntityTooLarge, "webhook/payload-too-large", "webhook payload exceeds 1MB")
			return
		}
		zap.L().Warn("read deposit webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	resp, err := h.webhookSvc.HandleDepositWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		writeServiceError(w, r, "process deposit webhook", err)
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}
