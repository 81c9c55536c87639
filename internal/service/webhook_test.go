package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/ayo6706/escrow-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func depositBody(t *testing.T, payload DepositWebhookPayload) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestHandleDepositWebhookCreditsAccount(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.ledger, "secret", false)
	ctx := context.Background()
	ownerID := uuid.New()

	body := depositBody(t, DepositWebhookPayload{
		OwnerType: domain.OwnerTypeUser,
		OwnerID:   ownerID.String(),
		Amount:    "200.00",
		Currency:  "usd",
		Provider:  "Stripe",
		Reference: "evt_100",
	})

	resp, err := svc.HandleDepositWebhook(ctx, body, signPayload("secret", body))
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, "200.00", resp.Amount)

	available, _ := env.balances(t, domain.UserOwner(ownerID))
	assert.Equal(t, int64(20_000), available)

	again, err := svc.HandleDepositWebhook(ctx, body, signPayload("secret", body))
	require.NoError(t, err)
	assert.Equal(t, resp.EntryID, again.EntryID)
	assert.Equal(t, "Deposit already processed", again.Message)

	available, _ = env.balances(t, domain.UserOwner(ownerID))
	assert.Equal(t, int64(20_000), available, "redelivery must not credit twice")
}

func TestHandleDepositWebhookRejectsMismatchedRedelivery(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.ledger, "", true)
	ctx := context.Background()
	payload := DepositWebhookPayload{
		OwnerType: domain.OwnerTypeOrganization,
		OwnerID:   uuid.NewString(),
		Amount:    "10.00",
		Reference: "evt_200",
	}

	_, err := svc.HandleDepositWebhook(ctx, depositBody(t, payload), "")
	require.NoError(t, err)

	payload.Amount = "11.00"
	_, err = svc.HandleDepositWebhook(ctx, depositBody(t, payload), "")
	assert.ErrorIs(t, err, ErrDepositPayloadMismatch)
}

func TestHandleDepositWebhookRejectsRedeliveryForAnotherOwner(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.ledger, "", true)
	ctx := context.Background()
	original := uuid.New()
	payload := DepositWebhookPayload{
		OwnerType: domain.OwnerTypeUser,
		OwnerID:   original.String(),
		Amount:    "10.00",
		Reference: "evt_300",
	}

	_, err := svc.HandleDepositWebhook(ctx, depositBody(t, payload), "")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(p *DepositWebhookPayload)
	}{
		{"other_user", func(p *DepositWebhookPayload) { p.OwnerID = uuid.NewString() }},
		{"same_id_as_organization", func(p *DepositWebhookPayload) { p.OwnerType = domain.OwnerTypeOrganization }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			redelivery := payload
			tc.mutate(&redelivery)
			_, err := svc.HandleDepositWebhook(ctx, depositBody(t, redelivery), "")
			assert.ErrorIs(t, err, ErrDepositPayloadMismatch)
		})
	}

	available, _ := env.balances(t, domain.UserOwner(original))
	assert.Equal(t, int64(1_000), available)
}

func TestHandleDepositWebhookValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.ledger, "secret", false)
	ctx := context.Background()
	valid := DepositWebhookPayload{
		OwnerType: domain.OwnerTypeUser,
		OwnerID:   uuid.NewString(),
		Amount:    "1.00",
		Reference: "evt_300",
	}

	cases := []struct {
		name   string
		mutate func(p *DepositWebhookPayload)
		want   error
	}{
		{name: "zero_amount", mutate: func(p *DepositWebhookPayload) { p.Amount = "0" }, want: domain.ErrInvalidAmount},
		{name: "sub_cent_amount", mutate: func(p *DepositWebhookPayload) { p.Amount = "1.001" }, want: domain.ErrInvalidAmount},
		{name: "currency", mutate: func(p *DepositWebhookPayload) { p.Currency = "GBP" }, want: domain.ErrUnsupportedCurrency},
		{name: "owner_type", mutate: func(p *DepositWebhookPayload) { p.OwnerType = "robot" }, want: domain.ErrInvalidOwner},
		{name: "owner_id", mutate: func(p *DepositWebhookPayload) { p.OwnerID = "nope" }, want: domain.ErrInvalidOwner},
		{name: "reference", mutate: func(p *DepositWebhookPayload) { p.Reference = " " }, want: domain.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := valid
			tc.mutate(&payload)
			body := depositBody(t, payload)
			_, err := svc.HandleDepositWebhook(ctx, body, signPayload("secret", body))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"reference":"evt"}`)

	svc := NewWebhookService(nil, nil, "secret", false)
	assert.True(t, svc.verifyHMAC(body, signPayload("secret", body)))
	assert.False(t, svc.verifyHMAC(body, signPayload("other", body)))
	assert.False(t, svc.verifyHMAC(body, "sha256=deadbeef"))

	_, err := svc.HandleDepositWebhook(context.Background(), body, "bad")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	assert.False(t, NewWebhookService(nil, nil, "", false).verifyHMAC(body, ""))
	assert.True(t, NewWebhookService(nil, nil, "", true).verifyHMAC(body, ""))
}
