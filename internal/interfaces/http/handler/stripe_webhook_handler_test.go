package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func signedEvent(t *testing.T, secret, eventType string, object map[string]any) *webhook.SignedPayload {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     "evt_handler_1",
		"object": "event",
		"type":   eventType,
		"data":   map[string]any{"object": object},
	})
	require.NoError(t, err)
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
}

func TestStripeWebhookHandler_AppliesEvent(t *testing.T) {
	f := newAPIFixture(t)
	license := f.license(t, licensing.PlanFree)
	signed := signedEvent(t, testWebhookSecret, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": license.Key,
		"customer":            "cus_1",
		"subscription":        "sub_1",
		"metadata":            map[string]any{"plan": "agency"},
	})

	w := testutil.PerformRequest(t, f.router, http.MethodPost, "/api/v1/webhooks/stripe", signed.Payload,
		map[string]string{"Stripe-Signature": signed.Header})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp StripeWebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.True(t, resp.Processed)
	assert.Equal(t, "checkout.session.completed", resp.EventType)

	got, err := f.licenses.FindByKey(context.Background(), license.Key)
	require.NoError(t, err)
	assert.Equal(t, licensing.PlanAgency, got.Plan)
}

func TestStripeWebhookHandler_Rejections(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("bad signature", func(t *testing.T) {
		signed := signedEvent(t, "whsec_other", "invoice.paid", map[string]any{"id": "in_1", "object": "invoice"})
		w := testutil.PerformRequest(t, f.router, http.MethodPost, "/api/v1/webhooks/stripe", signed.Payload,
			map[string]string{"Stripe-Signature": signed.Header})
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "INVALID_SIGNATURE")
	})

	t.Run("missing signature", func(t *testing.T) {
		w := testutil.PerformRequest(t, f.router, http.MethodPost, "/api/v1/webhooks/stripe", []byte(`{}`), nil)
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "INVALID_SIGNATURE")
	})

	t.Run("payload too large", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), maxWebhookPayloadSize+1)
		w := testutil.PerformRequest(t, f.router, http.MethodPost, "/api/v1/webhooks/stripe", big,
			map[string]string{"Stripe-Signature": "t=1,v1=x"})
		testutil.AssertErrorResponse(t, w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE")
	})
}
