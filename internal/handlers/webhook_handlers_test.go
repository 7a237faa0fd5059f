package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"billing-mirror/internal/client/stripeapi"
	"billing-mirror/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

type fakeDispatcher struct {
	events []sync.Event
	err    error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, evt sync.Event) error {
	d.events = append(d.events, evt)
	return d.err
}

func newWebhookRig(secret string) (*gin.Engine, *fakeDispatcher) {
	gin.SetMode(gin.TestMode)

	parser := stripeapi.New("sk_test_123", secret, zap.NewNop())
	dispatcher := &fakeDispatcher{}
	handler := NewWebhookHandler(parser, dispatcher)

	router := gin.New()
	router.POST("/stripe/webhook", handler.HandleWebhook)
	return router, dispatcher
}

func signedRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestHandleWebhookDispatchesVerifiedEvent(t *testing.T) {
	router, dispatcher := newWebhookRig(testWebhookSecret)

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "customer.created",
		"data": {"object": {"id": "cus_123", "email": "jane@example.com", "name": "Jane"}}
	}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())

	require.Len(t, dispatcher.events, 1)
	evt := dispatcher.events[0]
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, sync.EventCustomerCreated, evt.Type)
	data, ok := evt.Data.(sync.CustomerEvent)
	require.True(t, ok)
	assert.Equal(t, "cus_123", data.ID)
	assert.Equal(t, "jane@example.com", data.Email)
}

func TestHandleWebhookFlattensInvoiceSubscriptionLinkage(t *testing.T) {
	router, dispatcher := newWebhookRig(testWebhookSecret)

	payload := []byte(`{
		"id": "evt_2",
		"object": "event",
		"type": "invoice.paid",
		"data": {"object": {
			"id": "in_123",
			"customer": "cus_123",
			"parent": {"subscription_details": {"subscription": "sub_123"}},
			"status": "paid",
			"amount_due": 2500,
			"amount_paid": 2500,
			"created": 1735689600
		}}
	}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, dispatcher.events, 1)
	data, ok := dispatcher.events[0].Data.(sync.InvoiceEvent)
	require.True(t, ok)
	assert.Equal(t, "sub_123", data.SubscriptionID)
	assert.Equal(t, int64(2500), data.AmountPaid)
}

func TestHandleWebhookUnknownEventAccepted(t *testing.T) {
	router, dispatcher := newWebhookRig(testWebhookSecret)

	payload := []byte(`{
		"id": "evt_3",
		"object": "event",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_123"}}
	}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, dispatcher.events, 1)
	assert.Nil(t, dispatcher.events[0].Data)
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	router, dispatcher := newWebhookRig(testWebhookSecret)

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, dispatcher.events)
}

func TestHandleWebhookBadSignature(t *testing.T) {
	router, dispatcher := newWebhookRig(testWebhookSecret)

	payload := []byte(`{"id": "evt_1", "type": "customer.created", "data": {"object": {"id": "cus_123"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_wrong_secret",
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, dispatcher.events)
}

func TestHandleWebhookUnconfiguredSecret(t *testing.T) {
	router, dispatcher := newWebhookRig("")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, []byte(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, dispatcher.events)
}

func TestHandleWebhookDispatchFailure(t *testing.T) {
	router, dispatcher := newWebhookRig(testWebhookSecret)
	dispatcher.err = errors.New("store unavailable")

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "customer.created",
		"data": {"object": {"id": "cus_123"}}
	}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(t, payload))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
