package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"billing-mirror/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	getInvoiceFunc       func(ctx context.Context, id string) (InvoiceFields, error)
	getLatestInvoiceFunc func(ctx context.Context, id string) (InvoiceFields, error)
}

func (p *fakeProvider) GetInvoice(ctx context.Context, id string) (InvoiceFields, error) {
	if p.getInvoiceFunc != nil {
		return p.getInvoiceFunc(ctx, id)
	}
	return InvoiceFields{}, errors.New("not implemented")
}

func (p *fakeProvider) GetLatestInvoiceForSubscription(ctx context.Context, id string) (InvoiceFields, error) {
	if p.getLatestInvoiceFunc != nil {
		return p.getLatestInvoiceFunc(ctx, id)
	}
	return InvoiceFields{}, errors.New("not implemented")
}

func newTestRouter() (*Router, *fakeStore, *fakeProvider) {
	store := newFakeStore()
	provider := &fakeProvider{}
	logger := zap.NewNop()
	router := NewRouter(NewMirror(store, logger), store, provider, logger)
	return router, store, provider
}

// seedSubscription plants a subscription row with an explicit creation time,
// which the window guard tests need direct control over.
func seedSubscription(store *fakeStore, subID, custID string, createdAt time.Time) {
	store.subs[subID] = db.Subscription{
		ID:                     uuid.New(),
		ProviderSubscriptionID: subID,
		ProviderCustomerID:     custID,
		Status:                 "active",
		CreatedAt:              pgtype.Timestamptz{Time: createdAt, Valid: true},
	}
}

func TestDispatchCustomerCreated(t *testing.T) {
	router, store, _ := newTestRouter()

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventCustomerCreated,
		Data: CustomerEvent{ID: "cus_123", Email: "jane@example.com", Name: "Jane"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", store.customers["cus_123"].Email.String)
}

func TestDispatchPayloadTypeMismatch(t *testing.T) {
	router, _, _ := newTestRouter()

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventCustomerCreated,
		Data: InvoiceEvent{ID: "in_123"},
	})
	require.Error(t, err)
}

func TestDispatchSubscriptionCreatedLineItemDefaults(t *testing.T) {
	router, store, _ := newTestRouter()

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventSubscriptionCreated,
		Data: SubscriptionEvent{
			ID:         "sub_123",
			CustomerID: "cus_123",
			Status:     "active",
		},
	})
	require.NoError(t, err)

	sub := store.subs["sub_123"]
	assert.Equal(t, int64(1), sub.Quantity)
	assert.False(t, sub.CurrentPeriodEnd.Valid)
	assert.Empty(t, sub.PriceID)
}

func TestDispatchSubscriptionLifecycle(t *testing.T) {
	router, store, _ := newTestRouter()
	ctx := context.Background()

	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_1",
		Type: EventSubscriptionCreated,
		Data: SubscriptionEvent{
			ID:         "sub_123",
			CustomerID: "cus_123",
			Status:     "trialing",
			Items: []SubscriptionLineItem{
				{PriceID: "price_abc", Quantity: 2, CurrentPeriodEnd: 1735689600},
			},
			Metadata: map[string]string{"orgId": "org_1"},
		},
	}))
	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_2",
		Type: EventSubscriptionUpdated,
		Data: SubscriptionEvent{
			ID:         "sub_123",
			CustomerID: "cus_123",
			Status:     "active",
			Items: []SubscriptionLineItem{
				{PriceID: "price_abc", Quantity: 2, CurrentPeriodEnd: 1738368000},
			},
		},
	}))
	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_3",
		Type: EventSubscriptionDeleted,
		Data: SubscriptionEvent{ID: "sub_123"},
	}))

	sub := store.subs["sub_123"]
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, int64(1738368000), sub.CurrentPeriodEnd.Time.Unix())
	// Linkage extracted at create survives updates that dropped metadata.
	assert.Equal(t, "org_1", sub.OrgID.String)
}

func TestDispatchCheckoutPaymentModeBackfills(t *testing.T) {
	router, store, _ := newTestRouter()
	ctx := context.Background()

	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_1",
		Type: EventPaymentIntentSucceeded,
		Data: PaymentIntentEvent{ID: "pi_123", Amount: 5000, Currency: "usd", Status: "succeeded"},
	}))
	require.False(t, store.payments["pi_123"].ProviderCustomerID.Valid)

	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_2",
		Type: EventCheckoutSessionDone,
		Data: CheckoutSessionEvent{
			ID:              "cs_123",
			CustomerID:      "cus_123",
			PaymentIntentID: "pi_123",
			Mode:            CheckoutModePayment,
			Status:          "complete",
		},
	}))

	assert.Equal(t, "complete", store.sessions["cs_123"].Status)
	assert.Equal(t, "cus_123", store.payments["pi_123"].ProviderCustomerID.String)
}

func TestDispatchCheckoutSubscriptionModeMirrorsLatestInvoice(t *testing.T) {
	router, store, provider := newTestRouter()

	provider.getLatestInvoiceFunc = func(_ context.Context, subID string) (InvoiceFields, error) {
		require.Equal(t, "sub_123", subID)
		return InvoiceFields{
			ProviderInvoiceID:      "in_123",
			ProviderCustomerID:     "cus_123",
			ProviderSubscriptionID: "sub_123",
			Status:                 "paid",
			AmountDue:              2500,
			AmountPaid:             2500,
		}, nil
	}

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventCheckoutSessionDone,
		Data: CheckoutSessionEvent{
			ID:             "cs_123",
			CustomerID:     "cus_123",
			SubscriptionID: "sub_123",
			Mode:           CheckoutModeSubscription,
			Status:         "complete",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", store.invoices["in_123"].Status)
}

func TestDispatchCheckoutSubscriptionModeEnrichmentBestEffort(t *testing.T) {
	router, store, provider := newTestRouter()

	provider.getLatestInvoiceFunc = func(context.Context, string) (InvoiceFields, error) {
		return InvoiceFields{}, errors.New("provider unavailable")
	}

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventCheckoutSessionDone,
		Data: CheckoutSessionEvent{
			ID:             "cs_123",
			SubscriptionID: "sub_123",
			Mode:           CheckoutModeSubscription,
			Status:         "complete",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, store.sessions, "cs_123")
	assert.Empty(t, store.invoices)
}

func TestDispatchInvoiceLifecycle(t *testing.T) {
	router, store, _ := newTestRouter()
	ctx := context.Background()

	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_1",
		Type: EventInvoiceCreated,
		Data: InvoiceEvent{ID: "in_123", CustomerID: "cus_123", Status: "draft", AmountDue: 2500},
	}))
	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_2",
		Type: EventInvoicePaymentFailed,
		Data: InvoiceEvent{ID: "in_123", CustomerID: "cus_123", Status: "open", AmountDue: 2500},
	}))
	assert.Equal(t, "open", store.invoices["in_123"].Status)

	require.NoError(t, router.Dispatch(ctx, Event{
		ID:   "evt_3",
		Type: EventInvoicePaid,
		Data: InvoiceEvent{ID: "in_123", CustomerID: "cus_123", Status: "paid", AmountDue: 2500, AmountPaid: 2500},
	}))
	assert.Equal(t, "paid", store.invoices["in_123"].Status)
	assert.Equal(t, int64(2500), store.invoices["in_123"].AmountPaid)
}

func TestPaymentIntentSkippedForSubscriptionInvoiceLocal(t *testing.T) {
	router, store, _ := newTestRouter()

	store.invoices["in_123"] = db.Invoice{
		ProviderInvoiceID:      "in_123",
		ProviderSubscriptionID: pgtype.Text{String: "sub_123", Valid: true},
	}

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventPaymentIntentSucceeded,
		Data: PaymentIntentEvent{ID: "pi_123", InvoiceID: "in_123", Amount: 2500, Currency: "usd", Status: "succeeded"},
	})
	require.NoError(t, err)
	assert.Empty(t, store.payments)
}

func TestPaymentIntentSkippedForSubscriptionInvoiceRemote(t *testing.T) {
	router, store, provider := newTestRouter()

	provider.getInvoiceFunc = func(_ context.Context, id string) (InvoiceFields, error) {
		require.Equal(t, "in_123", id)
		return InvoiceFields{ProviderInvoiceID: "in_123", ProviderSubscriptionID: "sub_123"}, nil
	}

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventPaymentIntentSucceeded,
		Data: PaymentIntentEvent{ID: "pi_123", InvoiceID: "in_123", Amount: 2500, Currency: "usd", Status: "succeeded"},
	})
	require.NoError(t, err)
	assert.Empty(t, store.payments)
}

func TestPaymentIntentRecordedWhenInvoiceLookupFails(t *testing.T) {
	router, store, provider := newTestRouter()

	// Both lookups come up empty-handed; the conservative branch records the
	// payment rather than dropping money movement on a guess.
	provider.getInvoiceFunc = func(context.Context, string) (InvoiceFields, error) {
		return InvoiceFields{}, errors.New("provider unavailable")
	}

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventPaymentIntentSucceeded,
		Data: PaymentIntentEvent{ID: "pi_123", InvoiceID: "in_unseen", Amount: 2500, Currency: "usd", Status: "succeeded"},
	})
	require.NoError(t, err)
	assert.Contains(t, store.payments, "pi_123")
}

func TestPaymentIntentRecentSubscriptionWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		subCreated time.Time
		recorded   bool
	}{
		{"inside window", now.Add(-5 * time.Minute), false},
		{"just inside window", now.Add(-DefaultRecentSubscriptionWindow + time.Second), false},
		{"outside window", now.Add(-DefaultRecentSubscriptionWindow - time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, store, _ := newTestRouter()
			router.Now = func() time.Time { return now }
			seedSubscription(store, "sub_123", "cus_123", tt.subCreated)

			err := router.Dispatch(context.Background(), Event{
				ID:   "evt_1",
				Type: EventPaymentIntentSucceeded,
				Data: PaymentIntentEvent{ID: "pi_123", CustomerID: "cus_123", Amount: 2500, Currency: "usd", Status: "succeeded"},
			})
			require.NoError(t, err)
			if tt.recorded {
				assert.Contains(t, store.payments, "pi_123")
			} else {
				assert.Empty(t, store.payments)
			}
		})
	}
}

func TestPaymentIntentWindowIgnoresOtherCustomers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	router, store, _ := newTestRouter()
	router.Now = func() time.Time { return now }
	seedSubscription(store, "sub_999", "cus_other", now.Add(-time.Minute))

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventPaymentIntentSucceeded,
		Data: PaymentIntentEvent{ID: "pi_123", CustomerID: "cus_123", Amount: 2500, Currency: "usd", Status: "succeeded"},
	})
	require.NoError(t, err)
	assert.Contains(t, store.payments, "pi_123")
}

func TestDispatchUnknownEventIgnored(t *testing.T) {
	router, store, _ := newTestRouter()

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: "charge.refunded",
		Data: nil,
	})
	require.NoError(t, err)
	assert.Empty(t, store.customers)
	assert.Empty(t, store.payments)
}

func TestDispatchHooksRunAfterProcessing(t *testing.T) {
	router, store, _ := newTestRouter()

	var order []string
	router.OnEvent = func(_ context.Context, evt Event) error {
		// Default processing already ran by the time the hook fires.
		assert.Contains(t, store.customers, "cus_123")
		order = append(order, "generic")
		return nil
	}
	router.RegisterHook(EventCustomerCreated, func(context.Context, Event) error {
		order = append(order, EventCustomerCreated)
		return nil
	})

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventCustomerCreated,
		Data: CustomerEvent{ID: "cus_123"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"generic", EventCustomerCreated}, order)
}

func TestDispatchHookErrorPropagates(t *testing.T) {
	router, _, _ := newTestRouter()

	hookErr := errors.New("downstream rejected event")
	router.RegisterHook(EventCustomerCreated, func(context.Context, Event) error {
		return hookErr
	})

	err := router.Dispatch(context.Background(), Event{
		ID:   "evt_1",
		Type: EventCustomerCreated,
		Data: CustomerEvent{ID: "cus_123"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, hookErr)
}
