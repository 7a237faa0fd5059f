package sync

import (
	"context"
	"errors"

	"billing-mirror/internal/db"
)

// ErrNotFound is returned by the handlers that require a pre-existing record;
// every other handler treats a missing record as a no-op.
var ErrNotFound = errors.New("record not found")

// Store is the slice of db.Querier the sync core needs. *db.Queries satisfies
// it in production; tests use an in-memory fake.
type Store interface {
	GetCustomerByProviderID(ctx context.Context, providerCustomerID string) (db.Customer, error)
	InsertCustomer(ctx context.Context, arg db.InsertCustomerParams) error
	UpdateCustomerByProviderID(ctx context.Context, arg db.UpdateCustomerByProviderIDParams) error

	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (db.Subscription, error)
	InsertSubscription(ctx context.Context, arg db.InsertSubscriptionParams) error
	UpdateSubscriptionByProviderID(ctx context.Context, arg db.UpdateSubscriptionByProviderIDParams) error
	CancelSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) error
	CountRecentSubscriptionsByCustomer(ctx context.Context, arg db.CountRecentSubscriptionsByCustomerParams) (int64, error)

	GetPaymentByProviderID(ctx context.Context, providerPaymentIntentID string) (db.Payment, error)
	InsertPayment(ctx context.Context, arg db.InsertPaymentParams) error
	BackfillPaymentCustomer(ctx context.Context, arg db.BackfillPaymentCustomerParams) error

	GetInvoiceByProviderID(ctx context.Context, providerInvoiceID string) (db.Invoice, error)
	InsertInvoice(ctx context.Context, arg db.InsertInvoiceParams) error
	UpdateInvoiceStatusByProviderID(ctx context.Context, arg db.UpdateInvoiceStatusByProviderIDParams) error

	GetCheckoutSessionByProviderID(ctx context.Context, providerSessionID string) (db.CheckoutSession, error)
	InsertCheckoutSession(ctx context.Context, arg db.InsertCheckoutSessionParams) error
	UpdateCheckoutSessionByProviderID(ctx context.Context, arg db.UpdateCheckoutSessionByProviderIDParams) error
}

// Provider is the remote lookup surface the Router uses for its best-effort
// enrichment fetches during dispatch.
type Provider interface {
	GetInvoice(ctx context.Context, providerInvoiceID string) (InvoiceFields, error)
	GetLatestInvoiceForSubscription(ctx context.Context, providerSubscriptionID string) (InvoiceFields, error)
}
