package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the full query surface of the store. Handlers and the sync core
// depend on the narrow slices of this interface they actually use.
type Querier interface {
	GetCustomerByProviderID(ctx context.Context, providerCustomerID string) (Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (Customer, error)
	InsertCustomer(ctx context.Context, arg InsertCustomerParams) error
	UpdateCustomerByProviderID(ctx context.Context, arg UpdateCustomerByProviderIDParams) error

	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (Subscription, error)
	InsertSubscription(ctx context.Context, arg InsertSubscriptionParams) error
	UpdateSubscriptionByProviderID(ctx context.Context, arg UpdateSubscriptionByProviderIDParams) error
	CancelSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) error
	ListSubscriptionsByCustomer(ctx context.Context, providerCustomerID string) ([]Subscription, error)
	ListSubscriptionsByOrg(ctx context.Context, orgID pgtype.Text) ([]Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID pgtype.Text) ([]Subscription, error)
	CountRecentSubscriptionsByCustomer(ctx context.Context, arg CountRecentSubscriptionsByCustomerParams) (int64, error)

	GetPaymentByProviderID(ctx context.Context, providerPaymentIntentID string) (Payment, error)
	InsertPayment(ctx context.Context, arg InsertPaymentParams) error
	BackfillPaymentCustomer(ctx context.Context, arg BackfillPaymentCustomerParams) error
	ListPaymentsByCustomer(ctx context.Context, providerCustomerID pgtype.Text) ([]Payment, error)
	ListPaymentsByOrg(ctx context.Context, orgID pgtype.Text) ([]Payment, error)
	ListPaymentsByUser(ctx context.Context, userID pgtype.Text) ([]Payment, error)

	GetInvoiceByProviderID(ctx context.Context, providerInvoiceID string) (Invoice, error)
	InsertInvoice(ctx context.Context, arg InsertInvoiceParams) error
	UpdateInvoiceStatusByProviderID(ctx context.Context, arg UpdateInvoiceStatusByProviderIDParams) error
	ListInvoicesByCustomer(ctx context.Context, providerCustomerID string) ([]Invoice, error)
	ListInvoicesBySubscription(ctx context.Context, providerSubscriptionID pgtype.Text) ([]Invoice, error)
	ListInvoicesByOrg(ctx context.Context, orgID pgtype.Text) ([]Invoice, error)
	ListInvoicesByUser(ctx context.Context, userID pgtype.Text) ([]Invoice, error)

	GetCheckoutSessionByProviderID(ctx context.Context, providerSessionID string) (CheckoutSession, error)
	InsertCheckoutSession(ctx context.Context, arg InsertCheckoutSessionParams) error
	UpdateCheckoutSessionByProviderID(ctx context.Context, arg UpdateCheckoutSessionByProviderIDParams) error
}

var _ Querier = (*Queries)(nil)
