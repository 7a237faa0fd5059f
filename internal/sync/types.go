package sync

import "encoding/json"

// Event types dispatched by the Router. Anything else is accepted and
// ignored so new provider event types never fail the webhook.
const (
	EventCustomerCreated        = "customer.created"
	EventCustomerUpdated        = "customer.updated"
	EventSubscriptionCreated    = "customer.subscription.created"
	EventSubscriptionUpdated    = "customer.subscription.updated"
	EventSubscriptionDeleted    = "customer.subscription.deleted"
	EventCheckoutSessionDone    = "checkout.session.completed"
	EventInvoiceCreated         = "invoice.created"
	EventInvoiceFinalized       = "invoice.finalized"
	EventInvoicePaid            = "invoice.paid"
	EventInvoicePaymentDone     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed   = "invoice.payment_failed"
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
)

// Metadata keys carrying the application-level linkage fields.
const (
	MetadataOrgIDKey  = "orgId"
	MetadataUserIDKey = "userId"
)

// Checkout session modes.
const (
	CheckoutModePayment      = "payment"
	CheckoutModeSubscription = "subscription"
)

// Event is a verified, parsed provider event. Data holds one of the flat
// payload structs below for known event types, or nil for unknown ones;
// Raw is the original payload object for hooks that want it.
type Event struct {
	ID   string
	Type string
	Data any
	Raw  json.RawMessage
}

// CustomerEvent is the flat payload of customer.* events.
type CustomerEvent struct {
	ID       string
	Email    string
	Name     string
	Metadata map[string]string
}

// SubscriptionLineItem carries the per-item fields the provider nests under
// items.data rather than the subscription root.
type SubscriptionLineItem struct {
	PriceID          string
	Quantity         int64
	CurrentPeriodEnd int64
}

// SubscriptionEvent is the flat payload of customer.subscription.* events.
type SubscriptionEvent struct {
	ID                string
	CustomerID        string
	Status            string
	CancelAtPeriodEnd bool
	Items             []SubscriptionLineItem
	Metadata          map[string]string
}

// InvoiceEvent is the flat payload of invoice.* events.
type InvoiceEvent struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Status         string
	AmountDue      int64
	AmountPaid     int64
	Created        int64
}

// PaymentIntentEvent is the flat payload of payment_intent.* events.
type PaymentIntentEvent struct {
	ID         string
	CustomerID string
	InvoiceID  string
	Status     string
	Amount     int64
	Currency   string
	Created    int64
	Metadata   map[string]string
}

// CheckoutSessionEvent is the flat payload of checkout.session.* events.
type CheckoutSessionEvent struct {
	ID              string
	CustomerID      string
	PaymentIntentID string
	SubscriptionID  string
	Mode            string
	Status          string
}

// CustomerFields is the upsert input for a mirrored customer. Empty Email and
// Name mean absent, never empty string.
type CustomerFields struct {
	ProviderCustomerID string
	Email              string
	Name               string
	Metadata           map[string]string
}

// SubscriptionFields is the insert input for a mirrored subscription. The
// linkage fields are extracted from Metadata at creation time only.
type SubscriptionFields struct {
	ProviderSubscriptionID string
	ProviderCustomerID     string
	Status                 string
	CurrentPeriodEnd       int64
	CancelAtPeriodEnd      bool
	Quantity               int64
	PriceID                string
	Metadata               map[string]string
}

// SubscriptionPatch is the partial-update input for a mirrored subscription.
// A nil field leaves the stored value untouched; Metadata being present also
// refreshes the linkage fields it carries.
type SubscriptionPatch struct {
	ProviderSubscriptionID string
	ProviderCustomerID     *string
	Status                 *string
	CurrentPeriodEnd       *int64
	CancelAtPeriodEnd      *bool
	Quantity               *int64
	PriceID                *string
	Metadata               map[string]string
}

// PaymentFields is the upsert input for a mirrored one-time payment.
// ProviderCustomerID may be empty at creation and is back-filled later.
type PaymentFields struct {
	ProviderPaymentIntentID string
	ProviderCustomerID      string
	Amount                  int64
	Currency                string
	Status                  string
	Created                 int64
	Metadata                map[string]string
}

// InvoiceFields is the insert input for a mirrored invoice.
type InvoiceFields struct {
	ProviderInvoiceID      string
	ProviderCustomerID     string
	ProviderSubscriptionID string
	Status                 string
	AmountDue              int64
	AmountPaid             int64
	Created                int64
}

// CheckoutSessionFields is the upsert input for a checkout session record.
type CheckoutSessionFields struct {
	ProviderSessionID       string
	ProviderCustomerID      string
	ProviderPaymentIntentID string
	ProviderSubscriptionID  string
	Mode                    string
	Status                  string
}
