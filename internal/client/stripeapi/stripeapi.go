package stripeapi

import (
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// Service wraps the Stripe API client for the two roles the application
// needs: verifying and flattening webhook payloads, and the handful of
// outbound calls the action facade and the router's enrichment fetches make.
// Method implementations for specific resources live in separate files within
// this package (webhook.go, customer.go, subscription.go, invoice.go,
// checkout.go).
type Service struct {
	client        *stripe.Client
	webhookSecret string
	logger        *zap.Logger
}

func New(apiKey, webhookSecret string, logger *zap.Logger) *Service {
	return &Service{
		client:        stripe.NewClient(apiKey, nil),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// WebhookConfigured reports whether a webhook signing secret was provided.
// Without one, signatures cannot be verified and the webhook endpoint must
// refuse to process deliveries.
func (s *Service) WebhookConfigured() bool {
	return s.webhookSecret != ""
}

// Customer is the slice of a provider customer the application uses.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// Subscription is the slice of a provider subscription the application uses.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	CancelAtPeriodEnd bool
	Quantity          int64
	PriceID           string
	CurrentPeriodEnd  int64
	Metadata          map[string]string
}

// CheckoutSession is a provider-hosted checkout page reference.
type CheckoutSession struct {
	ID         string
	URL        string
	Mode       string
	Status     string
	CustomerID string
}

// PortalSession is a provider-hosted billing portal page reference.
type PortalSession struct {
	ID  string
	URL string
}

func mapSubscription(sub *stripe.Subscription) Subscription {
	out := Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Quantity:          1,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		if item.Quantity > 0 {
			out.Quantity = item.Quantity
		}
		out.CurrentPeriodEnd = item.CurrentPeriodEnd
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	return out
}
