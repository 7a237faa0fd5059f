package stripeapi

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// CheckoutParams describes the hosted checkout page to create.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	Quantity   int64
	Mode       string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CreateCheckoutSession creates a provider-hosted checkout page. The metadata
// bag lands on the resulting subscription or payment intent so the webhook
// path can extract linkage fields later.
func (s *Service) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	quantity := p.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	params := &stripe.CheckoutSessionCreateParams{
		Customer:   stripe.String(p.CustomerID),
		Mode:       stripe.String(p.Mode),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
	}
	switch p.Mode {
	case "subscription":
		params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: p.Metadata,
		}
	case "payment":
		params.PaymentIntentData = &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: p.Metadata,
		}
	}

	sess, err := s.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripeapi.CreateCheckoutSession: %w", err)
	}

	out := CheckoutSession{
		ID:     sess.ID,
		URL:    sess.URL,
		Mode:   string(sess.Mode),
		Status: string(sess.Status),
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}

	s.logger.Info("Created checkout session",
		zap.String("provider_session_id", sess.ID),
		zap.String("mode", p.Mode),
		zap.String("provider_customer_id", p.CustomerID))
	return out, nil
}

// CreatePortalSession creates a provider-hosted billing portal page for the
// customer.
func (s *Service) CreatePortalSession(ctx context.Context, customerID, returnURL string) (PortalSession, error) {
	params := &stripe.BillingPortalSessionCreateParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}

	sess, err := s.client.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		return PortalSession{}, fmt.Errorf("stripeapi.CreatePortalSession: %w", err)
	}

	s.logger.Info("Created billing portal session",
		zap.String("provider_customer_id", customerID))
	return PortalSession{ID: sess.ID, URL: sess.URL}, nil
}
