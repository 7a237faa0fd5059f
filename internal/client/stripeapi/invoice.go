package stripeapi

import (
	"context"
	"encoding/json"
	"fmt"

	"billing-mirror/internal/sync"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// GetInvoice retrieves an invoice and flattens it. The typed SDK struct no
// longer exposes the invoice's subscription linkage, so that field is decoded
// from the raw response body.
func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (sync.InvoiceFields, error) {
	inv, err := s.client.V1Invoices.Retrieve(ctx, invoiceID, &stripe.InvoiceRetrieveParams{})
	if err != nil {
		return sync.InvoiceFields{}, fmt.Errorf("stripeapi.GetInvoice: %w", err)
	}

	fields := mapInvoice(inv)
	if inv.LastResponse != nil && len(inv.LastResponse.RawJSON) > 0 {
		var p invoicePayload
		if err := json.Unmarshal(inv.LastResponse.RawJSON, &p); err != nil {
			s.logger.Warn("Failed to decode raw invoice body for subscription linkage",
				zap.String("provider_invoice_id", invoiceID),
				zap.Error(err))
		} else {
			fields.ProviderSubscriptionID = p.subscriptionID()
		}
	}
	return fields, nil
}

// GetLatestInvoiceForSubscription retrieves the subscription's latest invoice
// in one call by expanding it on the subscription. The subscription linkage
// on the result is the queried subscription itself.
func (s *Service) GetLatestInvoiceForSubscription(ctx context.Context, subscriptionID string) (sync.InvoiceFields, error) {
	params := &stripe.SubscriptionRetrieveParams{}
	params.AddExpand("latest_invoice")

	sub, err := s.client.V1Subscriptions.Retrieve(ctx, subscriptionID, params)
	if err != nil {
		return sync.InvoiceFields{}, fmt.Errorf("stripeapi.GetLatestInvoiceForSubscription: %w", err)
	}
	if sub.LatestInvoice == nil {
		return sync.InvoiceFields{}, fmt.Errorf("stripeapi.GetLatestInvoiceForSubscription: subscription %s has no invoice", subscriptionID)
	}

	fields := mapInvoice(sub.LatestInvoice)
	fields.ProviderSubscriptionID = subscriptionID
	return fields, nil
}

func mapInvoice(inv *stripe.Invoice) sync.InvoiceFields {
	fields := sync.InvoiceFields{
		ProviderInvoiceID: inv.ID,
		Status:            string(inv.Status),
		AmountDue:         inv.AmountDue,
		AmountPaid:        inv.AmountPaid,
		Created:           inv.Created,
	}
	if inv.Customer != nil {
		fields.ProviderCustomerID = inv.Customer.ID
	}
	return fields
}
