package stripeapi

import (
	"encoding/json"
	"fmt"

	"billing-mirror/internal/sync"

	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// The SDK's typed structs no longer carry several fields present in webhook
// payloads (invoice "subscription", payment intent "invoice"), so payload
// objects are decoded with local structs straight from the raw JSON.

type customerPayload struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

type subscriptionItemPayload struct {
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
	Quantity         int64 `json:"quantity"`
	CurrentPeriodEnd int64 `json:"current_period_end"`
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	// Top-level current_period_end only appears on older API versions; newer
	// ones carry it per line item.
	CurrentPeriodEnd int64 `json:"current_period_end"`
	Items            struct {
		Data []subscriptionItemPayload `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Status     string `json:"status"`
	AmountDue  int64  `json:"amount_due"`
	AmountPaid int64  `json:"amount_paid"`
	Created    int64  `json:"created"`
}

func (p invoicePayload) subscriptionID() string {
	if p.Subscription != "" {
		return p.Subscription
	}
	if p.Parent != nil && p.Parent.SubscriptionDetails != nil {
		return p.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

type paymentIntentPayload struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Invoice  string            `json:"invoice"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

type checkoutSessionPayload struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	PaymentIntent string `json:"payment_intent"`
	Subscription  string `json:"subscription"`
	Mode          string `json:"mode"`
	Status        string `json:"status"`
}

// ParseEvent verifies the delivery signature and flattens the payload object
// into the routing event. Unknown event types verify fine and come back with
// a nil Data; the router ignores them.
func (s *Service) ParseEvent(payload []byte, signatureHeader string) (sync.Event, error) {
	// The dashboard-pinned API version routinely drifts from the SDK's; the
	// local payload structs only read fields stable across versions.
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return sync.Event{}, fmt.Errorf("stripeapi.ParseEvent: %w", err)
	}

	evt := sync.Event{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  event.Data.Raw,
	}

	switch evt.Type {
	case sync.EventCustomerCreated, sync.EventCustomerUpdated:
		var p customerPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return sync.Event{}, fmt.Errorf("stripeapi.ParseEvent: decode %s: %w", evt.Type, err)
		}
		evt.Data = sync.CustomerEvent{
			ID:       p.ID,
			Email:    p.Email,
			Name:     p.Name,
			Metadata: p.Metadata,
		}

	case sync.EventSubscriptionCreated, sync.EventSubscriptionUpdated, sync.EventSubscriptionDeleted:
		var p subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return sync.Event{}, fmt.Errorf("stripeapi.ParseEvent: decode %s: %w", evt.Type, err)
		}
		items := make([]sync.SubscriptionLineItem, 0, len(p.Items.Data))
		for _, item := range p.Items.Data {
			periodEnd := item.CurrentPeriodEnd
			if periodEnd == 0 {
				periodEnd = p.CurrentPeriodEnd
			}
			items = append(items, sync.SubscriptionLineItem{
				PriceID:          item.Price.ID,
				Quantity:         item.Quantity,
				CurrentPeriodEnd: periodEnd,
			})
		}
		evt.Data = sync.SubscriptionEvent{
			ID:                p.ID,
			CustomerID:        p.Customer,
			Status:            p.Status,
			CancelAtPeriodEnd: p.CancelAtPeriodEnd,
			Items:             items,
			Metadata:          p.Metadata,
		}

	case sync.EventInvoiceCreated, sync.EventInvoiceFinalized, sync.EventInvoicePaid,
		sync.EventInvoicePaymentDone, sync.EventInvoicePaymentFailed:
		var p invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return sync.Event{}, fmt.Errorf("stripeapi.ParseEvent: decode %s: %w", evt.Type, err)
		}
		evt.Data = sync.InvoiceEvent{
			ID:             p.ID,
			CustomerID:     p.Customer,
			SubscriptionID: p.subscriptionID(),
			Status:         p.Status,
			AmountDue:      p.AmountDue,
			AmountPaid:     p.AmountPaid,
			Created:        p.Created,
		}

	case sync.EventPaymentIntentSucceeded:
		var p paymentIntentPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return sync.Event{}, fmt.Errorf("stripeapi.ParseEvent: decode %s: %w", evt.Type, err)
		}
		evt.Data = sync.PaymentIntentEvent{
			ID:         p.ID,
			CustomerID: p.Customer,
			InvoiceID:  p.Invoice,
			Status:     p.Status,
			Amount:     p.Amount,
			Currency:   p.Currency,
			Created:    p.Created,
			Metadata:   p.Metadata,
		}

	case sync.EventCheckoutSessionDone:
		var p checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return sync.Event{}, fmt.Errorf("stripeapi.ParseEvent: decode %s: %w", evt.Type, err)
		}
		evt.Data = sync.CheckoutSessionEvent{
			ID:              p.ID,
			CustomerID:      p.Customer,
			PaymentIntentID: p.PaymentIntent,
			SubscriptionID:  p.Subscription,
			Mode:            p.Mode,
			Status:          p.Status,
		}

	default:
		s.logger.Debug("Verified event of unhandled type",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type))
	}

	return evt, nil
}
