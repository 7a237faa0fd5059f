package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"billing-mirror/internal/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// DefaultRecentSubscriptionWindow is the trailing window in which a
// subscription creation suppresses a payment_intent.succeeded for the same
// customer. Checkout-driven subscription creation can race the payment-intent
// webhook for the same purchase; the window is a heuristic, tunable per
// Router, not a hard correctness bound.
const DefaultRecentSubscriptionWindow = 600 * time.Second

// EventHook is an extension point the embedding application supplies. Hook
// errors surface as webhook failures; the embedder owns that tradeoff.
type EventHook func(ctx context.Context, evt Event) error

// Router maps a verified event to the upsert handler(s) for its type,
// including the cross-entity decisions a declarative dispatch table cannot
// express (checkout side effects, the payment-intent double guard).
type Router struct {
	mirror   *Mirror
	store    Store
	provider Provider
	logger   *zap.Logger

	// RecentSubscriptionWindow tunes the payment-intent guard.
	RecentSubscriptionWindow time.Duration
	// Now is the router's clock; tests inject a fixed one.
	Now func() time.Time
	// OnEvent, when set, runs after default processing for every event.
	OnEvent EventHook

	hooks map[string]EventHook
}

func NewRouter(mirror *Mirror, store Store, provider Provider, logger *zap.Logger) *Router {
	return &Router{
		mirror:                   mirror,
		store:                    store,
		provider:                 provider,
		logger:                   logger,
		RecentSubscriptionWindow: DefaultRecentSubscriptionWindow,
		Now:                      time.Now,
		hooks:                    make(map[string]EventHook),
	}
}

// RegisterHook installs a hook for one event type, run after default
// processing and after OnEvent.
func (r *Router) RegisterHook(eventType string, hook EventHook) {
	r.hooks[eventType] = hook
}

// Dispatch routes a verified event through default processing, then the
// generic hook, then the per-type hook, in that order.
func (r *Router) Dispatch(ctx context.Context, evt Event) error {
	if err := r.dispatch(ctx, evt); err != nil {
		return err
	}
	if r.OnEvent != nil {
		if err := r.OnEvent(ctx, evt); err != nil {
			return fmt.Errorf("router: event hook: %w", err)
		}
	}
	if hook, ok := r.hooks[evt.Type]; ok {
		if err := hook(ctx, evt); err != nil {
			return fmt.Errorf("router: %s hook: %w", evt.Type, err)
		}
	}
	return nil
}

func (r *Router) dispatch(ctx context.Context, evt Event) error {
	switch evt.Type {
	case EventCustomerCreated:
		data, ok := evt.Data.(CustomerEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.mirror.CreateCustomer(ctx, CustomerFields{
			ProviderCustomerID: data.ID,
			Email:              data.Email,
			Name:               data.Name,
			Metadata:           data.Metadata,
		})

	case EventCustomerUpdated:
		data, ok := evt.Data.(CustomerEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.mirror.UpdateCustomer(ctx, CustomerFields{
			ProviderCustomerID: data.ID,
			Email:              data.Email,
			Name:               data.Name,
			Metadata:           data.Metadata,
		})

	case EventSubscriptionCreated:
		data, ok := evt.Data.(SubscriptionEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		periodEnd, quantity, priceID := firstLineItem(data.Items)
		return r.mirror.CreateSubscription(ctx, SubscriptionFields{
			ProviderSubscriptionID: data.ID,
			ProviderCustomerID:     data.CustomerID,
			Status:                 data.Status,
			CurrentPeriodEnd:       periodEnd,
			CancelAtPeriodEnd:      data.CancelAtPeriodEnd,
			Quantity:               quantity,
			PriceID:                priceID,
			Metadata:               data.Metadata,
		})

	case EventSubscriptionUpdated:
		data, ok := evt.Data.(SubscriptionEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		periodEnd, quantity, priceID := firstLineItem(data.Items)
		patch := SubscriptionPatch{
			ProviderSubscriptionID: data.ID,
			Status:                 &data.Status,
			CurrentPeriodEnd:       &periodEnd,
			CancelAtPeriodEnd:      &data.CancelAtPeriodEnd,
			Quantity:               &quantity,
			Metadata:               data.Metadata,
		}
		if data.CustomerID != "" {
			patch.ProviderCustomerID = &data.CustomerID
		}
		if priceID != "" {
			patch.PriceID = &priceID
		}
		return r.mirror.UpdateSubscription(ctx, patch)

	case EventSubscriptionDeleted:
		data, ok := evt.Data.(SubscriptionEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.mirror.CancelSubscription(ctx, data.ID)

	case EventCheckoutSessionDone:
		data, ok := evt.Data.(CheckoutSessionEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.completeCheckout(ctx, data)

	case EventInvoiceCreated, EventInvoiceFinalized:
		data, ok := evt.Data.(InvoiceEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.mirror.CreateInvoice(ctx, invoiceFields(data))

	case EventInvoicePaid, EventInvoicePaymentDone:
		data, ok := evt.Data.(InvoiceEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.mirror.MarkInvoicePaid(ctx, data.ID, data.AmountPaid)

	case EventInvoicePaymentFailed:
		data, ok := evt.Data.(InvoiceEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.mirror.MarkInvoicePaymentFailed(ctx, data.ID)

	case EventPaymentIntentSucceeded:
		data, ok := evt.Data.(PaymentIntentEvent)
		if !ok {
			return fmt.Errorf("router: %s: unexpected payload type %T", evt.Type, evt.Data)
		}
		return r.recordPaymentIntent(ctx, data)

	default:
		// Unknown event types are accepted and ignored so the webhook stays
		// forward-compatible with new provider event types.
		r.logger.Debug("Ignoring unhandled event type",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type))
		return nil
	}
}

// completeCheckout upserts the session record, then runs the mode-dependent
// side effects: in payment mode the payment's customer reference is
// back-filled; in subscription mode the subscription's latest invoice is
// fetched from the provider and mirrored, best-effort.
func (r *Router) completeCheckout(ctx context.Context, data CheckoutSessionEvent) error {
	if err := r.mirror.CompleteCheckoutSession(ctx, CheckoutSessionFields{
		ProviderSessionID:       data.ID,
		ProviderCustomerID:      data.CustomerID,
		ProviderPaymentIntentID: data.PaymentIntentID,
		ProviderSubscriptionID:  data.SubscriptionID,
		Mode:                    data.Mode,
		Status:                  data.Status,
	}); err != nil {
		return err
	}

	switch data.Mode {
	case CheckoutModePayment:
		if data.CustomerID != "" && data.PaymentIntentID != "" {
			if err := r.mirror.BackfillPaymentCustomer(ctx, data.PaymentIntentID, data.CustomerID); err != nil {
				return err
			}
		}

	case CheckoutModeSubscription:
		if data.SubscriptionID == "" {
			break
		}
		inv, err := r.provider.GetLatestInvoiceForSubscription(ctx, data.SubscriptionID)
		if err != nil {
			r.logger.Warn("Failed to fetch latest invoice for completed checkout",
				zap.String("provider_session_id", data.ID),
				zap.String("provider_subscription_id", data.SubscriptionID),
				zap.Error(err))
			break
		}
		if inv.ProviderInvoiceID == "" {
			break
		}
		if err := r.mirror.CreateInvoice(ctx, inv); err != nil {
			r.logger.Warn("Failed to mirror latest invoice for completed checkout",
				zap.String("provider_invoice_id", inv.ProviderInvoiceID),
				zap.Error(err))
		}
	}

	return nil
}

// recordPaymentIntent applies the two guards before recording a one-time
// payment. First: a payment intent settling a subscription invoice is already
// accounted for by the invoice path, so recording it again would double-count
// the money movement. Second: a subscription created for the same customer
// within the trailing window means this intent was almost certainly the
// subscription's first charge racing the checkout webhook.
func (r *Router) recordPaymentIntent(ctx context.Context, data PaymentIntentEvent) error {
	if data.InvoiceID != "" && r.invoiceHasSubscription(ctx, data.InvoiceID) {
		r.logger.Info("Skipping payment intent linked to a subscription invoice",
			zap.String("provider_payment_intent_id", data.ID),
			zap.String("provider_invoice_id", data.InvoiceID))
		return nil
	}

	if data.CustomerID != "" {
		since := r.Now().Add(-r.RecentSubscriptionWindow)
		count, err := r.store.CountRecentSubscriptionsByCustomer(ctx, db.CountRecentSubscriptionsByCustomerParams{
			ProviderCustomerID: data.CustomerID,
			CreatedAfter:       pgtype.Timestamptz{Time: since, Valid: true},
		})
		if err != nil {
			// Conservative branch: an unreadable window scan does not block
			// recording the payment.
			r.logger.Warn("Recent-subscription window scan failed",
				zap.String("provider_customer_id", data.CustomerID),
				zap.Error(err))
		} else if count > 0 {
			r.logger.Info("Skipping payment intent racing a recent subscription",
				zap.String("provider_payment_intent_id", data.ID),
				zap.String("provider_customer_id", data.CustomerID))
			return nil
		}
	}

	return r.mirror.RecordPaymentIntent(ctx, PaymentFields{
		ProviderPaymentIntentID: data.ID,
		ProviderCustomerID:      data.CustomerID,
		Amount:                  data.Amount,
		Currency:                data.Currency,
		Status:                  data.Status,
		Created:                 data.Created,
		Metadata:                data.Metadata,
	})
}

// invoiceHasSubscription reports whether the invoice is linked to a
// subscription, consulting the mirror first and the provider as fallback.
// Any lookup failure takes the conservative branch and reports false.
func (r *Router) invoiceHasSubscription(ctx context.Context, providerInvoiceID string) bool {
	local, err := r.store.GetInvoiceByProviderID(ctx, providerInvoiceID)
	if err == nil {
		return local.ProviderSubscriptionID.Valid && local.ProviderSubscriptionID.String != ""
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Warn("Local invoice lookup failed during payment-intent guard",
			zap.String("provider_invoice_id", providerInvoiceID),
			zap.Error(err))
		return false
	}

	remote, err := r.provider.GetInvoice(ctx, providerInvoiceID)
	if err != nil {
		r.logger.Warn("Provider invoice lookup failed during payment-intent guard",
			zap.String("provider_invoice_id", providerInvoiceID),
			zap.Error(err))
		return false
	}
	return remote.ProviderSubscriptionID != ""
}

// firstLineItem extracts period end, quantity and price from the first
// subscription line item, applying the provider defaults of 0 and 1 when the
// item or its fields are absent.
func firstLineItem(items []SubscriptionLineItem) (periodEnd, quantity int64, priceID string) {
	quantity = 1
	if len(items) == 0 {
		return 0, quantity, ""
	}
	item := items[0]
	if item.Quantity > 0 {
		quantity = item.Quantity
	}
	return item.CurrentPeriodEnd, quantity, item.PriceID
}

func invoiceFields(data InvoiceEvent) InvoiceFields {
	return InvoiceFields{
		ProviderInvoiceID:      data.ID,
		ProviderCustomerID:     data.CustomerID,
		ProviderSubscriptionID: data.SubscriptionID,
		Status:                 data.Status,
		AmountDue:              data.AmountDue,
		AmountPaid:             data.AmountPaid,
		Created:                data.Created,
	}
}
