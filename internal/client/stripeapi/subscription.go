package stripeapi

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// GetSubscription retrieves a subscription with its first line item mapped.
func (s *Service) GetSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	params := &stripe.SubscriptionRetrieveParams{}
	sub, err := s.client.V1Subscriptions.Retrieve(ctx, subscriptionID, params)
	if err != nil {
		return Subscription{}, fmt.Errorf("stripeapi.GetSubscription: %w", err)
	}
	return mapSubscription(sub), nil
}

// CancelSubscription cancels immediately or flags cancellation at period end.
// At-period-end is an update, not a cancel, on the provider side.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (Subscription, error) {
	var sub *stripe.Subscription
	var err error

	if atPeriodEnd {
		params := &stripe.SubscriptionUpdateParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		sub, err = s.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	} else {
		sub, err = s.client.V1Subscriptions.Cancel(ctx, subscriptionID, &stripe.SubscriptionCancelParams{})
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("stripeapi.CancelSubscription: %w", err)
	}

	s.logger.Info("Canceled provider subscription",
		zap.String("provider_subscription_id", subscriptionID),
		zap.Bool("at_period_end", atPeriodEnd))
	return mapSubscription(sub), nil
}

// ReactivateSubscription clears a pending at-period-end cancellation. It
// cannot resurrect a subscription that already ended.
func (s *Service) ReactivateSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	sub, err := s.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return Subscription{}, fmt.Errorf("stripeapi.ReactivateSubscription: %w", err)
	}

	s.logger.Info("Reactivated provider subscription",
		zap.String("provider_subscription_id", subscriptionID))
	return mapSubscription(sub), nil
}

// UpdateSubscriptionQuantity changes the quantity on the subscription's first
// line item.
func (s *Service) UpdateSubscriptionQuantity(ctx context.Context, subscriptionID string, quantity int64) (Subscription, error) {
	current, err := s.client.V1Subscriptions.Retrieve(ctx, subscriptionID, &stripe.SubscriptionRetrieveParams{})
	if err != nil {
		return Subscription{}, fmt.Errorf("stripeapi.UpdateSubscriptionQuantity: %w", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return Subscription{}, fmt.Errorf("stripeapi.UpdateSubscriptionQuantity: subscription %s has no line items", subscriptionID)
	}

	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:       stripe.String(current.Items.Data[0].ID),
				Quantity: stripe.Int64(quantity),
			},
		},
	}
	sub, err := s.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return Subscription{}, fmt.Errorf("stripeapi.UpdateSubscriptionQuantity: %w", err)
	}

	s.logger.Info("Updated provider subscription quantity",
		zap.String("provider_subscription_id", subscriptionID),
		zap.Int64("quantity", quantity))
	return mapSubscription(sub), nil
}

// UpdateSubscriptionMetadata replaces the subscription's metadata bag.
func (s *Service) UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) (Subscription, error) {
	params := &stripe.SubscriptionUpdateParams{
		Metadata: metadata,
	}
	sub, err := s.client.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return Subscription{}, fmt.Errorf("stripeapi.UpdateSubscriptionMetadata: %w", err)
	}
	return mapSubscription(sub), nil
}
