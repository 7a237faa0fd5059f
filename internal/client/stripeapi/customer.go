package stripeapi

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

// CreateCustomer creates a provider customer. The idempotency key must be
// stable per application customer so retries and races collapse onto a single
// provider record.
func (s *Service) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string, idempotencyKey string) (Customer, error) {
	params := &stripe.CustomerCreateParams{
		Metadata: metadata,
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}

	cust, err := s.client.V1Customers.Create(ctx, params)
	if err != nil {
		return Customer{}, fmt.Errorf("stripeapi.CreateCustomer: %w", err)
	}

	s.logger.Info("Created provider customer",
		zap.String("provider_customer_id", cust.ID),
		zap.String("email", email))
	return Customer{ID: cust.ID, Email: cust.Email, Name: cust.Name}, nil
}
