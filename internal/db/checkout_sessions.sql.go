package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getCheckoutSessionByProviderID = `
SELECT id, provider_session_id, provider_customer_id, provider_payment_intent_id,
       provider_subscription_id, mode, status, created_at, updated_at
FROM checkout_sessions
WHERE provider_session_id = $1
`

func (q *Queries) GetCheckoutSessionByProviderID(ctx context.Context, providerSessionID string) (CheckoutSession, error) {
	row := q.db.QueryRow(ctx, getCheckoutSessionByProviderID, providerSessionID)
	var i CheckoutSession
	err := row.Scan(
		&i.ID,
		&i.ProviderSessionID,
		&i.ProviderCustomerID,
		&i.ProviderPaymentIntentID,
		&i.ProviderSubscriptionID,
		&i.Mode,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertCheckoutSession = `
INSERT INTO checkout_sessions (id, provider_session_id, provider_customer_id,
                               provider_payment_intent_id, provider_subscription_id, mode, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (provider_session_id) DO NOTHING
`

type InsertCheckoutSessionParams struct {
	ID                      uuid.UUID
	ProviderSessionID       string
	ProviderCustomerID      pgtype.Text
	ProviderPaymentIntentID pgtype.Text
	ProviderSubscriptionID  pgtype.Text
	Mode                    string
	Status                  string
}

func (q *Queries) InsertCheckoutSession(ctx context.Context, arg InsertCheckoutSessionParams) error {
	_, err := q.db.Exec(ctx, insertCheckoutSession,
		arg.ID,
		arg.ProviderSessionID,
		arg.ProviderCustomerID,
		arg.ProviderPaymentIntentID,
		arg.ProviderSubscriptionID,
		arg.Mode,
		arg.Status,
	)
	return err
}

const updateCheckoutSessionByProviderID = `
UPDATE checkout_sessions
SET status               = COALESCE($2, status),
    provider_customer_id = COALESCE($3, provider_customer_id),
    updated_at           = now()
WHERE provider_session_id = $1
`

type UpdateCheckoutSessionByProviderIDParams struct {
	ProviderSessionID  string
	Status             pgtype.Text
	ProviderCustomerID pgtype.Text
}

func (q *Queries) UpdateCheckoutSessionByProviderID(ctx context.Context, arg UpdateCheckoutSessionByProviderIDParams) error {
	_, err := q.db.Exec(ctx, updateCheckoutSessionByProviderID,
		arg.ProviderSessionID,
		arg.Status,
		arg.ProviderCustomerID,
	)
	return err
}
