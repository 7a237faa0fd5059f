package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getSubscriptionByProviderID = `
SELECT id, provider_subscription_id, provider_customer_id, status, current_period_end,
       cancel_at_period_end, quantity, price_id, metadata, org_id, user_id, created_at, updated_at
FROM subscriptions
WHERE provider_subscription_id = $1
`

func (q *Queries) GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (Subscription, error) {
	row := q.db.QueryRow(ctx, getSubscriptionByProviderID, providerSubscriptionID)
	var i Subscription
	err := row.Scan(
		&i.ID,
		&i.ProviderSubscriptionID,
		&i.ProviderCustomerID,
		&i.Status,
		&i.CurrentPeriodEnd,
		&i.CancelAtPeriodEnd,
		&i.Quantity,
		&i.PriceID,
		&i.Metadata,
		&i.OrgID,
		&i.UserID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertSubscription = `
INSERT INTO subscriptions (id, provider_subscription_id, provider_customer_id, status,
                           current_period_end, cancel_at_period_end, quantity, price_id,
                           metadata, org_id, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (provider_subscription_id) DO NOTHING
`

type InsertSubscriptionParams struct {
	ID                     uuid.UUID
	ProviderSubscriptionID string
	ProviderCustomerID     string
	Status                 string
	CurrentPeriodEnd       pgtype.Timestamptz
	CancelAtPeriodEnd      bool
	Quantity               int64
	PriceID                string
	Metadata               []byte
	OrgID                  pgtype.Text
	UserID                 pgtype.Text
}

func (q *Queries) InsertSubscription(ctx context.Context, arg InsertSubscriptionParams) error {
	_, err := q.db.Exec(ctx, insertSubscription,
		arg.ID,
		arg.ProviderSubscriptionID,
		arg.ProviderCustomerID,
		arg.Status,
		arg.CurrentPeriodEnd,
		arg.CancelAtPeriodEnd,
		arg.Quantity,
		arg.PriceID,
		arg.Metadata,
		arg.OrgID,
		arg.UserID,
	)
	return err
}

const updateSubscriptionByProviderID = `
UPDATE subscriptions
SET provider_customer_id = COALESCE($2, provider_customer_id),
    status               = COALESCE($3, status),
    current_period_end   = COALESCE($4, current_period_end),
    cancel_at_period_end = COALESCE($5, cancel_at_period_end),
    quantity             = COALESCE($6, quantity),
    price_id             = COALESCE($7, price_id),
    metadata             = COALESCE($8, metadata),
    org_id               = COALESCE($9, org_id),
    user_id              = COALESCE($10, user_id),
    updated_at           = now()
WHERE provider_subscription_id = $1
`

// UpdateSubscriptionByProviderIDParams patches only the fields whose values
// are non-null; absent fields leave the stored value untouched.
type UpdateSubscriptionByProviderIDParams struct {
	ProviderSubscriptionID string
	ProviderCustomerID     pgtype.Text
	Status                 pgtype.Text
	CurrentPeriodEnd       pgtype.Timestamptz
	CancelAtPeriodEnd      pgtype.Bool
	Quantity               pgtype.Int8
	PriceID                pgtype.Text
	Metadata               []byte
	OrgID                  pgtype.Text
	UserID                 pgtype.Text
}

func (q *Queries) UpdateSubscriptionByProviderID(ctx context.Context, arg UpdateSubscriptionByProviderIDParams) error {
	_, err := q.db.Exec(ctx, updateSubscriptionByProviderID,
		arg.ProviderSubscriptionID,
		arg.ProviderCustomerID,
		arg.Status,
		arg.CurrentPeriodEnd,
		arg.CancelAtPeriodEnd,
		arg.Quantity,
		arg.PriceID,
		arg.Metadata,
		arg.OrgID,
		arg.UserID,
	)
	return err
}

const cancelSubscriptionByProviderID = `
UPDATE subscriptions
SET status = 'canceled', updated_at = now()
WHERE provider_subscription_id = $1
`

func (q *Queries) CancelSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) error {
	_, err := q.db.Exec(ctx, cancelSubscriptionByProviderID, providerSubscriptionID)
	return err
}

const listSubscriptionsByCustomer = `
SELECT id, provider_subscription_id, provider_customer_id, status, current_period_end,
       cancel_at_period_end, quantity, price_id, metadata, org_id, user_id, created_at, updated_at
FROM subscriptions
WHERE provider_customer_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListSubscriptionsByCustomer(ctx context.Context, providerCustomerID string) ([]Subscription, error) {
	rows, err := q.db.Query(ctx, listSubscriptionsByCustomer, providerCustomerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		var i Subscription
		if err := rows.Scan(
			&i.ID,
			&i.ProviderSubscriptionID,
			&i.ProviderCustomerID,
			&i.Status,
			&i.CurrentPeriodEnd,
			&i.CancelAtPeriodEnd,
			&i.Quantity,
			&i.PriceID,
			&i.Metadata,
			&i.OrgID,
			&i.UserID,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listSubscriptionsByOrg = `
SELECT id, provider_subscription_id, provider_customer_id, status, current_period_end,
       cancel_at_period_end, quantity, price_id, metadata, org_id, user_id, created_at, updated_at
FROM subscriptions
WHERE org_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListSubscriptionsByOrg(ctx context.Context, orgID pgtype.Text) ([]Subscription, error) {
	rows, err := q.db.Query(ctx, listSubscriptionsByOrg, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		var i Subscription
		if err := rows.Scan(
			&i.ID,
			&i.ProviderSubscriptionID,
			&i.ProviderCustomerID,
			&i.Status,
			&i.CurrentPeriodEnd,
			&i.CancelAtPeriodEnd,
			&i.Quantity,
			&i.PriceID,
			&i.Metadata,
			&i.OrgID,
			&i.UserID,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listSubscriptionsByUser = `
SELECT id, provider_subscription_id, provider_customer_id, status, current_period_end,
       cancel_at_period_end, quantity, price_id, metadata, org_id, user_id, created_at, updated_at
FROM subscriptions
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListSubscriptionsByUser(ctx context.Context, userID pgtype.Text) ([]Subscription, error) {
	rows, err := q.db.Query(ctx, listSubscriptionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subscription
	for rows.Next() {
		var i Subscription
		if err := rows.Scan(
			&i.ID,
			&i.ProviderSubscriptionID,
			&i.ProviderCustomerID,
			&i.Status,
			&i.CurrentPeriodEnd,
			&i.CancelAtPeriodEnd,
			&i.Quantity,
			&i.PriceID,
			&i.Metadata,
			&i.OrgID,
			&i.UserID,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countRecentSubscriptionsByCustomer = `
SELECT count(*)
FROM subscriptions
WHERE provider_customer_id = $1 AND created_at >= $2
`

type CountRecentSubscriptionsByCustomerParams struct {
	ProviderCustomerID string
	CreatedAfter       pgtype.Timestamptz
}

func (q *Queries) CountRecentSubscriptionsByCustomer(ctx context.Context, arg CountRecentSubscriptionsByCustomerParams) (int64, error) {
	row := q.db.QueryRow(ctx, countRecentSubscriptionsByCustomer, arg.ProviderCustomerID, arg.CreatedAfter)
	var count int64
	err := row.Scan(&count)
	return count, err
}
