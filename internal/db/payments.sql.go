package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getPaymentByProviderID = `
SELECT id, provider_payment_intent_id, provider_customer_id, amount, currency, status,
       created, metadata, org_id, user_id, created_at, updated_at
FROM payments
WHERE provider_payment_intent_id = $1
`

func (q *Queries) GetPaymentByProviderID(ctx context.Context, providerPaymentIntentID string) (Payment, error) {
	row := q.db.QueryRow(ctx, getPaymentByProviderID, providerPaymentIntentID)
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.ProviderPaymentIntentID,
		&i.ProviderCustomerID,
		&i.Amount,
		&i.Currency,
		&i.Status,
		&i.Created,
		&i.Metadata,
		&i.OrgID,
		&i.UserID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertPayment = `
INSERT INTO payments (id, provider_payment_intent_id, provider_customer_id, amount,
                      currency, status, created, metadata, org_id, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (provider_payment_intent_id) DO NOTHING
`

type InsertPaymentParams struct {
	ID                      uuid.UUID
	ProviderPaymentIntentID string
	ProviderCustomerID      pgtype.Text
	Amount                  int64
	Currency                string
	Status                  string
	Created                 pgtype.Timestamptz
	Metadata                []byte
	OrgID                   pgtype.Text
	UserID                  pgtype.Text
}

func (q *Queries) InsertPayment(ctx context.Context, arg InsertPaymentParams) error {
	_, err := q.db.Exec(ctx, insertPayment,
		arg.ID,
		arg.ProviderPaymentIntentID,
		arg.ProviderCustomerID,
		arg.Amount,
		arg.Currency,
		arg.Status,
		arg.Created,
		arg.Metadata,
		arg.OrgID,
		arg.UserID,
	)
	return err
}

const backfillPaymentCustomer = `
UPDATE payments
SET provider_customer_id = $2, updated_at = now()
WHERE provider_payment_intent_id = $1 AND provider_customer_id IS NULL
`

type BackfillPaymentCustomerParams struct {
	ProviderPaymentIntentID string
	ProviderCustomerID      pgtype.Text
}

// BackfillPaymentCustomer sets the customer reference only when it is
// currently empty; a non-empty reference is never overwritten.
func (q *Queries) BackfillPaymentCustomer(ctx context.Context, arg BackfillPaymentCustomerParams) error {
	_, err := q.db.Exec(ctx, backfillPaymentCustomer, arg.ProviderPaymentIntentID, arg.ProviderCustomerID)
	return err
}

const listPaymentsByCustomer = `
SELECT id, provider_payment_intent_id, provider_customer_id, amount, currency, status,
       created, metadata, org_id, user_id, created_at, updated_at
FROM payments
WHERE provider_customer_id = $1
ORDER BY created DESC
`

func (q *Queries) ListPaymentsByCustomer(ctx context.Context, providerCustomerID pgtype.Text) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByCustomer, providerCustomerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.ProviderPaymentIntentID,
			&i.ProviderCustomerID,
			&i.Amount,
			&i.Currency,
			&i.Status,
			&i.Created,
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

const listPaymentsByOrg = `
SELECT id, provider_payment_intent_id, provider_customer_id, amount, currency, status,
       created, metadata, org_id, user_id, created_at, updated_at
FROM payments
WHERE org_id = $1
ORDER BY created DESC
`

func (q *Queries) ListPaymentsByOrg(ctx context.Context, orgID pgtype.Text) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrg, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.ProviderPaymentIntentID,
			&i.ProviderCustomerID,
			&i.Amount,
			&i.Currency,
			&i.Status,
			&i.Created,
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

const listPaymentsByUser = `
SELECT id, provider_payment_intent_id, provider_customer_id, amount, currency, status,
       created, metadata, org_id, user_id, created_at, updated_at
FROM payments
WHERE user_id = $1
ORDER BY created DESC
`

func (q *Queries) ListPaymentsByUser(ctx context.Context, userID pgtype.Text) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		var i Payment
		if err := rows.Scan(
			&i.ID,
			&i.ProviderPaymentIntentID,
			&i.ProviderCustomerID,
			&i.Amount,
			&i.Currency,
			&i.Status,
			&i.Created,
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
