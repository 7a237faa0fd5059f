package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getInvoiceByProviderID = `
SELECT id, provider_invoice_id, provider_customer_id, provider_subscription_id, status,
       amount_due, amount_paid, created, org_id, user_id, created_at, updated_at
FROM invoices
WHERE provider_invoice_id = $1
`

func (q *Queries) GetInvoiceByProviderID(ctx context.Context, providerInvoiceID string) (Invoice, error) {
	row := q.db.QueryRow(ctx, getInvoiceByProviderID, providerInvoiceID)
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.ProviderInvoiceID,
		&i.ProviderCustomerID,
		&i.ProviderSubscriptionID,
		&i.Status,
		&i.AmountDue,
		&i.AmountPaid,
		&i.Created,
		&i.OrgID,
		&i.UserID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertInvoice = `
INSERT INTO invoices (id, provider_invoice_id, provider_customer_id, provider_subscription_id,
                      status, amount_due, amount_paid, created, org_id, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (provider_invoice_id) DO NOTHING
`

type InsertInvoiceParams struct {
	ID                     uuid.UUID
	ProviderInvoiceID      string
	ProviderCustomerID     string
	ProviderSubscriptionID pgtype.Text
	Status                 string
	AmountDue              int64
	AmountPaid             int64
	Created                pgtype.Timestamptz
	OrgID                  pgtype.Text
	UserID                 pgtype.Text
}

func (q *Queries) InsertInvoice(ctx context.Context, arg InsertInvoiceParams) error {
	_, err := q.db.Exec(ctx, insertInvoice,
		arg.ID,
		arg.ProviderInvoiceID,
		arg.ProviderCustomerID,
		arg.ProviderSubscriptionID,
		arg.Status,
		arg.AmountDue,
		arg.AmountPaid,
		arg.Created,
		arg.OrgID,
		arg.UserID,
	)
	return err
}

const updateInvoiceStatusByProviderID = `
UPDATE invoices
SET status      = $2,
    amount_paid = COALESCE($3, amount_paid),
    updated_at  = now()
WHERE provider_invoice_id = $1
`

type UpdateInvoiceStatusByProviderIDParams struct {
	ProviderInvoiceID string
	Status            string
	AmountPaid        pgtype.Int8
}

func (q *Queries) UpdateInvoiceStatusByProviderID(ctx context.Context, arg UpdateInvoiceStatusByProviderIDParams) error {
	_, err := q.db.Exec(ctx, updateInvoiceStatusByProviderID, arg.ProviderInvoiceID, arg.Status, arg.AmountPaid)
	return err
}

const listInvoicesByCustomer = `
SELECT id, provider_invoice_id, provider_customer_id, provider_subscription_id, status,
       amount_due, amount_paid, created, org_id, user_id, created_at, updated_at
FROM invoices
WHERE provider_customer_id = $1
ORDER BY created DESC
`

func (q *Queries) ListInvoicesByCustomer(ctx context.Context, providerCustomerID string) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoicesByCustomer, providerCustomerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

const listInvoicesBySubscription = `
SELECT id, provider_invoice_id, provider_customer_id, provider_subscription_id, status,
       amount_due, amount_paid, created, org_id, user_id, created_at, updated_at
FROM invoices
WHERE provider_subscription_id = $1
ORDER BY created DESC
`

func (q *Queries) ListInvoicesBySubscription(ctx context.Context, providerSubscriptionID pgtype.Text) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoicesBySubscription, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

const listInvoicesByOrg = `
SELECT id, provider_invoice_id, provider_customer_id, provider_subscription_id, status,
       amount_due, amount_paid, created, org_id, user_id, created_at, updated_at
FROM invoices
WHERE org_id = $1
ORDER BY created DESC
`

func (q *Queries) ListInvoicesByOrg(ctx context.Context, orgID pgtype.Text) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoicesByOrg, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

const listInvoicesByUser = `
SELECT id, provider_invoice_id, provider_customer_id, provider_subscription_id, status,
       amount_due, amount_paid, created, org_id, user_id, created_at, updated_at
FROM invoices
WHERE user_id = $1
ORDER BY created DESC
`

func (q *Queries) ListInvoicesByUser(ctx context.Context, userID pgtype.Text) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoicesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

func scanInvoices(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Invoice, error) {
	var items []Invoice
	for rows.Next() {
		var i Invoice
		if err := rows.Scan(
			&i.ID,
			&i.ProviderInvoiceID,
			&i.ProviderCustomerID,
			&i.ProviderSubscriptionID,
			&i.Status,
			&i.AmountDue,
			&i.AmountPaid,
			&i.Created,
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
