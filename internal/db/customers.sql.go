package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getCustomerByProviderID = `
SELECT id, provider_customer_id, email, name, metadata, created_at, updated_at
FROM customers
WHERE provider_customer_id = $1
`

func (q *Queries) GetCustomerByProviderID(ctx context.Context, providerCustomerID string) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomerByProviderID, providerCustomerID)
	var i Customer
	err := row.Scan(
		&i.ID,
		&i.ProviderCustomerID,
		&i.Email,
		&i.Name,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCustomerByEmail = `
SELECT id, provider_customer_id, email, name, metadata, created_at, updated_at
FROM customers
WHERE email = $1
ORDER BY created_at
LIMIT 1
`

func (q *Queries) GetCustomerByEmail(ctx context.Context, email string) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomerByEmail, email)
	var i Customer
	err := row.Scan(
		&i.ID,
		&i.ProviderCustomerID,
		&i.Email,
		&i.Name,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertCustomer = `
INSERT INTO customers (id, provider_customer_id, email, name, metadata)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (provider_customer_id) DO NOTHING
`

type InsertCustomerParams struct {
	ID                 uuid.UUID
	ProviderCustomerID string
	Email              pgtype.Text
	Name               pgtype.Text
	Metadata           []byte
}

func (q *Queries) InsertCustomer(ctx context.Context, arg InsertCustomerParams) error {
	_, err := q.db.Exec(ctx, insertCustomer,
		arg.ID,
		arg.ProviderCustomerID,
		arg.Email,
		arg.Name,
		arg.Metadata,
	)
	return err
}

const updateCustomerByProviderID = `
UPDATE customers
SET email      = COALESCE($2, email),
    name       = COALESCE($3, name),
    metadata   = COALESCE($4, metadata),
    updated_at = now()
WHERE provider_customer_id = $1
`

type UpdateCustomerByProviderIDParams struct {
	ProviderCustomerID string
	Email              pgtype.Text
	Name               pgtype.Text
	Metadata           []byte
}

func (q *Queries) UpdateCustomerByProviderID(ctx context.Context, arg UpdateCustomerByProviderIDParams) error {
	_, err := q.db.Exec(ctx, updateCustomerByProviderID,
		arg.ProviderCustomerID,
		arg.Email,
		arg.Name,
		arg.Metadata,
	)
	return err
}
