package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Customer struct {
	ID                 uuid.UUID
	ProviderCustomerID string
	Email              pgtype.Text
	Name               pgtype.Text
	Metadata           []byte
	CreatedAt          pgtype.Timestamptz
	UpdatedAt          pgtype.Timestamptz
}

type Subscription struct {
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
	CreatedAt              pgtype.Timestamptz
	UpdatedAt              pgtype.Timestamptz
}

type Payment struct {
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
	CreatedAt               pgtype.Timestamptz
	UpdatedAt               pgtype.Timestamptz
}

type Invoice struct {
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
	CreatedAt              pgtype.Timestamptz
	UpdatedAt              pgtype.Timestamptz
}

type CheckoutSession struct {
	ID                      uuid.UUID
	ProviderSessionID       string
	ProviderCustomerID      pgtype.Text
	ProviderPaymentIntentID pgtype.Text
	ProviderSubscriptionID  pgtype.Text
	Mode                    string
	Status                  string
	CreatedAt               pgtype.Timestamptz
	UpdatedAt               pgtype.Timestamptz
}
