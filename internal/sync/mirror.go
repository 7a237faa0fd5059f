package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing-mirror/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// Mirror holds the idempotent upsert handlers. Webhook dispatch and the
// reconciling facade both converge on these methods, so the two delivery
// paths cannot drift apart.
type Mirror struct {
	store  Store
	logger *zap.Logger
}

func NewMirror(store Store, logger *zap.Logger) *Mirror {
	return &Mirror{store: store, logger: logger}
}

// CreateCustomer inserts a customer on first sighting. If a record with the
// same provider ID already exists this is a no-op; create is never destructive.
func (m *Mirror) CreateCustomer(ctx context.Context, f CustomerFields) error {
	_, err := m.store.GetCustomerByProviderID(ctx, f.ProviderCustomerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mirror.CreateCustomer: %w", err)
	}

	if err := m.store.InsertCustomer(ctx, db.InsertCustomerParams{
		ID:                 uuid.New(),
		ProviderCustomerID: f.ProviderCustomerID,
		Email:              textOrNull(f.Email),
		Name:               textOrNull(f.Name),
		Metadata:           metadataJSON(f.Metadata),
	}); err != nil {
		return fmt.Errorf("mirror.CreateCustomer: %w", err)
	}

	m.logger.Info("Mirrored new customer", zap.String("provider_customer_id", f.ProviderCustomerID))
	return nil
}

// UpdateCustomer patches an existing customer. An update for a customer that
// was never seen is a silent no-op; it must not fabricate a record.
func (m *Mirror) UpdateCustomer(ctx context.Context, f CustomerFields) error {
	_, err := m.store.GetCustomerByProviderID(ctx, f.ProviderCustomerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mirror.UpdateCustomer: %w", err)
	}

	var metadata []byte
	if f.Metadata != nil {
		metadata = metadataJSON(f.Metadata)
	}
	if err := m.store.UpdateCustomerByProviderID(ctx, db.UpdateCustomerByProviderIDParams{
		ProviderCustomerID: f.ProviderCustomerID,
		Email:              textOrNull(f.Email),
		Name:               textOrNull(f.Name),
		Metadata:           metadata,
	}); err != nil {
		return fmt.Errorf("mirror.UpdateCustomer: %w", err)
	}
	return nil
}

// CreateSubscription inserts a subscription on first sighting; replays are
// no-ops. The orgId/userId linkage fields are extracted from the metadata bag
// here and only here.
func (m *Mirror) CreateSubscription(ctx context.Context, f SubscriptionFields) error {
	_, err := m.store.GetSubscriptionByProviderID(ctx, f.ProviderSubscriptionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mirror.CreateSubscription: %w", err)
	}

	orgID, userID := linkageFromMetadata(f.Metadata)
	if err := m.store.InsertSubscription(ctx, db.InsertSubscriptionParams{
		ID:                     uuid.New(),
		ProviderSubscriptionID: f.ProviderSubscriptionID,
		ProviderCustomerID:     f.ProviderCustomerID,
		Status:                 f.Status,
		CurrentPeriodEnd:       unixTimestamptz(f.CurrentPeriodEnd),
		CancelAtPeriodEnd:      f.CancelAtPeriodEnd,
		Quantity:               f.Quantity,
		PriceID:                f.PriceID,
		Metadata:               metadataJSON(f.Metadata),
		OrgID:                  orgID,
		UserID:                 userID,
	}); err != nil {
		return fmt.Errorf("mirror.CreateSubscription: %w", err)
	}

	m.logger.Info("Mirrored new subscription",
		zap.String("provider_subscription_id", f.ProviderSubscriptionID),
		zap.String("provider_customer_id", f.ProviderCustomerID),
		zap.String("status", f.Status))
	return nil
}

// UpdateSubscription patches only the fields the patch carries. Fields absent
// from the patch keep their stored values; in particular an update that omits
// metadata never erases previously extracted linkage fields.
func (m *Mirror) UpdateSubscription(ctx context.Context, p SubscriptionPatch) error {
	params := db.UpdateSubscriptionByProviderIDParams{
		ProviderSubscriptionID: p.ProviderSubscriptionID,
		ProviderCustomerID:     textPtr(p.ProviderCustomerID),
		Status:                 textPtr(p.Status),
		CancelAtPeriodEnd:      boolPtr(p.CancelAtPeriodEnd),
		Quantity:               int8Ptr(p.Quantity),
		PriceID:                textPtr(p.PriceID),
	}
	if p.CurrentPeriodEnd != nil {
		params.CurrentPeriodEnd = unixTimestamptz(*p.CurrentPeriodEnd)
	}
	if p.Metadata != nil {
		params.Metadata = metadataJSON(p.Metadata)
		if v, ok := p.Metadata[MetadataOrgIDKey]; ok {
			params.OrgID = textOrNull(v)
		}
		if v, ok := p.Metadata[MetadataUserIDKey]; ok {
			params.UserID = textOrNull(v)
		}
	}

	if err := m.store.UpdateSubscriptionByProviderID(ctx, params); err != nil {
		return fmt.Errorf("mirror.UpdateSubscription: %w", err)
	}
	return nil
}

// CancelSubscription marks the subscription canceled without touching any
// other field. Cancellation is a status transition, never a row removal.
func (m *Mirror) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	if err := m.store.CancelSubscriptionByProviderID(ctx, providerSubscriptionID); err != nil {
		return fmt.Errorf("mirror.CancelSubscription: %w", err)
	}
	m.logger.Info("Mirrored subscription cancellation", zap.String("provider_subscription_id", providerSubscriptionID))
	return nil
}

// UpdateSubscriptionMetadata replaces the metadata bag and refreshes the
// linkage fields it carries. Unlike the webhook-driven handlers this one
// requires the record to exist and fails loudly when it does not.
func (m *Mirror) UpdateSubscriptionMetadata(ctx context.Context, providerSubscriptionID string, metadata map[string]string) error {
	_, err := m.store.GetSubscriptionByProviderID(ctx, providerSubscriptionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mirror.UpdateSubscriptionMetadata: subscription %s: %w", providerSubscriptionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("mirror.UpdateSubscriptionMetadata: %w", err)
	}

	return m.UpdateSubscription(ctx, SubscriptionPatch{
		ProviderSubscriptionID: providerSubscriptionID,
		Metadata:               metadata,
	})
}

// CompleteCheckoutSession upserts the session record by session key. On first
// sighting the status is forced to "complete"; on an existing record only the
// status and customer reference are patched.
func (m *Mirror) CompleteCheckoutSession(ctx context.Context, f CheckoutSessionFields) error {
	_, err := m.store.GetCheckoutSessionByProviderID(ctx, f.ProviderSessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := m.store.InsertCheckoutSession(ctx, db.InsertCheckoutSessionParams{
			ID:                      uuid.New(),
			ProviderSessionID:       f.ProviderSessionID,
			ProviderCustomerID:      textOrNull(f.ProviderCustomerID),
			ProviderPaymentIntentID: textOrNull(f.ProviderPaymentIntentID),
			ProviderSubscriptionID:  textOrNull(f.ProviderSubscriptionID),
			Mode:                    f.Mode,
			Status:                  "complete",
		}); err != nil {
			return fmt.Errorf("mirror.CompleteCheckoutSession: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("mirror.CompleteCheckoutSession: %w", err)
	}

	if err := m.store.UpdateCheckoutSessionByProviderID(ctx, db.UpdateCheckoutSessionByProviderIDParams{
		ProviderSessionID:  f.ProviderSessionID,
		Status:             textOrNull(f.Status),
		ProviderCustomerID: textOrNull(f.ProviderCustomerID),
	}); err != nil {
		return fmt.Errorf("mirror.CompleteCheckoutSession: %w", err)
	}
	return nil
}

// RecordCheckoutSession inserts a session the facade just created with the
// provider (typically status "open"); replays are no-ops.
func (m *Mirror) RecordCheckoutSession(ctx context.Context, f CheckoutSessionFields) error {
	_, err := m.store.GetCheckoutSessionByProviderID(ctx, f.ProviderSessionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mirror.RecordCheckoutSession: %w", err)
	}

	if err := m.store.InsertCheckoutSession(ctx, db.InsertCheckoutSessionParams{
		ID:                      uuid.New(),
		ProviderSessionID:       f.ProviderSessionID,
		ProviderCustomerID:      textOrNull(f.ProviderCustomerID),
		ProviderPaymentIntentID: textOrNull(f.ProviderPaymentIntentID),
		ProviderSubscriptionID:  textOrNull(f.ProviderSubscriptionID),
		Mode:                    f.Mode,
		Status:                  f.Status,
	}); err != nil {
		return fmt.Errorf("mirror.RecordCheckoutSession: %w", err)
	}
	return nil
}

// CreateInvoice inserts an invoice on first sighting. When the invoice is
// linked to a subscription, the subscription's linkage fields are copied onto
// the invoice at this moment only; a missing parent subscription is tolerated.
func (m *Mirror) CreateInvoice(ctx context.Context, f InvoiceFields) error {
	_, err := m.store.GetInvoiceByProviderID(ctx, f.ProviderInvoiceID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mirror.CreateInvoice: %w", err)
	}

	var orgID, userID pgtype.Text
	if f.ProviderSubscriptionID != "" {
		sub, err := m.store.GetSubscriptionByProviderID(ctx, f.ProviderSubscriptionID)
		switch {
		case err == nil:
			orgID = sub.OrgID
			userID = sub.UserID
		case errors.Is(err, pgx.ErrNoRows):
			// Parent subscription not mirrored yet; the invoice still gets created.
		default:
			return fmt.Errorf("mirror.CreateInvoice: %w", err)
		}
	}

	if err := m.store.InsertInvoice(ctx, db.InsertInvoiceParams{
		ID:                     uuid.New(),
		ProviderInvoiceID:      f.ProviderInvoiceID,
		ProviderCustomerID:     f.ProviderCustomerID,
		ProviderSubscriptionID: textOrNull(f.ProviderSubscriptionID),
		Status:                 f.Status,
		AmountDue:              f.AmountDue,
		AmountPaid:             f.AmountPaid,
		Created:                unixTimestamptz(f.Created),
		OrgID:                  orgID,
		UserID:                 userID,
	}); err != nil {
		return fmt.Errorf("mirror.CreateInvoice: %w", err)
	}

	m.logger.Info("Mirrored new invoice",
		zap.String("provider_invoice_id", f.ProviderInvoiceID),
		zap.String("provider_subscription_id", f.ProviderSubscriptionID))
	return nil
}

// MarkInvoicePaid patches the invoice to paid and records the paid amount.
// No-op if the invoice was never mirrored.
func (m *Mirror) MarkInvoicePaid(ctx context.Context, providerInvoiceID string, amountPaid int64) error {
	if err := m.store.UpdateInvoiceStatusByProviderID(ctx, db.UpdateInvoiceStatusByProviderIDParams{
		ProviderInvoiceID: providerInvoiceID,
		Status:            "paid",
		AmountPaid:        pgtype.Int8{Int64: amountPaid, Valid: true},
	}); err != nil {
		return fmt.Errorf("mirror.MarkInvoicePaid: %w", err)
	}
	return nil
}

// MarkInvoicePaymentFailed patches the invoice back to open. No-op if the
// invoice was never mirrored.
func (m *Mirror) MarkInvoicePaymentFailed(ctx context.Context, providerInvoiceID string) error {
	if err := m.store.UpdateInvoiceStatusByProviderID(ctx, db.UpdateInvoiceStatusByProviderIDParams{
		ProviderInvoiceID: providerInvoiceID,
		Status:            "open",
	}); err != nil {
		return fmt.Errorf("mirror.MarkInvoicePaymentFailed: %w", err)
	}
	return nil
}

// RecordPaymentIntent inserts a payment on first sighting, extracting linkage
// fields from metadata. A replay for an existing record only back-fills a
// missing customer reference; nothing else is touched.
func (m *Mirror) RecordPaymentIntent(ctx context.Context, f PaymentFields) error {
	existing, err := m.store.GetPaymentByProviderID(ctx, f.ProviderPaymentIntentID)
	if err == nil {
		if !existing.ProviderCustomerID.Valid && f.ProviderCustomerID != "" {
			return m.BackfillPaymentCustomer(ctx, f.ProviderPaymentIntentID, f.ProviderCustomerID)
		}
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mirror.RecordPaymentIntent: %w", err)
	}

	orgID, userID := linkageFromMetadata(f.Metadata)
	if err := m.store.InsertPayment(ctx, db.InsertPaymentParams{
		ID:                      uuid.New(),
		ProviderPaymentIntentID: f.ProviderPaymentIntentID,
		ProviderCustomerID:      textOrNull(f.ProviderCustomerID),
		Amount:                  f.Amount,
		Currency:                f.Currency,
		Status:                  f.Status,
		Created:                 unixTimestamptz(f.Created),
		Metadata:                metadataJSON(f.Metadata),
		OrgID:                   orgID,
		UserID:                  userID,
	}); err != nil {
		return fmt.Errorf("mirror.RecordPaymentIntent: %w", err)
	}

	m.logger.Info("Mirrored new payment",
		zap.String("provider_payment_intent_id", f.ProviderPaymentIntentID),
		zap.Int64("amount", f.Amount))
	return nil
}

// BackfillPaymentCustomer fills a payment's customer reference when it is
// currently empty. The fill is monotonic: once set, the reference is never
// overwritten, and a missing payment record is a no-op.
func (m *Mirror) BackfillPaymentCustomer(ctx context.Context, providerPaymentIntentID, providerCustomerID string) error {
	existing, err := m.store.GetPaymentByProviderID(ctx, providerPaymentIntentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mirror.BackfillPaymentCustomer: %w", err)
	}
	if existing.ProviderCustomerID.Valid {
		return nil
	}

	if err := m.store.BackfillPaymentCustomer(ctx, db.BackfillPaymentCustomerParams{
		ProviderPaymentIntentID: providerPaymentIntentID,
		ProviderCustomerID:      textOrNull(providerCustomerID),
	}); err != nil {
		return fmt.Errorf("mirror.BackfillPaymentCustomer: %w", err)
	}

	m.logger.Info("Backfilled payment customer",
		zap.String("provider_payment_intent_id", providerPaymentIntentID),
		zap.String("provider_customer_id", providerCustomerID))
	return nil
}

func linkageFromMetadata(metadata map[string]string) (orgID, userID pgtype.Text) {
	if v, ok := metadata[MetadataOrgIDKey]; ok && v != "" {
		orgID = pgtype.Text{String: v, Valid: true}
	}
	if v, ok := metadata[MetadataUserIDKey]; ok && v != "" {
		userID = pgtype.Text{String: v, Valid: true}
	}
	return orgID, userID
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func boolPtr(b *bool) pgtype.Bool {
	if b == nil {
		return pgtype.Bool{}
	}
	return pgtype.Bool{Bool: *b, Valid: true}
}

func int8Ptr(n *int64) pgtype.Int8 {
	if n == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *n, Valid: true}
}

func unixTimestamptz(unix int64) pgtype.Timestamptz {
	if unix == 0 {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: time.Unix(unix, 0).UTC(), Valid: true}
}

func metadataJSON(metadata map[string]string) []byte {
	if len(metadata) == 0 {
		return []byte("{}")
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return []byte("{}")
	}
	return data
}
