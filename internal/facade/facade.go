package facade

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"

	"billing-mirror/internal/client/stripeapi"
	"billing-mirror/internal/db"
	"billing-mirror/internal/sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an operation targets a record that was never
// mirrored locally.
var ErrNotFound = errors.New("record not found")

// Provider is the outbound call surface the facade needs. *stripeapi.Service
// satisfies it in production.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string, idempotencyKey string) (stripeapi.Customer, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (stripeapi.Subscription, error)
	ReactivateSubscription(ctx context.Context, subscriptionID string) (stripeapi.Subscription, error)
	UpdateSubscriptionQuantity(ctx context.Context, subscriptionID string, quantity int64) (stripeapi.Subscription, error)
	UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) (stripeapi.Subscription, error)
	CreateCheckoutSession(ctx context.Context, p stripeapi.CheckoutParams) (stripeapi.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (stripeapi.PortalSession, error)
}

// Store is the local lookup surface the facade needs.
type Store interface {
	GetCustomerByProviderID(ctx context.Context, providerCustomerID string) (db.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (db.Customer, error)
	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (db.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID pgtype.Text) ([]db.Subscription, error)
	ListPaymentsByUser(ctx context.Context, userID pgtype.Text) ([]db.Payment, error)
}

// Service is the action facade: every mutating operation calls the provider
// first and applies the result to the mirror only after the remote call
// succeeded. A failed remote call leaves the mirror untouched; the webhook
// for the same change converges the mirror either way.
type Service struct {
	provider Provider
	store    Store
	mirror   *sync.Mirror
	logger   *zap.Logger
}

func NewService(provider Provider, store Store, mirror *sync.Mirror, logger *zap.Logger) *Service {
	return &Service{
		provider: provider,
		store:    store,
		mirror:   mirror,
		logger:   logger,
	}
}

// GetOrCreateCustomerParams identifies the application-side account a
// provider customer should exist for.
type GetOrCreateCustomerParams struct {
	UserID string
	OrgID  string
	Email  string
	Name   string
}

// GetOrCreateCustomer resolves the provider customer for an application
// account, creating one remotely when none is known. Resolution tries the
// user's mirrored subscriptions, then payments, then the email index. The
// remote create carries an idempotency key derived from the user ID so
// concurrent callers collapse onto one provider record.
func (s *Service) GetOrCreateCustomer(ctx context.Context, p GetOrCreateCustomerParams) (db.Customer, error) {
	if p.UserID != "" {
		userID := pgtype.Text{String: p.UserID, Valid: true}

		subs, err := s.store.ListSubscriptionsByUser(ctx, userID)
		if err != nil {
			return db.Customer{}, errors.Wrap(err, "facade.GetOrCreateCustomer: list subscriptions")
		}
		for _, sub := range subs {
			if cust, err := s.store.GetCustomerByProviderID(ctx, sub.ProviderCustomerID); err == nil {
				return cust, nil
			}
		}

		payments, err := s.store.ListPaymentsByUser(ctx, userID)
		if err != nil {
			return db.Customer{}, errors.Wrap(err, "facade.GetOrCreateCustomer: list payments")
		}
		for _, payment := range payments {
			if !payment.ProviderCustomerID.Valid {
				continue
			}
			if cust, err := s.store.GetCustomerByProviderID(ctx, payment.ProviderCustomerID.String); err == nil {
				return cust, nil
			}
		}
	}

	if p.Email != "" {
		cust, err := s.store.GetCustomerByEmail(ctx, p.Email)
		if err == nil {
			return cust, nil
		}
		if !stderrors.Is(err, pgx.ErrNoRows) {
			return db.Customer{}, errors.Wrap(err, "facade.GetOrCreateCustomer: lookup by email")
		}
	}

	metadata := map[string]string{}
	if p.OrgID != "" {
		metadata[sync.MetadataOrgIDKey] = p.OrgID
	}
	if p.UserID != "" {
		metadata[sync.MetadataUserIDKey] = p.UserID
	}

	created, err := s.provider.CreateCustomer(ctx, p.Email, p.Name, metadata, customerIdempotencyKey(p.UserID, p.Email))
	if err != nil {
		return db.Customer{}, errors.Wrap(err, "facade.GetOrCreateCustomer")
	}

	if err := s.mirror.CreateCustomer(ctx, sync.CustomerFields{
		ProviderCustomerID: created.ID,
		Email:              created.Email,
		Name:               created.Name,
		Metadata:           metadata,
	}); err != nil {
		return db.Customer{}, errors.Wrap(err, "facade.GetOrCreateCustomer: mirror")
	}

	cust, err := s.store.GetCustomerByProviderID(ctx, created.ID)
	if err != nil {
		return db.Customer{}, errors.Wrap(err, "facade.GetOrCreateCustomer: read back")
	}
	return cust, nil
}

// UpsertCustomer applies caller-supplied customer state to the mirror,
// inserting when the provider customer is unknown and patching when it is
// already present. No provider call is made; this is the manual reconcile
// path for records the webhook stream missed.
func (s *Service) UpsertCustomer(ctx context.Context, f sync.CustomerFields) (db.Customer, error) {
	if err := s.mirror.CreateCustomer(ctx, f); err != nil {
		return db.Customer{}, errors.Wrap(err, "facade.UpsertCustomer")
	}
	if err := s.mirror.UpdateCustomer(ctx, f); err != nil {
		return db.Customer{}, errors.Wrap(err, "facade.UpsertCustomer")
	}
	cust, err := s.store.GetCustomerByProviderID(ctx, f.ProviderCustomerID)
	if err != nil {
		return db.Customer{}, errors.Wrap(err, "facade.UpsertCustomer: read back")
	}
	return cust, nil
}

// CancelSubscription cancels remotely, then applies the returned state to the
// mirror.
func (s *Service) CancelSubscription(ctx context.Context, providerSubscriptionID string, atPeriodEnd bool) error {
	sub, err := s.provider.CancelSubscription(ctx, providerSubscriptionID, atPeriodEnd)
	if err != nil {
		return errors.Wrap(err, "facade.CancelSubscription")
	}

	if atPeriodEnd {
		if err := s.mirror.UpdateSubscription(ctx, subscriptionPatch(sub)); err != nil {
			return errors.Wrap(err, "facade.CancelSubscription: mirror")
		}
		return nil
	}
	if err := s.mirror.CancelSubscription(ctx, providerSubscriptionID); err != nil {
		return errors.Wrap(err, "facade.CancelSubscription: mirror")
	}
	return nil
}

// ReactivateSubscription clears a pending cancellation remotely, then mirrors
// the returned state.
func (s *Service) ReactivateSubscription(ctx context.Context, providerSubscriptionID string) error {
	sub, err := s.provider.ReactivateSubscription(ctx, providerSubscriptionID)
	if err != nil {
		return errors.Wrap(err, "facade.ReactivateSubscription")
	}
	if err := s.mirror.UpdateSubscription(ctx, subscriptionPatch(sub)); err != nil {
		return errors.Wrap(err, "facade.ReactivateSubscription: mirror")
	}
	return nil
}

// UpdateSubscriptionQuantity changes the line-item quantity remotely, then
// mirrors the returned state.
func (s *Service) UpdateSubscriptionQuantity(ctx context.Context, providerSubscriptionID string, quantity int64) error {
	sub, err := s.provider.UpdateSubscriptionQuantity(ctx, providerSubscriptionID, quantity)
	if err != nil {
		return errors.Wrap(err, "facade.UpdateSubscriptionQuantity")
	}
	if err := s.mirror.UpdateSubscription(ctx, subscriptionPatch(sub)); err != nil {
		return errors.Wrap(err, "facade.UpdateSubscriptionQuantity: mirror")
	}
	return nil
}

// UpdateSubscriptionMetadata replaces the metadata bag remotely and locally.
// The subscription must already be mirrored; unlike the other operations this
// one refuses to act on a record it has never seen.
func (s *Service) UpdateSubscriptionMetadata(ctx context.Context, providerSubscriptionID string, metadata map[string]string) error {
	_, err := s.store.GetSubscriptionByProviderID(ctx, providerSubscriptionID)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "facade.UpdateSubscriptionMetadata: subscription %s", providerSubscriptionID)
	}
	if err != nil {
		return errors.Wrap(err, "facade.UpdateSubscriptionMetadata")
	}

	if _, err := s.provider.UpdateSubscriptionMetadata(ctx, providerSubscriptionID, metadata); err != nil {
		return errors.Wrap(err, "facade.UpdateSubscriptionMetadata")
	}
	if err := s.mirror.UpdateSubscriptionMetadata(ctx, providerSubscriptionID, metadata); err != nil {
		return errors.Wrap(err, "facade.UpdateSubscriptionMetadata: mirror")
	}
	return nil
}

// CreateCheckoutSession creates the hosted checkout page and records the open
// session locally so the completion webhook patches a known row.
func (s *Service) CreateCheckoutSession(ctx context.Context, p stripeapi.CheckoutParams) (stripeapi.CheckoutSession, error) {
	sess, err := s.provider.CreateCheckoutSession(ctx, p)
	if err != nil {
		return stripeapi.CheckoutSession{}, errors.Wrap(err, "facade.CreateCheckoutSession")
	}

	customerID := sess.CustomerID
	if customerID == "" {
		customerID = p.CustomerID
	}
	if err := s.mirror.RecordCheckoutSession(ctx, sync.CheckoutSessionFields{
		ProviderSessionID:  sess.ID,
		ProviderCustomerID: customerID,
		Mode:               sess.Mode,
		Status:             sess.Status,
	}); err != nil {
		return stripeapi.CheckoutSession{}, errors.Wrap(err, "facade.CreateCheckoutSession: mirror")
	}
	return sess, nil
}

// CreatePortalSession creates a hosted billing portal page. Nothing is
// mirrored; portal sessions are ephemeral.
func (s *Service) CreatePortalSession(ctx context.Context, providerCustomerID, returnURL string) (stripeapi.PortalSession, error) {
	sess, err := s.provider.CreatePortalSession(ctx, providerCustomerID, returnURL)
	if err != nil {
		return stripeapi.PortalSession{}, errors.Wrap(err, "facade.CreatePortalSession")
	}
	return sess, nil
}

func subscriptionPatch(sub stripeapi.Subscription) sync.SubscriptionPatch {
	patch := sync.SubscriptionPatch{
		ProviderSubscriptionID: sub.ID,
		Status:                 &sub.Status,
		CancelAtPeriodEnd:      &sub.CancelAtPeriodEnd,
		Quantity:               &sub.Quantity,
		CurrentPeriodEnd:       &sub.CurrentPeriodEnd,
	}
	if sub.CustomerID != "" {
		patch.ProviderCustomerID = &sub.CustomerID
	}
	if sub.PriceID != "" {
		patch.PriceID = &sub.PriceID
	}
	return patch
}

// customerIdempotencyKey derives a stable provider idempotency key from the
// application account identity, so retries and racing callers create at most
// one provider customer.
func customerIdempotencyKey(userID, email string) string {
	seed := userID
	if seed == "" {
		seed = email
	}
	if seed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte("customer-create:" + seed))
	return hex.EncodeToString(sum[:])
}
