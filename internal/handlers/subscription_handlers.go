package handlers

import (
	"errors"
	"net/http"

	"billing-mirror/internal/db"
	"billing-mirror/internal/facade"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
)

type SubscriptionHandler struct {
	common *CommonServices
}

func NewSubscriptionHandler(common *CommonServices) *SubscriptionHandler {
	return &SubscriptionHandler{common: common}
}

// SubscriptionResponse represents the standardized API response for subscription operations
type SubscriptionResponse struct {
	ID                     string            `json:"id"`
	Object                 string            `json:"object"`
	ProviderSubscriptionID string            `json:"provider_subscription_id"`
	ProviderCustomerID     string            `json:"provider_customer_id"`
	Status                 string            `json:"status"`
	CurrentPeriodEnd       int64             `json:"current_period_end"`
	CancelAtPeriodEnd      bool              `json:"cancel_at_period_end"`
	Quantity               int64             `json:"quantity"`
	PriceID                string            `json:"price_id"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	OrgID                  string            `json:"org_id,omitempty"`
	UserID                 string            `json:"user_id,omitempty"`
	Created                int64             `json:"created"`
}

// CancelSubscriptionRequest represents the request body for canceling a subscription
type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// UpdateQuantityRequest represents the request body for changing a subscription quantity
type UpdateQuantityRequest struct {
	Quantity int64 `json:"quantity" binding:"required,min=1"`
}

// UpdateMetadataRequest represents the request body for replacing a subscription metadata bag
type UpdateMetadataRequest struct {
	Metadata map[string]string `json:"metadata" binding:"required"`
}

func toSubscriptionResponse(sub db.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                     sub.ID.String(),
		Object:                 "subscription",
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		ProviderCustomerID:     sub.ProviderCustomerID,
		Status:                 sub.Status,
		CurrentPeriodEnd:       unixValue(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		Quantity:               sub.Quantity,
		PriceID:                sub.PriceID,
		Metadata:               metadataValue(sub.Metadata),
		OrgID:                  textValue(sub.OrgID),
		UserID:                 textValue(sub.UserID),
		Created:                unixValue(sub.CreatedAt),
	}
}

func toSubscriptionResponses(subs []db.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, len(subs))
	for i, sub := range subs {
		out[i] = toSubscriptionResponse(sub)
	}
	return out
}

// GetSubscription retrieves a mirrored subscription by its provider subscription ID.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	providerSubscriptionID := c.Param("subscription_id")

	sub, err := h.common.db.GetSubscriptionByProviderID(c.Request.Context(), providerSubscriptionID)
	if err != nil {
		handleDBError(c, err, "Subscription not found")
		return
	}

	sendSuccess(c, http.StatusOK, toSubscriptionResponse(sub))
}

// ListSubscriptions lists mirrored subscriptions filtered by exactly one of
// org_id or user_id.
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	orgID := c.Query("org_id")
	userID := c.Query("user_id")

	var (
		subs []db.Subscription
		err  error
	)
	switch {
	case orgID != "" && userID == "":
		subs, err = h.common.db.ListSubscriptionsByOrg(c.Request.Context(), pgtype.Text{String: orgID, Valid: true})
	case userID != "" && orgID == "":
		subs, err = h.common.db.ListSubscriptionsByUser(c.Request.Context(), pgtype.Text{String: userID, Valid: true})
	default:
		sendError(c, http.StatusBadRequest, "Exactly one of org_id or user_id is required", nil)
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}

	sendList(c, toSubscriptionResponses(subs))
}

// ListSubscriptionsByCustomer lists mirrored subscriptions for a provider customer.
func (h *SubscriptionHandler) ListSubscriptionsByCustomer(c *gin.Context) {
	providerCustomerID := c.Param("customer_id")

	subs, err := h.common.db.ListSubscriptionsByCustomer(c.Request.Context(), providerCustomerID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}

	sendList(c, toSubscriptionResponses(subs))
}

// CancelSubscription cancels a subscription with the provider, immediately or
// at period end, and mirrors the result.
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	providerSubscriptionID := c.Param("subscription_id")

	var req CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.common.facade.CancelSubscription(c.Request.Context(), providerSubscriptionID, req.AtPeriodEnd); err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to cancel subscription", err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Subscription canceled")
}

// ReactivateSubscription clears a pending at-period-end cancellation.
func (h *SubscriptionHandler) ReactivateSubscription(c *gin.Context) {
	providerSubscriptionID := c.Param("subscription_id")

	if err := h.common.facade.ReactivateSubscription(c.Request.Context(), providerSubscriptionID); err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to reactivate subscription", err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Subscription reactivated")
}

// UpdateQuantity changes the subscription's line-item quantity with the provider.
func (h *SubscriptionHandler) UpdateQuantity(c *gin.Context) {
	providerSubscriptionID := c.Param("subscription_id")

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.common.facade.UpdateSubscriptionQuantity(c.Request.Context(), providerSubscriptionID, req.Quantity); err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to update subscription quantity", err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Subscription quantity updated")
}

// UpdateMetadata replaces the subscription's metadata bag with the provider
// and locally. Unknown subscriptions get a 404.
func (h *SubscriptionHandler) UpdateMetadata(c *gin.Context) {
	providerSubscriptionID := c.Param("subscription_id")

	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.common.facade.UpdateSubscriptionMetadata(c.Request.Context(), providerSubscriptionID, req.Metadata); err != nil {
		if errors.Is(err, facade.ErrNotFound) {
			sendError(c, http.StatusNotFound, "Subscription not found", err)
			return
		}
		sendError(c, http.StatusInternalServerError, "Failed to update subscription metadata", err)
		return
	}

	sendSuccessMessage(c, http.StatusOK, "Subscription metadata updated")
}
