package handlers

import (
	"net/http"

	"billing-mirror/internal/client/stripeapi"
	"billing-mirror/internal/db"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	common *CommonServices
}

func NewCheckoutHandler(common *CommonServices) *CheckoutHandler {
	return &CheckoutHandler{common: common}
}

// CreateCheckoutSessionRequest represents the request body for creating a checkout session
type CreateCheckoutSessionRequest struct {
	CustomerID string            `json:"customer_id" binding:"required"`
	PriceID    string            `json:"price_id" binding:"required"`
	Quantity   int64             `json:"quantity"`
	Mode       string            `json:"mode" binding:"required,oneof=payment subscription"`
	SuccessURL string            `json:"success_url" binding:"required,url"`
	CancelURL  string            `json:"cancel_url" binding:"required,url"`
	Metadata   map[string]string `json:"metadata"`
}

// CheckoutSessionResponse represents the standardized API response for checkout sessions
type CheckoutSessionResponse struct {
	ID                 string `json:"id"`
	Object             string `json:"object"`
	ProviderSessionID  string `json:"provider_session_id"`
	ProviderCustomerID string `json:"provider_customer_id,omitempty"`
	Mode               string `json:"mode"`
	Status             string `json:"status"`
	URL                string `json:"url,omitempty"`
}

// CreatePortalSessionRequest represents the request body for creating a billing portal session
type CreatePortalSessionRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
	ReturnURL  string `json:"return_url" binding:"required,url"`
}

// PortalSessionResponse represents the standardized API response for billing portal sessions
type PortalSessionResponse struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	URL    string `json:"url"`
}

// CreateCheckoutSession creates a provider-hosted checkout page and records
// the open session so the completion webhook lands on a known row.
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sess, err := h.common.facade.CreateCheckoutSession(c.Request.Context(), stripeapi.CheckoutParams{
		CustomerID: req.CustomerID,
		PriceID:    req.PriceID,
		Quantity:   req.Quantity,
		Mode:       req.Mode,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata:   req.Metadata,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to create checkout session", err)
		return
	}

	sendSuccess(c, http.StatusCreated, CheckoutSessionResponse{
		ID:                 sess.ID,
		Object:             "checkout_session",
		ProviderSessionID:  sess.ID,
		ProviderCustomerID: sess.CustomerID,
		Mode:               sess.Mode,
		Status:             sess.Status,
		URL:                sess.URL,
	})
}

// GetCheckoutSession retrieves a mirrored checkout session by its provider session ID.
func (h *CheckoutHandler) GetCheckoutSession(c *gin.Context) {
	providerSessionID := c.Param("session_id")

	sess, err := h.common.db.GetCheckoutSessionByProviderID(c.Request.Context(), providerSessionID)
	if err != nil {
		handleDBError(c, err, "Checkout session not found")
		return
	}

	sendSuccess(c, http.StatusOK, toCheckoutSessionResponse(sess))
}

// CreatePortalSession creates a provider-hosted billing portal page.
func (h *CheckoutHandler) CreatePortalSession(c *gin.Context) {
	var req CreatePortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sess, err := h.common.facade.CreatePortalSession(c.Request.Context(), req.CustomerID, req.ReturnURL)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to create portal session", err)
		return
	}

	sendSuccess(c, http.StatusCreated, PortalSessionResponse{
		ID:     sess.ID,
		Object: "portal_session",
		URL:    sess.URL,
	})
}

func toCheckoutSessionResponse(sess db.CheckoutSession) CheckoutSessionResponse {
	return CheckoutSessionResponse{
		ID:                 sess.ID.String(),
		Object:             "checkout_session",
		ProviderSessionID:  sess.ProviderSessionID,
		ProviderCustomerID: textValue(sess.ProviderCustomerID),
		Mode:               sess.Mode,
		Status:             sess.Status,
	}
}
