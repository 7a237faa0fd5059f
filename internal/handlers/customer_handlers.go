package handlers

import (
	"net/http"

	"billing-mirror/internal/db"
	"billing-mirror/internal/facade"
	"billing-mirror/internal/sync"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	common *CommonServices
}

func NewCustomerHandler(common *CommonServices) *CustomerHandler {
	return &CustomerHandler{common: common}
}

// CustomerResponse represents the standardized API response for customer operations
type CustomerResponse struct {
	ID                 string            `json:"id"`
	Object             string            `json:"object"`
	ProviderCustomerID string            `json:"provider_customer_id"`
	Email              string            `json:"email,omitempty"`
	Name               string            `json:"name,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	Created            int64             `json:"created"`
}

// ResolveCustomerRequest identifies the application account a provider
// customer should exist for.
type ResolveCustomerRequest struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Email  string `json:"email" binding:"omitempty,email"`
	Name   string `json:"name,omitempty"`
}

func toCustomerResponse(customer db.Customer) CustomerResponse {
	return CustomerResponse{
		ID:                 customer.ID.String(),
		Object:             "customer",
		ProviderCustomerID: customer.ProviderCustomerID,
		Email:              textValue(customer.Email),
		Name:               textValue(customer.Name),
		Metadata:           metadataValue(customer.Metadata),
		Created:            unixValue(customer.CreatedAt),
	}
}

// UpsertCustomerRequest carries caller-supplied customer state for the
// manual reconcile path.
type UpsertCustomerRequest struct {
	ProviderCustomerID string            `json:"provider_customer_id" binding:"required"`
	Email              string            `json:"email" binding:"omitempty,email"`
	Name               string            `json:"name,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// GetCustomer retrieves a mirrored customer by its provider customer ID.
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	providerCustomerID := c.Param("customer_id")

	customer, err := h.common.db.GetCustomerByProviderID(c.Request.Context(), providerCustomerID)
	if err != nil {
		handleDBError(c, err, "Customer not found")
		return
	}

	sendSuccess(c, http.StatusOK, toCustomerResponse(customer))
}

// GetCustomerByEmail retrieves a mirrored customer by its billing email.
func (h *CustomerHandler) GetCustomerByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		sendError(c, http.StatusBadRequest, "email query parameter is required", nil)
		return
	}

	customer, err := h.common.db.GetCustomerByEmail(c.Request.Context(), email)
	if err != nil {
		handleDBError(c, err, "Customer not found")
		return
	}

	sendSuccess(c, http.StatusOK, toCustomerResponse(customer))
}

// UpsertCustomer inserts or patches a mirrored customer from caller-supplied
// state, without touching the provider. Used to repair records a missed
// webhook left stale.
func (h *CustomerHandler) UpsertCustomer(c *gin.Context) {
	var req UpsertCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	customer, err := h.common.facade.UpsertCustomer(c.Request.Context(), sync.CustomerFields{
		ProviderCustomerID: req.ProviderCustomerID,
		Email:              req.Email,
		Name:               req.Name,
		Metadata:           req.Metadata,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to upsert customer", err)
		return
	}

	sendSuccess(c, http.StatusOK, toCustomerResponse(customer))
}

// ResolveCustomer returns the provider customer for an application account,
// creating one with the provider when none is known yet.
func (h *CustomerHandler) ResolveCustomer(c *gin.Context) {
	var req ResolveCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" && req.Email == "" {
		sendError(c, http.StatusBadRequest, "Either user_id or email is required", nil)
		return
	}

	customer, err := h.common.facade.GetOrCreateCustomer(c.Request.Context(), facade.GetOrCreateCustomerParams{
		UserID: req.UserID,
		OrgID:  req.OrgID,
		Email:  req.Email,
		Name:   req.Name,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to resolve customer", err)
		return
	}

	sendSuccess(c, http.StatusOK, toCustomerResponse(customer))
}
