package handlers

import (
	"net/http"

	"billing-mirror/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"
)

type InvoiceHandler struct {
	common *CommonServices
}

func NewInvoiceHandler(common *CommonServices) *InvoiceHandler {
	return &InvoiceHandler{common: common}
}

// InvoiceResponse represents the standardized API response for invoice operations
type InvoiceResponse struct {
	ID                     string `json:"id"`
	Object                 string `json:"object"`
	ProviderInvoiceID      string `json:"provider_invoice_id"`
	ProviderCustomerID     string `json:"provider_customer_id"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	Status                 string `json:"status"`
	AmountDue              int64  `json:"amount_due"`
	AmountPaid             int64  `json:"amount_paid"`
	OrgID                  string `json:"org_id,omitempty"`
	UserID                 string `json:"user_id,omitempty"`
	Created                int64  `json:"created"`
}

func toInvoiceResponse(inv db.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                     inv.ID.String(),
		Object:                 "invoice",
		ProviderInvoiceID:      inv.ProviderInvoiceID,
		ProviderCustomerID:     inv.ProviderCustomerID,
		ProviderSubscriptionID: textValue(inv.ProviderSubscriptionID),
		Status:                 inv.Status,
		AmountDue:              inv.AmountDue,
		AmountPaid:             inv.AmountPaid,
		OrgID:                  textValue(inv.OrgID),
		UserID:                 textValue(inv.UserID),
		Created:                unixValue(inv.Created),
	}
}

func toInvoiceResponses(invoices []db.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		out[i] = toInvoiceResponse(inv)
	}
	return out
}

// GetInvoice retrieves a mirrored invoice by its provider invoice ID.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	providerInvoiceID := c.Param("invoice_id")

	inv, err := h.common.db.GetInvoiceByProviderID(c.Request.Context(), providerInvoiceID)
	if err != nil {
		handleDBError(c, err, "Invoice not found")
		return
	}

	sendSuccess(c, http.StatusOK, toInvoiceResponse(inv))
}

// ListInvoices lists mirrored invoices filtered by exactly one of org_id or
// user_id.
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	orgID := c.Query("org_id")
	userID := c.Query("user_id")

	var (
		invoices []db.Invoice
		err      error
	)
	switch {
	case orgID != "" && userID == "":
		invoices, err = h.common.db.ListInvoicesByOrg(c.Request.Context(), pgtype.Text{String: orgID, Valid: true})
	case userID != "" && orgID == "":
		invoices, err = h.common.db.ListInvoicesByUser(c.Request.Context(), pgtype.Text{String: userID, Valid: true})
	default:
		sendError(c, http.StatusBadRequest, "Exactly one of org_id or user_id is required", nil)
		return
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	sendList(c, toInvoiceResponses(invoices))
}

// ListInvoicesByCustomer lists mirrored invoices for a provider customer.
func (h *InvoiceHandler) ListInvoicesByCustomer(c *gin.Context) {
	providerCustomerID := c.Param("customer_id")

	invoices, err := h.common.db.ListInvoicesByCustomer(c.Request.Context(), providerCustomerID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	sendList(c, toInvoiceResponses(invoices))
}

// ListInvoicesBySubscription lists mirrored invoices for a provider subscription.
func (h *InvoiceHandler) ListInvoicesBySubscription(c *gin.Context) {
	providerSubscriptionID := c.Param("subscription_id")

	invoices, err := h.common.db.ListInvoicesBySubscription(c.Request.Context(), pgtype.Text{String: providerSubscriptionID, Valid: true})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	sendList(c, toInvoiceResponses(invoices))
}
